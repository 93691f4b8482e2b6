package bookings

import (
	"testing"
	"time"
)

func TestDaysOverdue(t *testing.T) {
	end := time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{name: "возврат до срока", now: end.Add(-time.Hour), want: 0},
		{name: "ровно в срок", now: end, want: 0},
		{name: "просрочка 23 часа — ещё ноль суток", now: end.Add(23 * time.Hour), want: 0},
		{name: "ровно сутки", now: end.Add(24 * time.Hour), want: 1},
		{name: "трое суток с хвостом", now: end.Add(72*time.Hour + 30*time.Minute), want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysOverdue(end, tt.now); got != tt.want {
				t.Errorf("DaysOverdue = %d, хотели %d", got, tt.want)
			}
		})
	}
}

func TestBookingActive(t *testing.T) {
	returned := time.Now()

	tests := []struct {
		name string
		b    Booking
		want bool
	}{
		{name: "одобрена и не возвращена", b: Booking{Status: StatusApproved}, want: true},
		{name: "одобрена и возвращена", b: Booking{Status: StatusApproved, ReturnedAt: &returned}, want: false},
		{name: "ожидает одобрения", b: Booking{Status: StatusPending}, want: false},
		{name: "отклонена", b: Booking{Status: StatusDenied}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.b.Active(); got != tt.want {
				t.Errorf("Active() = %v, хотели %v", got, tt.want)
			}
		})
	}
}
