package fines

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/MarJone/NCADbook-sub003/internal/domain/bookings"
)

// fakeStore повторяет переходы статусов pgx-репозитория в памяти.
type fakeStore struct {
	fines  map[int64]*Fine
	nextID int64
}

func newFakeStore() *fakeStore { return &fakeStore{fines: make(map[int64]*Fine)} }

func (s *fakeStore) Create(_ context.Context, f Fine) (*Fine, error) {
	s.nextID++
	f.ID = s.nextID
	s.fines[f.ID] = &f
	cp := f
	return &cp, nil
}

func (s *fakeStore) GetByID(_ context.Context, id int64) (*Fine, error) {
	f, ok := s.fines[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *fakeStore) ListByUser(_ context.Context, userID int64) ([]Fine, error) {
	var out []Fine
	for _, f := range s.fines {
		if f.UserID == userID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkOverdueDue(_ context.Context, userID int64, now time.Time) error {
	for _, f := range s.fines {
		if f.UserID == userID && f.Status == StatusPending && f.DueDate.Before(now) {
			f.Status = StatusOverdue
		}
	}
	return nil
}

func (s *fakeStore) setStatus(id int64, st Status, reason *string) error {
	f, ok := s.fines[id]
	if !ok {
		return ErrNotFound
	}
	if f.Terminal() {
		return ErrInvalidTransition
	}
	f.Status = st
	f.WaiveReason = reason
	return nil
}

func (s *fakeStore) MarkPaid(_ context.Context, id int64) error {
	return s.setStatus(id, StatusPaid, nil)
}

func (s *fakeStore) Waive(_ context.Context, id int64, reason string) error {
	return s.setStatus(id, StatusWaived, &reason)
}

func (s *fakeStore) SummaryByUser(_ context.Context, userID int64) (Summary, error) {
	var sum Summary
	for _, f := range s.fines {
		if f.UserID != userID {
			continue
		}
		switch f.Status {
		case StatusPending:
			sum.TotalOwedCents += f.AmountCents
		case StatusOverdue:
			sum.TotalOwedCents += f.AmountCents
			sum.OverdueCount++
		case StatusPaid:
			sum.TotalPaidCents += f.AmountCents
		}
	}
	return sum, nil
}

func (s *fakeStore) OwedByUsers(ctx context.Context) (map[int64]Summary, error) {
	out := make(map[int64]Summary)
	for _, f := range s.fines {
		sum, _ := s.SummaryByUser(ctx, f.UserID)
		out[f.UserID] = sum
	}
	return out, nil
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

var testConfig = Config{DailyRateCents: 50, HoldThresholdCents: 2000, PaymentDueDays: 14}

func testLedger(t *testing.T) (*Ledger, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	l := NewLedger(store, testConfig, slog.Default())
	l.now = func() time.Time { return testNow }
	return l, store
}

func addFine(t *testing.T, store *fakeStore, userID, amountCents int64, status Status) *Fine {
	t.Helper()
	f, err := store.Create(context.Background(), Fine{
		UserID:      userID,
		Type:        TypeLateReturn,
		AmountCents: amountCents,
		Status:      status,
		DueDate:     testNow.AddDate(0, 0, 14),
	})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestSummary_Aggregation(t *testing.T) {
	l, store := testLedger(t)
	ctx := context.Background()

	addFine(t, store, 10, 300, StatusPending)
	addFine(t, store, 10, 500, StatusOverdue)
	addFine(t, store, 10, 200, StatusPaid)
	addFine(t, store, 10, 900, StatusWaived)
	addFine(t, store, 99, 10000, StatusPending) // чужой счёт не мешает

	s, err := l.Summary(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if s.TotalOwedCents != 800 {
		t.Errorf("TotalOwedCents = %d, хотели 800 (pending + overdue)", s.TotalOwedCents)
	}
	if s.TotalPaidCents != 200 {
		t.Errorf("TotalPaidCents = %d, хотели 200", s.TotalPaidCents)
	}
	if s.OverdueCount != 1 {
		t.Errorf("OverdueCount = %d, хотели 1", s.OverdueCount)
	}
	if s.AccountHold {
		t.Error("AccountHold = true при долге ниже порога")
	}
}

func TestSummary_HoldThresholdBoundary(t *testing.T) {
	tests := []struct {
		name     string
		owed     int64
		wantHold bool
	}{
		{name: "цент до порога — блокировки нет", owed: 1999, wantHold: false},
		{name: "ровно порог — блокировка", owed: 2000, wantHold: true},
		{name: "выше порога — блокировка", owed: 2001, wantHold: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, store := testLedger(t)
			addFine(t, store, 10, tt.owed, StatusPending)

			h, err := l.AccountHold(context.Background(), 10)
			if err != nil {
				t.Fatal(err)
			}
			if h.Hold != tt.wantHold {
				t.Errorf("Hold = %v, хотели %v при долге %d", h.Hold, tt.wantHold, tt.owed)
			}
			if tt.wantHold && h.Reason == "" {
				t.Error("Reason пуст при блокировке")
			}
		})
	}
}

func TestSummary_PaymentLiftsHold(t *testing.T) {
	l, store := testLedger(t)
	ctx := context.Background()

	f := addFine(t, store, 10, 2500, StatusPending)

	h, err := l.AccountHold(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !h.Hold {
		t.Fatal("ожидали блокировку до оплаты")
	}

	if err := l.MarkPaid(ctx, f.ID); err != nil {
		t.Fatal(err)
	}
	h, err = l.AccountHold(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if h.Hold {
		t.Error("блокировка не снята после оплаты")
	}
}

func TestList_LazyOverdueTransition(t *testing.T) {
	l, store := testLedger(t)
	ctx := context.Background()

	pastDue, err := store.Create(ctx, Fine{
		UserID:      10,
		Type:        TypeLateReturn,
		AmountCents: 300,
		Status:      StatusPending,
		DueDate:     testNow.AddDate(0, 0, -1),
	})
	if err != nil {
		t.Fatal(err)
	}
	fresh := addFine(t, store, 10, 300, StatusPending)

	list, err := l.List(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	statuses := make(map[int64]Status, len(list))
	for _, f := range list {
		statuses[f.ID] = f.Status
	}
	if statuses[pastDue.ID] != StatusOverdue {
		t.Errorf("просроченный штраф остался %q, хотели overdue", statuses[pastDue.ID])
	}
	if statuses[fresh.ID] != StatusPending {
		t.Errorf("свежий штраф стал %q, хотели pending", statuses[fresh.ID])
	}
}

func TestWaive(t *testing.T) {
	l, store := testLedger(t)
	ctx := context.Background()

	f := addFine(t, store, 10, 300, StatusPending)

	t.Run("без причины — отказ", func(t *testing.T) {
		if err := l.Waive(ctx, f.ID, "   "); err != ErrMissingReason {
			t.Errorf("err = %v, хотели ErrMissingReason", err)
		}
	})

	t.Run("с причиной — списание", func(t *testing.T) {
		if err := l.Waive(ctx, f.ID, "equipment fault confirmed"); err != nil {
			t.Fatal(err)
		}
		got, _ := store.GetByID(ctx, f.ID)
		if got.Status != StatusWaived {
			t.Errorf("Status = %q, хотели waived", got.Status)
		}
	})

	t.Run("повторный переход из терминального статуса", func(t *testing.T) {
		if err := l.MarkPaid(ctx, f.ID); err != ErrInvalidTransition {
			t.Errorf("err = %v, хотели ErrInvalidTransition", err)
		}
	})

	t.Run("несуществующий штраф", func(t *testing.T) {
		if err := l.Waive(ctx, 999, "reason"); err != ErrNotFound {
			t.Errorf("err = %v, хотели ErrNotFound", err)
		}
	})
}

func TestCreateLateFee(t *testing.T) {
	tests := []struct {
		name       string
		endOffset  time.Duration
		wantAmount int64
		wantFine   bool
	}{
		{name: "3 дня просрочки по 50 центов", endOffset: -72 * time.Hour, wantAmount: 150, wantFine: true},
		{name: "меньше суток — штрафа нет", endOffset: -23 * time.Hour, wantFine: false},
		{name: "возврат вовремя", endOffset: time.Hour, wantFine: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := testLedger(t)
			b := &bookings.Booking{ID: 7, UserID: 10, EndDate: testNow.Add(tt.endOffset)}

			f, err := l.CreateLateFee(context.Background(), b)
			if err != nil {
				t.Fatal(err)
			}
			if !tt.wantFine {
				if f != nil {
					t.Errorf("начислен штраф %+v, хотели nil", f)
				}
				return
			}
			if f == nil {
				t.Fatal("штраф не начислен")
			}
			if f.AmountCents != tt.wantAmount {
				t.Errorf("AmountCents = %d, хотели %d", f.AmountCents, tt.wantAmount)
			}
			if f.Status != StatusPending {
				t.Errorf("Status = %q, хотели pending", f.Status)
			}
			if want := testNow.AddDate(0, 0, testConfig.PaymentDueDays); !f.DueDate.Equal(want) {
				t.Errorf("DueDate = %v, хотели %v", f.DueDate, want)
			}
			if f.BookingID == nil || *f.BookingID != b.ID {
				t.Errorf("BookingID = %v, хотели %d", f.BookingID, b.ID)
			}
		})
	}
}

func TestEuros(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{cents: 0, want: "€0.00"},
		{cents: 5, want: "€0.05"},
		{cents: 150, want: "€1.50"},
		{cents: 2000, want: "€20.00"},
	}
	for _, tt := range tests {
		if got := euros(tt.cents); got != tt.want {
			t.Errorf("euros(%d) = %q, хотели %q", tt.cents, got, tt.want)
		}
	}
}
