package bookings

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDenied    Status = "denied"
	StatusReturned  Status = "returned"
	StatusCancelled Status = "cancelled"
)

type Booking struct {
	ID                int64
	UserID            int64
	EquipmentID       int64
	EquipmentCategory string
	Status            Status
	StartDate         time.Time
	EndDate           time.Time
	ReturnedAt        *time.Time
	CreatedAt         time.Time
}

// Active — бронь одобрена и оборудование ещё не возвращено.
func (b Booking) Active() bool {
	return b.Status == StatusApproved && b.ReturnedAt == nil
}

// DaysOverdue — целые сутки просрочки возврата (floor по суткам).
// Единое правило для Strike Engine и Fine Ledger: оба считают
// просрочку одинаково.
func DaysOverdue(endDate, now time.Time) int {
	if !now.After(endDate) {
		return 0
	}
	return int(now.Sub(endDate) / (24 * time.Hour))
}

// Filter — условия выборки для подсчёта лимитов.
// Пустые поля не ограничивают выборку.
type Filter struct {
	StatusIn          []Status
	StartFrom         time.Time
	StartTo           time.Time
	EquipmentCategory string
	ActiveOnly        bool
}
