package fines

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("fines: fine not found")
	ErrInvalidTransition = errors.New("fines: fine already in a terminal status")
	ErrMissingReason     = errors.New("fines: waive reason is required")
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusWaived  Status = "waived"
	StatusOverdue Status = "overdue"
)

const TypeLateReturn = "late_return"

// Fine — начисление. Суммы в евроцентах: пороговые сравнения
// должны быть точными до цента, float здесь не годится.
type Fine struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	BookingID   *int64    `json:"booking_id,omitempty"`
	Type        string    `json:"fine_type"`
	AmountCents int64     `json:"amount_cents"`
	Status      Status    `json:"status"`
	DueDate     time.Time `json:"due_date"`
	Description string    `json:"description"`
	WaiveReason *string   `json:"waive_reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Terminal — из paid и waived переходов нет.
func (f Fine) Terminal() bool {
	return f.Status == StatusPaid || f.Status == StatusWaived
}

// Summary — агрегат по счёту пользователя.
type Summary struct {
	TotalOwedCents int64  `json:"total_owed_cents"`
	TotalPaidCents int64  `json:"total_paid_cents"`
	OverdueCount   int    `json:"overdue_count"`
	AccountHold    bool   `json:"account_hold"`
	HoldReason     string `json:"hold_reason,omitempty"`
}
