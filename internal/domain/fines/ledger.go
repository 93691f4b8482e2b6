package fines

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MarJone/NCADbook-sub003/internal/domain/bookings"
)

type Store interface {
	Create(ctx context.Context, f Fine) (*Fine, error)
	GetByID(ctx context.Context, id int64) (*Fine, error)
	ListByUser(ctx context.Context, userID int64) ([]Fine, error)
	MarkOverdueDue(ctx context.Context, userID int64, now time.Time) error
	MarkPaid(ctx context.Context, id int64) error
	Waive(ctx context.Context, id int64, reason string) error
	SummaryByUser(ctx context.Context, userID int64) (Summary, error)
	OwedByUsers(ctx context.Context) (map[int64]Summary, error)
}

// Config — ставки и пороги, задаются в конфигурации.
type Config struct {
	DailyRateCents     int64 // ставка за сутки просрочки
	HoldThresholdCents int64 // порог блокировки счёта
	PaymentDueDays     int   // срок оплаты нового штрафа
}

type Ledger struct {
	store Store
	cfg   Config
	log   *slog.Logger
	now   func() time.Time
}

func NewLedger(store Store, cfg Config, log *slog.Logger) *Ledger {
	return &Ledger{store: store, cfg: cfg, log: log, now: time.Now}
}

// List возвращает штрафы пользователя. Перед чтением лениво переводим
// просроченные pending в overdue — фонового планировщика нет.
func (l *Ledger) List(ctx context.Context, userID int64) ([]Fine, error) {
	if err := l.store.MarkOverdueDue(ctx, userID, l.now()); err != nil {
		return nil, err
	}
	return l.store.ListByUser(ctx, userID)
}

func (l *Ledger) Summary(ctx context.Context, userID int64) (Summary, error) {
	if err := l.store.MarkOverdueDue(ctx, userID, l.now()); err != nil {
		return Summary{}, err
	}
	s, err := l.store.SummaryByUser(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	l.applyHold(&s)
	return s, nil
}

// applyHold проставляет блокировку: порог включительно.
func (l *Ledger) applyHold(s *Summary) {
	if s.TotalOwedCents >= l.cfg.HoldThresholdCents {
		s.AccountHold = true
		s.HoldReason = fmt.Sprintf("Outstanding fines of %s have reached the %s limit — pay or contact an administrator",
			euros(s.TotalOwedCents), euros(l.cfg.HoldThresholdCents))
	}
}

type Hold struct {
	Hold   bool   `json:"hold"`
	Reason string `json:"reason,omitempty"`
}

// AccountHold — отдельная проверка для Booking Gate.
func (l *Ledger) AccountHold(ctx context.Context, userID int64) (Hold, error) {
	s, err := l.Summary(ctx, userID)
	if err != nil {
		return Hold{}, err
	}
	return Hold{Hold: s.AccountHold, Reason: s.HoldReason}, nil
}

func (l *Ledger) MarkPaid(ctx context.Context, fineID int64) error {
	if err := l.store.MarkPaid(ctx, fineID); err != nil {
		return err
	}
	l.log.Info("fine paid", "fine_id", fineID)
	return nil
}

func (l *Ledger) Waive(ctx context.Context, fineID int64, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrMissingReason
	}
	if err := l.store.Waive(ctx, fineID, reason); err != nil {
		return err
	}
	l.log.Info("fine waived", "fine_id", fineID, "reason", reason)
	return nil
}

// ComputeLateFee — сумма за просрочку: сутки (floor, как в Strike Engine)
// умножить на суточную ставку.
func (l *Ledger) ComputeLateFee(b *bookings.Booking) int64 {
	return int64(bookings.DaysOverdue(b.EndDate, l.now())) * l.cfg.DailyRateCents
}

// CreateLateFee начисляет штраф за просроченный возврат.
// Возврат вовремя — ничего не начисляем, возвращаем nil.
func (l *Ledger) CreateLateFee(ctx context.Context, b *bookings.Booking) (*Fine, error) {
	amount := l.ComputeLateFee(b)
	if amount <= 0 {
		return nil, nil
	}
	days := bookings.DaysOverdue(b.EndDate, l.now())
	f, err := l.store.Create(ctx, Fine{
		UserID:      b.UserID,
		BookingID:   &b.ID,
		Type:        TypeLateReturn,
		AmountCents: amount,
		Status:      StatusPending,
		DueDate:     l.now().AddDate(0, 0, l.cfg.PaymentDueDays),
		Description: fmt.Sprintf("Late return fee: %d day(s) at %s/day", days, euros(l.cfg.DailyRateCents)),
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("late fee created", "fine_id", f.ID, "user_id", b.UserID, "amount_cents", amount)
	return f, nil
}

func (l *Ledger) Get(ctx context.Context, fineID int64) (*Fine, error) {
	return l.store.GetByID(ctx, fineID)
}

// OwedByUsers — данные для сводного отчёта.
func (l *Ledger) OwedByUsers(ctx context.Context) (map[int64]Summary, error) {
	m, err := l.store.OwedByUsers(ctx)
	if err != nil {
		return nil, err
	}
	for id, s := range m {
		l.applyHold(&s)
		m[id] = s
	}
	return m, nil
}

func euros(cents int64) string {
	return fmt.Sprintf("€%d.%02d", cents/100, cents%100)
}
