package strikes

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MarJone/NCADbook-sub003/internal/domain/bookings"
)

// Store — хранилище состояния и истории страйков.
// Реализация обязана делать UpdateState атомарно-условным.
type Store interface {
	GetState(ctx context.Context, userID int64) (State, error)
	UpdateState(ctx context.Context, prev, next State) error
	AppendRecord(ctx context.Context, rec Record) (int64, error)
	GetRecord(ctx context.Context, id int64) (*Record, error)
	Revoke(ctx context.Context, id, adminID int64, reason string, at time.Time) error
	ResetAll(ctx context.Context) (int64, error)
	History(ctx context.Context, userID int64, includeRevoked bool) ([]Record, error)
}

// Notifier — опциональный канал оповещений (у нас — Telegram админ-чата).
type Notifier interface {
	StrikeIssued(userID int64, strikeCount int, blacklistUntil *time.Time, reason string)
}

type Engine struct {
	store  Store
	log    *slog.Logger
	notify Notifier // может быть nil
	now    func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewEngine(store Store, log *slog.Logger, notify Notifier) *Engine {
	return &Engine{
		store:  store,
		log:    log,
		notify: notify,
		now:    time.Now,
		locks:  make(map[int64]*sync.Mutex),
	}
}

// userLock сериализует мутации по конкретному пользователю внутри процесса.
// Межпроцессные гонки ловит условный UpdateState в хранилище.
func (e *Engine) userLock(userID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[userID] = l
	}
	return l
}

type CanBookResult struct {
	CanBook        bool       `json:"can_book"`
	Reason         string     `json:"reason,omitempty"`
	StrikeCount    int        `json:"strike_count"`
	BlacklistUntil *time.Time `json:"blacklist_until,omitempty"`
}

// CanBook отказывает только при действующем окне ограничения.
// Истёкший blacklist инертен; заодно лениво чистим его в хранилище,
// чтобы не показывать устаревшую дату.
func (e *Engine) CanBook(ctx context.Context, userID int64) (CanBookResult, error) {
	st, err := e.store.GetState(ctx, userID)
	if err != nil {
		return CanBookResult{}, err
	}
	now := e.now()

	if st.Restricted(now) {
		return CanBookResult{
			CanBook:        false,
			Reason:         fmt.Sprintf("Account restricted until %s after repeated late returns", st.BlacklistUntil.Format("2006-01-02")),
			StrikeCount:    st.StrikeCount,
			BlacklistUntil: st.BlacklistUntil,
		}, nil
	}

	if st.BlacklistUntil != nil {
		cleared := st
		cleared.BlacklistUntil = nil
		if err := e.store.UpdateState(ctx, st, cleared); err != nil && err != ErrStorageConflict {
			e.log.Warn("failed to clear expired blacklist", "user_id", userID, "err", err)
		}
	}

	return CanBookResult{CanBook: true, StrikeCount: st.StrikeCount}, nil
}

type IssueResult struct {
	StrikeID        int64      `json:"strike_id"`
	PreviousStrikes int        `json:"previous_strikes"`
	NewStrikeCount  int        `json:"new_strike_count"`
	RestrictionDays int        `json:"restriction_days"`
	BlacklistUntil  *time.Time `json:"blacklist_until,omitempty"`
}

// IssueStrike выдаёт страйк и переводит состояние по таблице переходов.
// Счётчик никогда не превышает MaxStrikes: на третьем страйке история
// продолжает пополняться, но состояние остаётся на тройке.
func (e *Engine) IssueStrike(ctx context.Context, userID int64, bookingID *int64, daysOverdue int, issuedBy Issuer, reason string) (IssueResult, error) {
	l := e.userLock(userID)
	l.Lock()
	res, err := e.issueLocked(ctx, userID, bookingID, daysOverdue, issuedBy, reason)
	l.Unlock()
	if err != nil {
		return IssueResult{}, err
	}

	// Оповещение вне замка: медленный Telegram не должен держать
	// мутации по пользователю.
	if e.notify != nil {
		e.notify.StrikeIssued(userID, res.NewStrikeCount, res.BlacklistUntil, reason)
	}
	return res, nil
}

func (e *Engine) issueLocked(ctx context.Context, userID int64, bookingID *int64, daysOverdue int, issuedBy Issuer, reason string) (IssueResult, error) {
	st, err := e.store.GetState(ctx, userID)
	if err != nil {
		return IssueResult{}, err
	}
	now := e.now()

	newCount := min(st.StrikeCount+1, MaxStrikes)
	days := restrictionDays(newCount)
	var until *time.Time
	if days > 0 {
		t := now.Add(time.Duration(days) * 24 * time.Hour)
		until = &t
	}

	next := State{
		UserID:         userID,
		StrikeCount:    newCount,
		BlacklistUntil: until,
		ResetEpoch:     st.ResetEpoch,
	}
	if err := e.store.UpdateState(ctx, st, next); err != nil {
		return IssueResult{}, err
	}

	rec := Record{
		StudentID:       userID,
		BookingID:       bookingID,
		StrikeNumber:    newCount,
		Reason:          reason,
		DaysOverdue:     daysOverdue,
		RestrictionDays: days,
		BlacklistUntil:  until,
		IssuedBy:        issuedBy.AdminIDPtr(),
		ResetEpoch:      st.ResetEpoch,
		CreatedAt:       now,
	}
	id, err := e.store.AppendRecord(ctx, rec)
	if err != nil {
		return IssueResult{}, err
	}

	e.log.Info("strike issued",
		"user_id", userID,
		"strike_number", newCount,
		"days_overdue", daysOverdue,
		"automatic", rec.Automatic(),
	)

	return IssueResult{
		StrikeID:        id,
		PreviousStrikes: st.StrikeCount,
		NewStrikeCount:  newCount,
		RestrictionDays: days,
		BlacklistUntil:  until,
	}, nil
}

type RevokeResult struct {
	Success        bool  `json:"success"`
	StudentID      int64 `json:"student_id"`
	NewStrikeCount int   `json:"new_strike_count"`
}

// RevokeStrike снимает страйк и пересчитывает ограничение от нового
// счётчика: при счётчике ниже двух blacklist снимается независимо от
// того, какое окно хранил отозванный страйк.
func (e *Engine) RevokeStrike(ctx context.Context, strikeID, adminID int64, reason string) (RevokeResult, error) {
	rec, err := e.store.GetRecord(ctx, strikeID)
	if err != nil {
		return RevokeResult{}, err
	}
	if rec.Revoked() {
		return RevokeResult{}, ErrAlreadyRevoked
	}

	l := e.userLock(rec.StudentID)
	l.Lock()
	defer l.Unlock()

	if err := e.store.Revoke(ctx, strikeID, adminID, reason, e.now()); err != nil {
		return RevokeResult{}, err
	}

	st, err := e.store.GetState(ctx, rec.StudentID)
	if err != nil {
		return RevokeResult{}, err
	}
	next := st
	next.StrikeCount = max(st.StrikeCount-1, 0)
	if next.StrikeCount < 2 {
		next.BlacklistUntil = nil
	}
	if err := e.store.UpdateState(ctx, st, next); err != nil {
		return RevokeResult{}, err
	}

	e.log.Info("strike revoked", "strike_id", strikeID, "student_id", rec.StudentID, "admin_id", adminID, "reason", reason)
	return RevokeResult{Success: true, StudentID: rec.StudentID, NewStrikeCount: next.StrikeCount}, nil
}

// ResetAll обнуляет живое состояние всех пользователей.
// Исторические записи не отзываются и не меняются.
func (e *Engine) ResetAll(ctx context.Context, adminID int64, reason string) (int64, error) {
	affected, err := e.store.ResetAll(ctx)
	if err != nil {
		return 0, err
	}
	e.log.Info("all strikes reset", "admin_id", adminID, "reason", reason, "affected", affected)
	return affected, nil
}

func (e *Engine) GetState(ctx context.Context, userID int64) (State, error) {
	return e.store.GetState(ctx, userID)
}

func (e *Engine) History(ctx context.Context, userID int64, includeRevoked bool) ([]Record, error) {
	return e.store.History(ctx, userID, includeRevoked)
}

type LateCheck struct {
	StrikeIssued bool         `json:"strike_issued"`
	DaysOverdue  int          `json:"days_overdue"`
	Issue        *IssueResult `json:"issue,omitempty"`
}

// CheckLateReturn — автоматический триггер при возврате оборудования.
// Просрочка в целых сутках; ноль — возврат вовремя, страйк не выдаётся.
func (e *Engine) CheckLateReturn(ctx context.Context, b *bookings.Booking) (LateCheck, error) {
	days := bookings.DaysOverdue(b.EndDate, e.now())
	if days <= 0 {
		return LateCheck{DaysOverdue: days}, nil
	}

	reason := fmt.Sprintf("Equipment returned %d day(s) late", days)
	res, err := e.IssueStrike(ctx, b.UserID, &b.ID, days, Automatic(), reason)
	if err != nil {
		return LateCheck{}, err
	}
	return LateCheck{StrikeIssued: true, DaysOverdue: days, Issue: &res}, nil
}
