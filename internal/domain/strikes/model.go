package strikes

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("strikes: strike not found")
	ErrAlreadyRevoked  = errors.New("strikes: strike already revoked")
	ErrStorageConflict = errors.New("strikes: concurrent state update, retry")
)

// MaxStrikes — потолок счётчика. Третий страйк — последняя ступень.
const MaxStrikes = 3

// Issuer — кто выдал страйк: система или конкретный админ.
// Тегированный вариант вместо nullable id, чтобы "автоматически"
// нельзя было перепутать с "админ с нулевым id".
type Issuer struct {
	adminID int64
	byAdmin bool
}

func Automatic() Issuer            { return Issuer{} }
func ByAdmin(adminID int64) Issuer { return Issuer{adminID: adminID, byAdmin: true} }

func (i Issuer) Admin() (int64, bool) { return i.adminID, i.byAdmin }

// AdminIDPtr — представление для хранилища: NULL означает автоматику.
func (i Issuer) AdminIDPtr() *int64 {
	if !i.byAdmin {
		return nil
	}
	id := i.adminID
	return &id
}

// Record — строка истории страйков. Только добавляется; revoke
// помечает строку, но strike_number в ней остаётся исходным.
type Record struct {
	ID              int64      `json:"id"`
	StudentID       int64      `json:"student_id"`
	BookingID       *int64     `json:"booking_id,omitempty"` // NULL — страйк выдан вручную, без брони
	StrikeNumber    int        `json:"strike_number"`        // 1..3 на момент выдачи
	Reason          string     `json:"reason"`
	DaysOverdue     int        `json:"days_overdue"`
	RestrictionDays int        `json:"restriction_days"`
	BlacklistUntil  *time.Time `json:"blacklist_until,omitempty"`
	IssuedBy        *int64     `json:"issued_by,omitempty"` // NULL — автоматический
	ResetEpoch      int        `json:"reset_epoch"`
	CreatedAt       time.Time  `json:"created_at"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
	RevokedBy       *int64     `json:"revoked_by,omitempty"`
	RevokeReason    *string    `json:"revoke_reason,omitempty"`
}

func (r Record) Revoked() bool   { return r.RevokedAt != nil }
func (r Record) Automatic() bool { return r.IssuedBy == nil }

// State — живое состояние пользователя, производное от истории.
type State struct {
	UserID         int64      `json:"user_id"`
	StrikeCount    int        `json:"strike_count"`
	BlacklistUntil *time.Time `json:"blacklist_until,omitempty"`
	ResetEpoch     int        `json:"reset_epoch"`
	UpdatedAt      time.Time  `json:"updated_at"`

	persisted bool // есть ли строка в хранилище (для CAS insert-vs-update)
}

// Restricted — действует ли сейчас окно ограничения.
func (s State) Restricted(now time.Time) bool {
	return s.BlacklistUntil != nil && s.BlacklistUntil.After(now)
}

type Standing string

const (
	GoodStanding Standing = "GOOD_STANDING"
	Warning      Standing = "WARNING"
	Restricted   Standing = "RESTRICTED"
)

func (s State) Standing(now time.Time) Standing {
	switch {
	case s.Restricted(now):
		return Restricted
	case s.StrikeCount >= 2:
		return Warning
	}
	return GoodStanding
}

// restrictionDays — таблица переходов: длительность ограничения
// по счётчику страйков после выдачи.
func restrictionDays(strikeCount int) int {
	switch strikeCount {
	case 2:
		return 7
	case 3:
		return 30
	}
	return 0
}
