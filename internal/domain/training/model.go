package training

import "time"

// Record — пройденный пользователем инструктаж по оборудованию.
type Record struct {
	UserID      int64
	TrainingID  string
	CompletedAt time.Time
	ExpiresAt   *time.Time
}

// Expired сообщает, истёк ли срок действия инструктажа на момент now.
func (r Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}
