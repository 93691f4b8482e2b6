package strikes

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) GetState(ctx context.Context, userID int64) (State, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT user_id, strike_count, blacklist_until, reset_epoch, updated_at
		FROM user_strike_state WHERE user_id = $1
	`, userID)

	var s State
	if err := row.Scan(&s.UserID, &s.StrikeCount, &s.BlacklistUntil, &s.ResetEpoch, &s.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			// Строки нет — пользователь без страйков.
			return State{UserID: userID}, nil
		}
		return State{}, err
	}
	s.persisted = true
	return s, nil
}

// UpdateState — условная запись нового состояния: сравниваем со считанным
// ранее (optimistic check по strike_count + reset_epoch). Проигравший
// гонку получает ErrStorageConflict и перечитывает.
func (r *Repo) UpdateState(ctx context.Context, prev, next State) error {
	if !prev.persisted {
		tag, err := r.pool.Exec(ctx, `
			INSERT INTO user_strike_state (user_id, strike_count, blacklist_until, reset_epoch)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (user_id) DO NOTHING
		`, next.UserID, next.StrikeCount, next.BlacklistUntil, next.ResetEpoch)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrStorageConflict
		}
		return nil
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE user_strike_state
		SET strike_count = $3, blacklist_until = $4, reset_epoch = $5, updated_at = now()
		WHERE user_id = $1 AND strike_count = $2 AND reset_epoch = $6
	`, next.UserID, prev.StrikeCount, next.StrikeCount, next.BlacklistUntil, next.ResetEpoch, prev.ResetEpoch)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStorageConflict
	}
	return nil
}

func (r *Repo) AppendRecord(ctx context.Context, rec Record) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO strike_history
			(student_id, booking_id, strike_number, reason, days_overdue,
			 restriction_days, blacklist_until, issued_by, reset_epoch, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id
	`, rec.StudentID, rec.BookingID, rec.StrikeNumber, rec.Reason, rec.DaysOverdue,
		rec.RestrictionDays, rec.BlacklistUntil, rec.IssuedBy, rec.ResetEpoch, rec.CreatedAt,
	).Scan(&id)
	return id, err
}

func (r *Repo) GetRecord(ctx context.Context, id int64) (*Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, student_id, booking_id, strike_number, reason, days_overdue,
		       restriction_days, blacklist_until, issued_by, reset_epoch, created_at,
		       revoked_at, revoked_by, revoke_reason
		FROM strike_history WHERE id = $1
	`, id)

	var rec Record
	if err := row.Scan(
		&rec.ID, &rec.StudentID, &rec.BookingID, &rec.StrikeNumber, &rec.Reason,
		&rec.DaysOverdue, &rec.RestrictionDays, &rec.BlacklistUntil, &rec.IssuedBy,
		&rec.ResetEpoch, &rec.CreatedAt, &rec.RevokedAt, &rec.RevokedBy, &rec.RevokeReason,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Revoke помечает страйк отозванным. Условие revoked_at IS NULL
// защищает от двойного отзыва в гонке.
func (r *Repo) Revoke(ctx context.Context, id, adminID int64, reason string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE strike_history
		SET revoked_at = $2, revoked_by = $3, revoke_reason = $4
		WHERE id = $1 AND revoked_at IS NULL
	`, id, at, adminID, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyRevoked
	}
	return nil
}

// ResetAll обнуляет живое состояние всех пользователей одним запросом.
// История не трогается; reset_epoch растёт, чтобы отчёты могли
// отличить страйки до и после сброса.
func (r *Repo) ResetAll(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_strike_state
		SET strike_count = 0, blacklist_until = NULL, reset_epoch = reset_epoch + 1, updated_at = now()
		WHERE strike_count > 0 OR blacklist_until IS NOT NULL
	`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repo) History(ctx context.Context, userID int64, includeRevoked bool) ([]Record, error) {
	q := `
		SELECT id, student_id, booking_id, strike_number, reason, days_overdue,
		       restriction_days, blacklist_until, issued_by, reset_epoch, created_at,
		       revoked_at, revoked_by, revoke_reason
		FROM strike_history WHERE student_id = $1`
	if !includeRevoked {
		q += ` AND revoked_at IS NULL`
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID, &rec.StudentID, &rec.BookingID, &rec.StrikeNumber, &rec.Reason,
			&rec.DaysOverdue, &rec.RestrictionDays, &rec.BlacklistUntil, &rec.IssuedBy,
			&rec.ResetEpoch, &rec.CreatedAt, &rec.RevokedAt, &rec.RevokedBy, &rec.RevokeReason,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
