package fines

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

const fineColumns = `id, user_id, booking_id, fine_type, amount_cents, status, due_date,
	description, waive_reason, created_at, updated_at`

func scanFine(row pgx.Row) (*Fine, error) {
	var f Fine
	if err := row.Scan(
		&f.ID, &f.UserID, &f.BookingID, &f.Type, &f.AmountCents, &f.Status,
		&f.DueDate, &f.Description, &f.WaiveReason, &f.CreatedAt, &f.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (r *Repo) Create(ctx context.Context, f Fine) (*Fine, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO fines (user_id, booking_id, fine_type, amount_cents, status, due_date, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING `+fineColumns,
		f.UserID, f.BookingID, f.Type, f.AmountCents, f.Status, f.DueDate, f.Description,
	)
	return scanFine(row)
}

func (r *Repo) GetByID(ctx context.Context, id int64) (*Fine, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+fineColumns+` FROM fines WHERE id = $1`, id)
	return scanFine(row)
}

func (r *Repo) ListByUser(ctx context.Context, userID int64) ([]Fine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+fineColumns+` FROM fines WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Fine
	for rows.Next() {
		f, err := scanFine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// MarkOverdueDue переводит просроченные pending-штрафы в overdue.
// Вызывается лениво перед каждым чтением: фонового планировщика нет.
func (r *Repo) MarkOverdueDue(ctx context.Context, userID int64, now time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE fines SET status = 'overdue', updated_at = now()
		WHERE user_id = $1 AND status = 'pending' AND due_date < $2
	`, userID, now)
	return err
}

// setStatus — условный переход pending/overdue -> терминальный статус.
func (r *Repo) setStatus(ctx context.Context, id int64, to Status, waiveReason *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE fines SET status = $2, waive_reason = COALESCE($3, waive_reason), updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'overdue')
	`, id, to, waiveReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// либо штрафа нет, либо он уже в терминальном статусе
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

func (r *Repo) MarkPaid(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, StatusPaid, nil)
}

func (r *Repo) Waive(ctx context.Context, id int64, reason string) error {
	return r.setStatus(ctx, id, StatusWaived, &reason)
}

func (r *Repo) SummaryByUser(ctx context.Context, userID int64) (Summary, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount_cents) FILTER (WHERE status IN ('pending','overdue')), 0),
			COALESCE(SUM(amount_cents) FILTER (WHERE status = 'paid'), 0),
			COUNT(*) FILTER (WHERE status = 'overdue')
		FROM fines WHERE user_id = $1
	`, userID)

	var s Summary
	if err := row.Scan(&s.TotalOwedCents, &s.TotalPaidCents, &s.OverdueCount); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// OwedByUsers — агрегат задолженностей для отчёта по всем пользователям.
func (r *Repo) OwedByUsers(ctx context.Context) (map[int64]Summary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id,
			COALESCE(SUM(amount_cents) FILTER (WHERE status IN ('pending','overdue')), 0),
			COALESCE(SUM(amount_cents) FILTER (WHERE status = 'paid'), 0),
			COUNT(*) FILTER (WHERE status = 'overdue')
		FROM fines GROUP BY user_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]Summary)
	for rows.Next() {
		var id int64
		var s Summary
		if err := rows.Scan(&id, &s.TotalOwedCents, &s.TotalPaidCents, &s.OverdueCount); err != nil {
			return nil, err
		}
		out[id] = s
	}
	return out, rows.Err()
}
