package bookings

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

// ListForUser возвращает брони пользователя по фильтру.
// Ядро политик только читает брони; создание/изменение живёт снаружи.
func (r *Repo) ListForUser(ctx context.Context, userID int64, f Filter) ([]Booking, error) {
	q := `
		SELECT id, user_id, equipment_id, equipment_category, status, start_date, end_date, returned_at, created_at
		FROM bookings
		WHERE user_id = $1`
	args := []any{userID}

	if len(f.StatusIn) > 0 {
		args = append(args, f.StatusIn)
		q += ` AND status = ANY($2)`
	}
	n := len(args)
	if !f.StartFrom.IsZero() {
		n++
		args = append(args, f.StartFrom)
		q += ` AND start_date >= $` + strconv.Itoa(n)
	}
	if !f.StartTo.IsZero() {
		n++
		args = append(args, f.StartTo)
		q += ` AND start_date <= $` + strconv.Itoa(n)
	}
	if f.EquipmentCategory != "" {
		n++
		args = append(args, f.EquipmentCategory)
		q += ` AND equipment_category = $` + strconv.Itoa(n)
	}
	if f.ActiveOnly {
		q += ` AND status = 'approved' AND returned_at IS NULL`
	}
	q += ` ORDER BY start_date DESC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.EquipmentID, &b.EquipmentCategory,
			&b.Status, &b.StartDate, &b.EndDate, &b.ReturnedAt, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repo) GetByID(ctx context.Context, id int64) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, equipment_id, equipment_category, status, start_date, end_date, returned_at, created_at
		FROM bookings WHERE id = $1
	`, id)

	var b Booking
	if err := row.Scan(
		&b.ID, &b.UserID, &b.EquipmentID, &b.EquipmentCategory,
		&b.Status, &b.StartDate, &b.EndDate, &b.ReturnedAt, &b.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}
