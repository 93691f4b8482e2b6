package training

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

// GetUserTraining возвращает запись о прохождении или nil, если её нет.
func (r *Repo) GetUserTraining(ctx context.Context, userID int64, trainingID string) (*Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT user_id, training_id, completed_at, expires_at
		FROM user_trainings
		WHERE user_id = $1 AND training_id = $2
	`, userID, trainingID)

	var rec Record
	if err := row.Scan(&rec.UserID, &rec.TrainingID, &rec.CompletedAt, &rec.ExpiresAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}
