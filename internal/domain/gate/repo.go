package gate

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo { return &AuditRepo{pool: pool} }

func (r *AuditRepo) RecordOverride(ctx context.Context, rec OverrideAudit) error {
	raw, err := json.Marshal(rec.Violations)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO override_audit (user_id, actor_id, reason, violations, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, rec.UserID, rec.ActorID, rec.Reason, raw, rec.CreatedAt)
	return err
}

// ListOverrides — история обходов для админки, новые сверху.
func (r *AuditRepo) ListOverrides(ctx context.Context, limit int) ([]OverrideAudit, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, actor_id, reason, violations, created_at
		FROM override_audit ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OverrideAudit
	for rows.Next() {
		var rec OverrideAudit
		var raw []byte
		if err := rows.Scan(&rec.UserID, &rec.ActorID, &rec.Reason, &raw, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &rec.Violations); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
