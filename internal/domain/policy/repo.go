package policy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const ruleColumns = `id, rule_type, rule_config, applies_to_role, applies_to_department,
	applies_to_equipment_category, priority, is_active, exempted_users, created_by, created_at, updated_at`

func scanRule(row pgx.Row) (*PolicyRule, error) {
	var r PolicyRule
	if err := row.Scan(
		&r.ID, &r.RuleType, &r.Config, &r.AppliesToRole, &r.AppliesToDepartment,
		&r.AppliesToCategory, &r.Priority, &r.IsActive, &r.ExemptedUsers,
		&r.CreatedBy, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

type ListFilter struct {
	RuleType        RuleType
	IncludeInactive bool
}

func (r *Repo) List(ctx context.Context, f ListFilter) ([]PolicyRule, error) {
	q := `SELECT ` + ruleColumns + ` FROM policy_rules WHERE 1=1`
	var args []any
	if f.RuleType != "" {
		args = append(args, f.RuleType)
		q += ` AND rule_type = $1`
	}
	if !f.IncludeInactive {
		q += ` AND is_active = TRUE`
	}
	q += ` ORDER BY priority DESC, id`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PolicyRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rule)
	}
	return out, rows.Err()
}

// ListActive — выборка для Policy Evaluator.
func (r *Repo) ListActive(ctx context.Context) ([]PolicyRule, error) {
	return r.List(ctx, ListFilter{})
}

func (r *Repo) GetByID(ctx context.Context, id int64) (*PolicyRule, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM policy_rules WHERE id = $1`, id)
	return scanRule(row)
}

type CreateInput struct {
	RuleType            RuleType
	Config              json.RawMessage
	AppliesToRole       *string
	AppliesToDepartment *string
	AppliesToCategory   *string
	Priority            int
	ExemptedUsers       []int64
	CreatedBy           int64
}

func (r *Repo) Create(ctx context.Context, in CreateInput) (*PolicyRule, error) {
	if !ValidRuleType(in.RuleType) {
		return nil, fmt.Errorf("%w: unknown rule type %q", ErrValidation, in.RuleType)
	}
	cfg, err := ParseConfig(in.RuleType, in.Config)
	if err != nil {
		return nil, err
	}
	// Нормализуем конфиг (проставленные дефолты) перед записью.
	normalized, err := cfg.Marshal()
	if err != nil {
		return nil, err
	}
	if in.ExemptedUsers == nil {
		in.ExemptedUsers = []int64{}
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO policy_rules
			(rule_type, rule_config, applies_to_role, applies_to_department,
			 applies_to_equipment_category, priority, is_active, exempted_users, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,TRUE,$7,$8)
		RETURNING `+ruleColumns,
		in.RuleType, normalized, in.AppliesToRole, in.AppliesToDepartment,
		in.AppliesToCategory, in.Priority, in.ExemptedUsers, in.CreatedBy,
	)
	return scanRule(row)
}

// Patch — частичное обновление правила. rule_type менять нельзя.
type Patch struct {
	Config              json.RawMessage
	AppliesToRole       *string
	AppliesToDepartment *string
	AppliesToCategory   *string
	Priority            *int
	ExemptedUsers       []int64
	ClearScope          bool // сбросить все поля scope перед применением новых
}

// applyPatch накладывает патч на прочитанную запись. Чистая функция:
// возвращает итоговые значения колонок, строку не мутирует.
func applyPatch(existing PolicyRule, p Patch) (PolicyRule, error) {
	next := existing

	if p.Config != nil {
		// Конфиг проверяется против неизменяемого rule_type существующей записи.
		cfg, err := ParseConfig(existing.RuleType, p.Config)
		if err != nil {
			return PolicyRule{}, err
		}
		raw, err := cfg.Marshal()
		if err != nil {
			return PolicyRule{}, err
		}
		next.Config = raw
	}

	if p.ClearScope {
		next.AppliesToRole, next.AppliesToDepartment, next.AppliesToCategory = nil, nil, nil
	}
	if p.AppliesToRole != nil {
		next.AppliesToRole = p.AppliesToRole
	}
	if p.AppliesToDepartment != nil {
		next.AppliesToDepartment = p.AppliesToDepartment
	}
	if p.AppliesToCategory != nil {
		next.AppliesToCategory = p.AppliesToCategory
	}
	if p.Priority != nil {
		next.Priority = *p.Priority
	}
	if p.ExemptedUsers != nil {
		next.ExemptedUsers = p.ExemptedUsers
	}
	return next, nil
}

// Update — read-modify-write с условной записью: UPDATE проходит только
// если updated_at не сдвинулся с момента чтения. Параллельный патч
// получает ErrStorageConflict и перечитывает, как в страйковом CAS.
func (r *Repo) Update(ctx context.Context, id int64, p Patch) (*PolicyRule, error) {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := applyPatch(*existing, p)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE policy_rules SET
			rule_config = $2,
			applies_to_role = $3,
			applies_to_department = $4,
			applies_to_equipment_category = $5,
			priority = $6,
			exempted_users = $7,
			updated_at = now()
		WHERE id = $1 AND updated_at = $8
		RETURNING `+ruleColumns,
		id, next.Config, next.AppliesToRole, next.AppliesToDepartment,
		next.AppliesToCategory, next.Priority, next.ExemptedUsers, existing.UpdatedAt,
	)
	rule, err := scanRule(row)
	if err == ErrNotFound {
		// Строка есть, но updated_at сдвинулся — значит, нас опередили.
		if _, getErr := r.GetByID(ctx, id); getErr == nil {
			return nil, ErrStorageConflict
		}
		return nil, ErrNotFound
	}
	return rule, err
}

func (r *Repo) ToggleActive(ctx context.Context, id int64) (*PolicyRule, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE policy_rules SET is_active = NOT is_active, updated_at = now()
		WHERE id = $1
		RETURNING `+ruleColumns, id)
	return scanRule(row)
}

// SoftDelete деактивирует правило. Физически строки не удаляем:
// на них могут ссылаться исторические записи.
func (r *Repo) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE policy_rules SET is_active = FALSE, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
