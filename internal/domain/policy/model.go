package policy

import (
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/MarJone/NCADbook-sub003/internal/domain/users"
)

var (
	ErrNotFound        = errors.New("policy: rule not found")
	ErrInvalidConfig   = errors.New("policy: invalid rule config")
	ErrValidation      = errors.New("policy: validation failed")
	ErrStorageConflict = errors.New("policy: concurrent rule update, retry")
)

type RuleType string

const (
	RuleWeeklyLimit      RuleType = "weekly_limit"
	RuleConcurrentLimit  RuleType = "concurrent_limit"
	RuleTrainingRequired RuleType = "training_required"
	RuleBlackoutPeriod   RuleType = "blackout_period"
)

func ValidRuleType(rt RuleType) bool {
	switch rt {
	case RuleWeeklyLimit, RuleConcurrentLimit, RuleTrainingRequired, RuleBlackoutPeriod:
		return true
	}
	return false
}

// PolicyRule — настроенное админом правило.
// rule_type неизменяем после создания; config хранится как jsonb
// и разбирается в типизированный вариант через ParseConfig.
type PolicyRule struct {
	ID                  int64           `json:"id"`
	RuleType            RuleType        `json:"rule_type"`
	Config              json.RawMessage `json:"rule_config"`
	AppliesToRole       *string         `json:"applies_to_role,omitempty"`
	AppliesToDepartment *string         `json:"applies_to_department,omitempty"`
	AppliesToCategory   *string         `json:"applies_to_equipment_category,omitempty"`
	Priority            int             `json:"priority"`
	IsActive            bool            `json:"is_active"`
	ExemptedUsers       []int64         `json:"exempted_users"`
	CreatedBy           int64           `json:"created_by"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// AppliesTo проверяет попадание пользователя/оборудования в scope правила.
// nil в поле scope означает «для всех».
func (r PolicyRule) AppliesTo(role users.Role, department, category string) bool {
	if r.AppliesToRole != nil && *r.AppliesToRole != string(role) {
		return false
	}
	if r.AppliesToDepartment != nil && *r.AppliesToDepartment != department {
		return false
	}
	if r.AppliesToCategory != nil && *r.AppliesToCategory != category {
		return false
	}
	return true
}

// Specificity — вес точности scope для разрешения конфликтов при равном
// priority: категория оборудования > департамент > роль > глобальное.
func (r PolicyRule) Specificity() int {
	switch {
	case r.AppliesToCategory != nil:
		return 3
	case r.AppliesToDepartment != nil:
		return 2
	case r.AppliesToRole != nil:
		return 1
	}
	return 0
}

func (r PolicyRule) Exempts(userID int64) bool {
	return slices.Contains(r.ExemptedUsers, userID)
}
