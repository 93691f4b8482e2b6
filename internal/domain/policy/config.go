package policy

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultWeeklyWindowDays — окно недельного лимита, если per_days не задан.
const DefaultWeeklyWindowDays = 7

type WeeklyLimitConfig struct {
	MaxBookings int `json:"max_bookings"`
	PerDays     int `json:"per_days"`
}

type ConcurrentLimitConfig struct {
	MaxConcurrent int `json:"max_concurrent"`
}

type TrainingRequiredConfig struct {
	TrainingID   string `json:"training_id"`
	TrainingName string `json:"training_name"`
}

type BlackoutPeriodConfig struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// RuleConfig — типизированный вариант rule_config.
// Заполнен ровно один указатель, соответствующий rule_type.
type RuleConfig struct {
	Weekly     *WeeklyLimitConfig
	Concurrent *ConcurrentLimitConfig
	Training   *TrainingRequiredConfig
	Blackout   *BlackoutPeriodConfig
}

// ParseConfig разбирает и валидирует сырой rule_config под заданный rule_type.
// Неподходящая форма -> ErrInvalidConfig.
func ParseConfig(rt RuleType, raw json.RawMessage) (RuleConfig, error) {
	switch rt {
	case RuleWeeklyLimit:
		var c WeeklyLimitConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return RuleConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if c.MaxBookings <= 0 {
			return RuleConfig{}, fmt.Errorf("%w: max_bookings must be positive", ErrInvalidConfig)
		}
		if c.PerDays == 0 {
			c.PerDays = DefaultWeeklyWindowDays
		}
		if c.PerDays < 0 {
			return RuleConfig{}, fmt.Errorf("%w: per_days must be positive", ErrInvalidConfig)
		}
		return RuleConfig{Weekly: &c}, nil

	case RuleConcurrentLimit:
		var c ConcurrentLimitConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return RuleConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if c.MaxConcurrent <= 0 {
			return RuleConfig{}, fmt.Errorf("%w: max_concurrent must be positive", ErrInvalidConfig)
		}
		return RuleConfig{Concurrent: &c}, nil

	case RuleTrainingRequired:
		var c TrainingRequiredConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return RuleConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if c.TrainingID == "" {
			return RuleConfig{}, fmt.Errorf("%w: training_id is required", ErrInvalidConfig)
		}
		return RuleConfig{Training: &c}, nil

	case RuleBlackoutPeriod:
		var c BlackoutPeriodConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return RuleConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if c.StartDate.IsZero() || c.EndDate.IsZero() {
			return RuleConfig{}, fmt.Errorf("%w: start_date and end_date are required", ErrInvalidConfig)
		}
		if c.EndDate.Before(c.StartDate) {
			return RuleConfig{}, fmt.Errorf("%w: end_date before start_date", ErrInvalidConfig)
		}
		return RuleConfig{Blackout: &c}, nil
	}
	return RuleConfig{}, fmt.Errorf("%w: unknown rule type %q", ErrInvalidConfig, rt)
}

// Marshal сериализует заполненный вариант обратно в jsonb.
func (c RuleConfig) Marshal() (json.RawMessage, error) {
	switch {
	case c.Weekly != nil:
		return json.Marshal(c.Weekly)
	case c.Concurrent != nil:
		return json.Marshal(c.Concurrent)
	case c.Training != nil:
		return json.Marshal(c.Training)
	case c.Blackout != nil:
		return json.Marshal(c.Blackout)
	}
	return nil, fmt.Errorf("%w: empty config", ErrInvalidConfig)
}
