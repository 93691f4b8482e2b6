package policy

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/MarJone/NCADbook-sub003/internal/domain/bookings"
	"github.com/MarJone/NCADbook-sub003/internal/domain/training"
	"github.com/MarJone/NCADbook-sub003/internal/domain/users"
)

// Хранилища-коллабораторы. Ядро их только читает; транзакционность
// и таймауты — забота вызывающей стороны.
type BookingStore interface {
	ListForUser(ctx context.Context, userID int64, f bookings.Filter) ([]bookings.Booking, error)
}

type TrainingStore interface {
	GetUserTraining(ctx context.Context, userID int64, trainingID string) (*training.Record, error)
}

type RuleSource interface {
	ListActive(ctx context.Context) ([]PolicyRule, error)
}

// Request — проверяемая бронь. Сама бронь ещё не создана.
type Request struct {
	UserID            int64
	EquipmentID       int64
	EquipmentCategory string
	StartDate         time.Time
	EndDate           time.Time
}

type RuleCheck struct {
	Allowed         bool   `json:"allowed"`
	RuleName        string `json:"rule_name,omitempty"`
	CurrentCount    *int   `json:"current_count,omitempty"`
	LimitCount      *int   `json:"limit_count,omitempty"`
	Remaining       *int   `json:"remaining,omitempty"`
	Reason          string `json:"reason,omitempty"`
	TrainingExpired bool   `json:"training_expired,omitempty"`
}

type Result struct {
	Weekly     RuleCheck `json:"weekly"`
	Concurrent RuleCheck `json:"concurrent"`
	Training   RuleCheck `json:"training"`
	Blackout   RuleCheck `json:"blackout"`
	Allowed    bool      `json:"allowed"`
}

type Evaluator struct {
	rules     RuleSource
	bookings  BookingStore
	trainings TrainingStore
	log       *slog.Logger
	now       func() time.Time
}

func NewEvaluator(rules RuleSource, bs BookingStore, ts TrainingStore, log *slog.Logger) *Evaluator {
	return &Evaluator{rules: rules, bookings: bs, trainings: ts, log: log, now: time.Now}
}

// Evaluate прогоняет все четыре типа правил независимо, без short-circuit:
// вызывающей стороне нужен полный список нарушений за один проход.
// Недопуск брони — не ошибка; error только на сломанном хранилище.
func (e *Evaluator) Evaluate(ctx context.Context, user *users.User, req Request) (Result, error) {
	all, err := e.rules.ListActive(ctx)
	if err != nil {
		return Result{}, err
	}

	applicable := make(map[RuleType][]PolicyRule)
	for _, r := range all {
		if r.AppliesTo(user.Role, user.Department, req.EquipmentCategory) {
			applicable[r.RuleType] = append(applicable[r.RuleType], r)
		}
	}
	// Выше priority — раньше; при равенстве побеждает более точный scope.
	for rt := range applicable {
		slices.SortFunc(applicable[rt], func(a, b PolicyRule) int {
			if a.Priority != b.Priority {
				return b.Priority - a.Priority
			}
			return b.Specificity() - a.Specificity()
		})
	}

	var res Result
	if res.Weekly, err = e.checkWeekly(ctx, user, req, applicable[RuleWeeklyLimit]); err != nil {
		return Result{}, err
	}
	if res.Concurrent, err = e.checkConcurrent(ctx, user, req, applicable[RuleConcurrentLimit]); err != nil {
		return Result{}, err
	}
	if res.Training, err = e.checkTraining(ctx, user, applicable[RuleTrainingRequired]); err != nil {
		return Result{}, err
	}
	res.Blackout = e.checkBlackout(user, req, applicable[RuleBlackoutPeriod])

	res.Allowed = res.Weekly.Allowed && res.Concurrent.Allowed && res.Training.Allowed && res.Blackout.Allowed
	return res, nil
}

// pick выбирает первое правило с разбираемым конфигом.
// Битый конфиг — warning в лог и переход к следующему (fail-open для
// сломанного правила, но не для корректно заданного лимита).
func (e *Evaluator) pick(rules []PolicyRule) (PolicyRule, RuleConfig, bool) {
	for _, r := range rules {
		cfg, err := ParseConfig(r.RuleType, r.Config)
		if err != nil {
			e.log.Warn("skipping rule with malformed config", "rule_id", r.ID, "rule_type", r.RuleType, "err", err)
			continue
		}
		return r, cfg, true
	}
	return PolicyRule{}, RuleConfig{}, false
}

func (e *Evaluator) checkWeekly(ctx context.Context, user *users.User, req Request, rules []PolicyRule) (RuleCheck, error) {
	rule, cfg, ok := e.pick(rules)
	if !ok {
		return RuleCheck{Allowed: true, RuleName: string(RuleWeeklyLimit)}, nil
	}
	if rule.Exempts(user.ID) {
		return RuleCheck{Allowed: true, RuleName: string(RuleWeeklyLimit), Reason: "user is exempt from this rule"}, nil
	}

	f := bookings.Filter{
		StatusIn:  []bookings.Status{bookings.StatusPending, bookings.StatusApproved, bookings.StatusReturned},
		StartFrom: e.now().AddDate(0, 0, -cfg.Weekly.PerDays),
		StartTo:   e.now(),
	}
	if rule.AppliesToCategory != nil {
		f.EquipmentCategory = *rule.AppliesToCategory
	}
	list, err := e.bookings.ListForUser(ctx, user.ID, f)
	if err != nil {
		return RuleCheck{}, err
	}

	count := len(list)
	limit := cfg.Weekly.MaxBookings
	remaining := max(limit-count, 0)
	check := RuleCheck{
		Allowed:      count < limit,
		RuleName:     string(RuleWeeklyLimit),
		CurrentCount: &count,
		LimitCount:   &limit,
		Remaining:    &remaining,
	}
	if !check.Allowed {
		check.Reason = fmt.Sprintf("Weekly booking limit reached: %d of %d in the last %d days", count, limit, cfg.Weekly.PerDays)
	}
	return check, nil
}

func (e *Evaluator) checkConcurrent(ctx context.Context, user *users.User, req Request, rules []PolicyRule) (RuleCheck, error) {
	rule, cfg, ok := e.pick(rules)
	if !ok {
		return RuleCheck{Allowed: true, RuleName: string(RuleConcurrentLimit)}, nil
	}
	if rule.Exempts(user.ID) {
		return RuleCheck{Allowed: true, RuleName: string(RuleConcurrentLimit), Reason: "user is exempt from this rule"}, nil
	}

	f := bookings.Filter{ActiveOnly: true}
	if rule.AppliesToCategory != nil {
		f.EquipmentCategory = *rule.AppliesToCategory
	}
	list, err := e.bookings.ListForUser(ctx, user.ID, f)
	if err != nil {
		return RuleCheck{}, err
	}

	count := len(list)
	limit := cfg.Concurrent.MaxConcurrent
	remaining := max(limit-count, 0)
	check := RuleCheck{
		Allowed:      count < limit,
		RuleName:     string(RuleConcurrentLimit),
		CurrentCount: &count,
		LimitCount:   &limit,
		Remaining:    &remaining,
	}
	if !check.Allowed {
		check.Reason = fmt.Sprintf("Concurrent booking limit reached: %d of %d — wait for existing bookings to complete", count, limit)
	}
	return check, nil
}

func (e *Evaluator) checkTraining(ctx context.Context, user *users.User, rules []PolicyRule) (RuleCheck, error) {
	rule, cfg, ok := e.pick(rules)
	if !ok {
		return RuleCheck{Allowed: true, RuleName: string(RuleTrainingRequired)}, nil
	}
	if rule.Exempts(user.ID) {
		return RuleCheck{Allowed: true, RuleName: string(RuleTrainingRequired), Reason: "user is exempt from this rule"}, nil
	}

	rec, err := e.trainings.GetUserTraining(ctx, user.ID, cfg.Training.TrainingID)
	if err != nil {
		return RuleCheck{}, err
	}
	name := cfg.Training.TrainingName
	if name == "" {
		name = cfg.Training.TrainingID
	}
	switch {
	case rec == nil:
		return RuleCheck{
			Allowed:  false,
			RuleName: string(RuleTrainingRequired),
			Reason:   fmt.Sprintf("Complete required training %q before booking this equipment", name),
		}, nil
	case rec.Expired(e.now()):
		return RuleCheck{
			Allowed:         false,
			RuleName:        string(RuleTrainingRequired),
			TrainingExpired: true,
			Reason:          fmt.Sprintf("Training %q has expired — renew it before booking", name),
		}, nil
	}
	return RuleCheck{Allowed: true, RuleName: string(RuleTrainingRequired)}, nil
}

// checkBlackout, в отличие от лимитов, проверяет пересечение со ВСЕМИ
// применимыми активными периодами, а не только с самым приоритетным.
func (e *Evaluator) checkBlackout(user *users.User, req Request, rules []PolicyRule) RuleCheck {
	for _, r := range rules {
		cfg, err := ParseConfig(r.RuleType, r.Config)
		if err != nil {
			e.log.Warn("skipping rule with malformed config", "rule_id", r.ID, "rule_type", r.RuleType, "err", err)
			continue
		}
		if r.Exempts(user.ID) {
			continue
		}
		b := cfg.Blackout
		if !req.StartDate.After(b.EndDate) && !req.EndDate.Before(b.StartDate) {
			return RuleCheck{
				Allowed:  false,
				RuleName: string(RuleBlackoutPeriod),
				Reason: fmt.Sprintf("Equipment is unavailable during the blackout period %s to %s",
					b.StartDate.Format("2006-01-02"), b.EndDate.Format("2006-01-02")),
			}
		}
	}
	return RuleCheck{Allowed: true, RuleName: string(RuleBlackoutPeriod)}
}
