package gate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/MarJone/NCADbook-sub003/internal/domain/fines"
	"github.com/MarJone/NCADbook-sub003/internal/domain/policy"
	"github.com/MarJone/NCADbook-sub003/internal/domain/strikes"
	"github.com/MarJone/NCADbook-sub003/internal/domain/users"
)

var ErrMissingReason = errors.New("gate: override reason is required")

type ViolationType string

const (
	ViolationWeeklyLimit      ViolationType = "weekly_limit_exceeded"
	ViolationConcurrentLimit  ViolationType = "concurrent_limit_exceeded"
	ViolationTrainingRequired ViolationType = "training_required"
	ViolationTrainingExpired  ViolationType = "training_expired"
	ViolationBlackoutPeriod   ViolationType = "blackout_period"
	ViolationStrikeRestricted ViolationType = "strike_restricted"
	ViolationAccountHold      ViolationType = "account_hold"
)

type Violation struct {
	Type    ViolationType  `json:"type"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Override — явный админский обход всех нарушений. Без причины не принимается.
type Override struct {
	AdminID int64
	Reason  string
}

// OverrideAudit — след обхода: кто, почему и что именно было обойдено.
type OverrideAudit struct {
	UserID     int64       `json:"user_id"`
	ActorID    int64       `json:"actor_id"`
	Reason     string      `json:"reason"`
	Violations []Violation `json:"violations"`
	CreatedAt  time.Time   `json:"created_at"`
}

type AuditStore interface {
	RecordOverride(ctx context.Context, rec OverrideAudit) error
}

// Интерфейсы трёх подсистем, которые композирует гейт.
type StrikeChecker interface {
	CanBook(ctx context.Context, userID int64) (strikes.CanBookResult, error)
}

type HoldChecker interface {
	AccountHold(ctx context.Context, userID int64) (fines.Hold, error)
}

type PolicyEvaluator interface {
	Evaluate(ctx context.Context, user *users.User, req policy.Request) (policy.Result, error)
}

type Verdict struct {
	Allowed    bool        `json:"allowed"`
	Overridden bool        `json:"overridden,omitempty"`
	Violations []Violation `json:"violations"`
}

type Gate struct {
	strikes StrikeChecker
	fines   HoldChecker
	policy  PolicyEvaluator
	audit   AuditStore
	log     *slog.Logger
	now     func() time.Time
}

func New(sc StrikeChecker, hc HoldChecker, pe PolicyEvaluator, audit AuditStore, log *slog.Logger) *Gate {
	return &Gate{strikes: sc, fines: hc, policy: pe, audit: audit, log: log, now: time.Now}
}

// EvaluateBookingRequest собирает ПОЛНЫЙ список нарушений: страйки,
// блокировка по штрафам, затем все четыре проверки политик — без
// short-circuit, чтобы UI показал всё сразу. Отказ — не ошибка.
func (g *Gate) EvaluateBookingRequest(ctx context.Context, user *users.User, req policy.Request, override *Override) (Verdict, error) {
	if override != nil && strings.TrimSpace(override.Reason) == "" {
		return Verdict{}, ErrMissingReason
	}

	var violations []Violation

	sc, err := g.strikes.CanBook(ctx, user.ID)
	if err != nil {
		return Verdict{}, err
	}
	if !sc.CanBook {
		violations = append(violations, Violation{
			Type:    ViolationStrikeRestricted,
			Message: sc.Reason,
			Details: map[string]any{
				"strike_count":    sc.StrikeCount,
				"blacklist_until": sc.BlacklistUntil,
			},
		})
	}

	hold, err := g.fines.AccountHold(ctx, user.ID)
	if err != nil {
		return Verdict{}, err
	}
	if hold.Hold {
		violations = append(violations, Violation{
			Type:    ViolationAccountHold,
			Message: hold.Reason,
		})
	}

	res, err := g.policy.Evaluate(ctx, user, req)
	if err != nil {
		return Verdict{}, err
	}
	violations = append(violations, policyViolations(res)...)

	if len(violations) == 0 {
		return Verdict{Allowed: true}, nil
	}

	if override != nil {
		rec := OverrideAudit{
			UserID:     user.ID,
			ActorID:    override.AdminID,
			Reason:     override.Reason,
			Violations: violations,
			CreatedAt:  g.now(),
		}
		if err := g.audit.RecordOverride(ctx, rec); err != nil {
			return Verdict{}, err
		}
		g.log.Info("booking violations overridden",
			"user_id", user.ID,
			"admin_id", override.AdminID,
			"reason", override.Reason,
			"violations", len(violations),
		)
		return Verdict{Allowed: true, Overridden: true, Violations: violations}, nil
	}

	return Verdict{Allowed: false, Violations: violations}, nil
}

func policyViolations(res policy.Result) []Violation {
	var out []Violation

	if !res.Weekly.Allowed {
		out = append(out, Violation{
			Type:    ViolationWeeklyLimit,
			Message: res.Weekly.Reason,
			Details: limitDetails(res.Weekly),
		})
	}
	if !res.Concurrent.Allowed {
		out = append(out, Violation{
			Type:    ViolationConcurrentLimit,
			Message: res.Concurrent.Reason,
			Details: limitDetails(res.Concurrent),
		})
	}
	if !res.Training.Allowed {
		t := ViolationTrainingRequired
		if res.Training.TrainingExpired {
			t = ViolationTrainingExpired
		}
		out = append(out, Violation{Type: t, Message: res.Training.Reason})
	}
	if !res.Blackout.Allowed {
		out = append(out, Violation{Type: ViolationBlackoutPeriod, Message: res.Blackout.Reason})
	}
	return out
}

func limitDetails(c policy.RuleCheck) map[string]any {
	d := map[string]any{}
	if c.CurrentCount != nil {
		d["current_count"] = *c.CurrentCount
	}
	if c.LimitCount != nil {
		d["limit_count"] = *c.LimitCount
	}
	if c.Remaining != nil {
		d["remaining"] = *c.Remaining
	}
	return d
}
