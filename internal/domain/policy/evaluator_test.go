package policy

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/MarJone/NCADbook-sub003/internal/domain/bookings"
	"github.com/MarJone/NCADbook-sub003/internal/domain/training"
	"github.com/MarJone/NCADbook-sub003/internal/domain/users"
)

type fakeRules struct{ rules []PolicyRule }

func (f *fakeRules) ListActive(_ context.Context) ([]PolicyRule, error) { return f.rules, nil }

type fakeBookings struct{ list []bookings.Booking }

func (f *fakeBookings) ListForUser(_ context.Context, userID int64, flt bookings.Filter) ([]bookings.Booking, error) {
	var out []bookings.Booking
	for _, b := range f.list {
		if b.UserID != userID {
			continue
		}
		if flt.ActiveOnly && !b.Active() {
			continue
		}
		if len(flt.StatusIn) > 0 {
			ok := false
			for _, s := range flt.StatusIn {
				if b.Status == s {
					ok = true
					break
				}
			}
			if !ok {
				continue
			}
		}
		if !flt.StartFrom.IsZero() && b.StartDate.Before(flt.StartFrom) {
			continue
		}
		if !flt.StartTo.IsZero() && b.StartDate.After(flt.StartTo) {
			continue
		}
		if flt.EquipmentCategory != "" && b.EquipmentCategory != flt.EquipmentCategory {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

type fakeTrainings struct{ recs map[string]*training.Record }

func (f *fakeTrainings) GetUserTraining(_ context.Context, _ int64, trainingID string) (*training.Record, error) {
	return f.recs[trainingID], nil
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newEvaluator(rules []PolicyRule, bs *fakeBookings, ts *fakeTrainings) *Evaluator {
	if bs == nil {
		bs = &fakeBookings{}
	}
	if ts == nil {
		ts = &fakeTrainings{}
	}
	e := NewEvaluator(&fakeRules{rules: rules}, bs, ts, slog.Default())
	e.now = func() time.Time { return testNow }
	return e
}

func rawConfig(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func student(id int64) *users.User {
	return &users.User{ID: id, Role: users.RoleStudent, Department: "Moving Image"}
}

func weeklyRule(t *testing.T, maxBookings int) PolicyRule {
	return PolicyRule{
		ID:       1,
		RuleType: RuleWeeklyLimit,
		Config:   rawConfig(t, WeeklyLimitConfig{MaxBookings: maxBookings, PerDays: 7}),
		IsActive: true,
	}
}

func pastBooking(userID int64, daysAgo int) bookings.Booking {
	start := testNow.AddDate(0, 0, -daysAgo)
	return bookings.Booking{
		UserID:    userID,
		Status:    bookings.StatusReturned,
		StartDate: start,
		EndDate:   start.Add(24 * time.Hour),
	}
}

func TestEvaluate_WeeklyLimit(t *testing.T) {
	req := Request{UserID: 10, StartDate: testNow.Add(24 * time.Hour), EndDate: testNow.Add(48 * time.Hour)}

	tests := []struct {
		name          string
		existing      []bookings.Booking
		wantAllowed   bool
		wantCount     int
		wantRemaining int
	}{
		{
			name:          "лимит исчерпан: 3 из 3 за окно",
			existing:      []bookings.Booking{pastBooking(10, 1), pastBooking(10, 3), pastBooking(10, 5)},
			wantAllowed:   false,
			wantCount:     3,
			wantRemaining: 0,
		},
		{
			name:          "под лимитом: 2 из 3",
			existing:      []bookings.Booking{pastBooking(10, 1), pastBooking(10, 3)},
			wantAllowed:   true,
			wantCount:     2,
			wantRemaining: 1,
		},
		{
			name:          "брони вне окна не считаются",
			existing:      []bookings.Booking{pastBooking(10, 8), pastBooking(10, 30)},
			wantAllowed:   true,
			wantCount:     0,
			wantRemaining: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEvaluator([]PolicyRule{weeklyRule(t, 3)}, &fakeBookings{list: tt.existing}, nil)

			res, err := e.Evaluate(context.Background(), student(10), req)
			if err != nil {
				t.Fatalf("Evaluate вернул ошибку: %v", err)
			}
			if res.Weekly.Allowed != tt.wantAllowed {
				t.Errorf("Weekly.Allowed = %v, хотели %v", res.Weekly.Allowed, tt.wantAllowed)
			}
			if res.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, хотели %v", res.Allowed, tt.wantAllowed)
			}
			if got := *res.Weekly.CurrentCount; got != tt.wantCount {
				t.Errorf("CurrentCount = %d, хотели %d", got, tt.wantCount)
			}
			if got := *res.Weekly.Remaining; got != tt.wantRemaining {
				t.Errorf("Remaining = %d, хотели %d", got, tt.wantRemaining)
			}
			if !tt.wantAllowed && res.Weekly.Reason == "" {
				t.Error("Reason пуст при превышении лимита")
			}
		})
	}
}

func TestEvaluate_ConcurrentLimit(t *testing.T) {
	rule := PolicyRule{
		ID:       2,
		RuleType: RuleConcurrentLimit,
		Config:   rawConfig(t, ConcurrentLimitConfig{MaxConcurrent: 2}),
		IsActive: true,
	}
	active := func(userID int64) bookings.Booking {
		return bookings.Booking{UserID: userID, Status: bookings.StatusApproved, StartDate: testNow.AddDate(0, 0, -1)}
	}
	returned := pastBooking(10, 2)

	t.Run("две активных при лимите два — отказ", func(t *testing.T) {
		e := newEvaluator([]PolicyRule{rule}, &fakeBookings{list: []bookings.Booking{active(10), active(10), returned}}, nil)
		res, err := e.Evaluate(context.Background(), student(10), Request{UserID: 10})
		if err != nil {
			t.Fatal(err)
		}
		if res.Concurrent.Allowed {
			t.Error("Concurrent.Allowed = true при исчерпанном лимите")
		}
		if *res.Concurrent.CurrentCount != 2 {
			t.Errorf("CurrentCount = %d, хотели 2 (возвращённые не считаются)", *res.Concurrent.CurrentCount)
		}
	})

	t.Run("одна активная — допуск", func(t *testing.T) {
		e := newEvaluator([]PolicyRule{rule}, &fakeBookings{list: []bookings.Booking{active(10), returned}}, nil)
		res, err := e.Evaluate(context.Background(), student(10), Request{UserID: 10})
		if err != nil {
			t.Fatal(err)
		}
		if !res.Concurrent.Allowed {
			t.Error("Concurrent.Allowed = false при одной активной брони")
		}
	})
}

func TestEvaluate_TrainingRequired(t *testing.T) {
	rule := PolicyRule{
		ID:       3,
		RuleType: RuleTrainingRequired,
		Config:   rawConfig(t, TrainingRequiredConfig{TrainingID: "laser_cutter_induction", TrainingName: "Laser Cutter Induction"}),
		IsActive: true,
	}
	expired := testNow.Add(-time.Hour)
	valid := testNow.Add(365 * 24 * time.Hour)

	tests := []struct {
		name        string
		rec         *training.Record
		wantAllowed bool
		wantExpired bool
	}{
		{name: "инструктаж не пройден", rec: nil, wantAllowed: false, wantExpired: false},
		{
			name:        "инструктаж просрочен",
			rec:         &training.Record{UserID: 10, TrainingID: "laser_cutter_induction", ExpiresAt: &expired},
			wantAllowed: false,
			wantExpired: true,
		},
		{
			name:        "инструктаж действителен",
			rec:         &training.Record{UserID: 10, TrainingID: "laser_cutter_induction", ExpiresAt: &valid},
			wantAllowed: true,
		},
		{
			name:        "бессрочный инструктаж",
			rec:         &training.Record{UserID: 10, TrainingID: "laser_cutter_induction"},
			wantAllowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := &fakeTrainings{recs: map[string]*training.Record{}}
			if tt.rec != nil {
				ts.recs[tt.rec.TrainingID] = tt.rec
			}
			e := newEvaluator([]PolicyRule{rule}, nil, ts)

			res, err := e.Evaluate(context.Background(), student(10), Request{UserID: 10})
			if err != nil {
				t.Fatal(err)
			}
			if res.Training.Allowed != tt.wantAllowed {
				t.Errorf("Training.Allowed = %v, хотели %v", res.Training.Allowed, tt.wantAllowed)
			}
			if res.Training.TrainingExpired != tt.wantExpired {
				t.Errorf("TrainingExpired = %v, хотели %v: непройденный и просроченный различаются", res.Training.TrainingExpired, tt.wantExpired)
			}
		})
	}
}

func TestEvaluate_BlackoutPeriod(t *testing.T) {
	blackout := func(id int64, start, end time.Time) PolicyRule {
		return PolicyRule{
			ID:       id,
			RuleType: RuleBlackoutPeriod,
			Config:   rawConfig(t, BlackoutPeriodConfig{StartDate: start, EndDate: end}),
			IsActive: true,
		}
	}
	day := 24 * time.Hour

	tests := []struct {
		name        string
		reqStart    time.Time
		reqEnd      time.Time
		wantAllowed bool
	}{
		{name: "бронь внутри периода", reqStart: testNow.Add(2 * day), reqEnd: testNow.Add(3 * day), wantAllowed: false},
		{name: "бронь накрывает период целиком", reqStart: testNow, reqEnd: testNow.Add(10 * day), wantAllowed: false},
		{name: "касание границы начала", reqStart: testNow.Add(-2 * day), reqEnd: testNow.Add(day), wantAllowed: false},
		{name: "бронь до периода", reqStart: testNow.Add(-3 * day), reqEnd: testNow.Add(-2 * day), wantAllowed: true},
		{name: "бронь после периода", reqStart: testNow.Add(5 * day), reqEnd: testNow.Add(6 * day), wantAllowed: true},
	}

	rule := blackout(4, testNow.Add(day), testNow.Add(4*day))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEvaluator([]PolicyRule{rule}, nil, nil)
			res, err := e.Evaluate(context.Background(), student(10), Request{UserID: 10, StartDate: tt.reqStart, EndDate: tt.reqEnd})
			if err != nil {
				t.Fatal(err)
			}
			if res.Blackout.Allowed != tt.wantAllowed {
				t.Errorf("Blackout.Allowed = %v, хотели %v", res.Blackout.Allowed, tt.wantAllowed)
			}
		})
	}

	t.Run("проверяются все периоды, не только приоритетный", func(t *testing.T) {
		low := blackout(5, testNow.Add(10*day), testNow.Add(12*day))
		low.Priority = 0
		high := blackout(6, testNow.Add(-5*day), testNow.Add(-4*day))
		high.Priority = 100

		e := newEvaluator([]PolicyRule{low, high}, nil, nil)
		res, err := e.Evaluate(context.Background(), student(10), Request{UserID: 10, StartDate: testNow.Add(11 * day), EndDate: testNow.Add(11 * day)})
		if err != nil {
			t.Fatal(err)
		}
		if res.Blackout.Allowed {
			t.Error("пересечение с низкоприоритетным периодом не поймано")
		}
	})
}

func TestEvaluate_RuleSelection(t *testing.T) {
	dept := "Moving Image"

	t.Run("выше priority побеждает", func(t *testing.T) {
		global := weeklyRule(t, 5)
		strict := PolicyRule{
			ID:       2,
			RuleType: RuleWeeklyLimit,
			Config:   rawConfig(t, WeeklyLimitConfig{MaxBookings: 1, PerDays: 7}),
			Priority: 10,
			IsActive: true,
		}
		e := newEvaluator([]PolicyRule{global, strict}, &fakeBookings{list: []bookings.Booking{pastBooking(10, 1)}}, nil)

		res, err := e.Evaluate(context.Background(), student(10), Request{UserID: 10})
		if err != nil {
			t.Fatal(err)
		}
		if res.Weekly.Allowed {
			t.Error("сработал глобальный лимит вместо приоритетного")
		}
		if *res.Weekly.LimitCount != 1 {
			t.Errorf("LimitCount = %d, хотели 1", *res.Weekly.LimitCount)
		}
	})

	t.Run("при равном priority побеждает точный scope", func(t *testing.T) {
		global := weeklyRule(t, 5)
		deptRule := PolicyRule{
			ID:                  2,
			RuleType:            RuleWeeklyLimit,
			Config:              rawConfig(t, WeeklyLimitConfig{MaxBookings: 2, PerDays: 7}),
			AppliesToDepartment: &dept,
			IsActive:            true,
		}
		e := newEvaluator([]PolicyRule{global, deptRule}, nil, nil)

		res, err := e.Evaluate(context.Background(), student(10), Request{UserID: 10})
		if err != nil {
			t.Fatal(err)
		}
		if *res.Weekly.LimitCount != 2 {
			t.Errorf("LimitCount = %d, хотели 2 (правило департамента точнее глобального)", *res.Weekly.LimitCount)
		}
	})

	t.Run("правило чужого scope не применяется", func(t *testing.T) {
		other := "Sculpture"
		rule := weeklyRule(t, 1)
		rule.AppliesToDepartment = &other
		e := newEvaluator([]PolicyRule{rule}, &fakeBookings{list: []bookings.Booking{pastBooking(10, 1), pastBooking(10, 2)}}, nil)

		res, err := e.Evaluate(context.Background(), student(10), Request{UserID: 10})
		if err != nil {
			t.Fatal(err)
		}
		if !res.Weekly.Allowed {
			t.Error("правило другого департамента ограничило пользователя")
		}
	})
}

func TestEvaluate_Exemption(t *testing.T) {
	rule := weeklyRule(t, 1)
	rule.ExemptedUsers = []int64{10}
	e := newEvaluator([]PolicyRule{rule}, &fakeBookings{list: []bookings.Booking{pastBooking(10, 1), pastBooking(10, 2)}}, nil)

	res, err := e.Evaluate(context.Background(), student(10), Request{UserID: 10})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Weekly.Allowed {
		t.Error("исключённый пользователь получил отказ")
	}
	if res.Weekly.Reason != "user is exempt from this rule" {
		t.Errorf("Reason = %q", res.Weekly.Reason)
	}
}

func TestEvaluate_MalformedConfigSkipped(t *testing.T) {
	broken := PolicyRule{
		ID:       1,
		RuleType: RuleWeeklyLimit,
		Config:   json.RawMessage(`{"max_bookings": -5}`),
		Priority: 10,
		IsActive: true,
	}
	good := weeklyRule(t, 2)
	e := newEvaluator([]PolicyRule{broken, good}, &fakeBookings{list: []bookings.Booking{pastBooking(10, 1), pastBooking(10, 2)}}, nil)

	res, err := e.Evaluate(context.Background(), student(10), Request{UserID: 10})
	if err != nil {
		t.Fatal(err)
	}
	// битое правило пропущено, сработало следующее по порядку
	if res.Weekly.Allowed {
		t.Error("лимит исправного правила не применился")
	}
	if *res.Weekly.LimitCount != 2 {
		t.Errorf("LimitCount = %d, хотели 2", *res.Weekly.LimitCount)
	}
}

func TestEvaluate_NoRulesAllowsEverything(t *testing.T) {
	e := newEvaluator(nil, nil, nil)
	res, err := e.Evaluate(context.Background(), student(10), Request{UserID: 10})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed || !res.Weekly.Allowed || !res.Concurrent.Allowed || !res.Training.Allowed || !res.Blackout.Allowed {
		t.Errorf("без правил ожидали полный допуск, получили %+v", res)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	e := newEvaluator(
		[]PolicyRule{weeklyRule(t, 3)},
		&fakeBookings{list: []bookings.Booking{pastBooking(10, 1), pastBooking(10, 2), pastBooking(10, 3)}},
		nil,
	)
	req := Request{UserID: 10}

	first, err := e.Evaluate(context.Background(), student(10), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Evaluate(context.Background(), student(10), req)
	if err != nil {
		t.Fatal(err)
	}
	if first.Allowed != second.Allowed || *first.Weekly.CurrentCount != *second.Weekly.CurrentCount {
		t.Errorf("повторная оценка дала другой результат: %+v vs %+v", first, second)
	}
}
