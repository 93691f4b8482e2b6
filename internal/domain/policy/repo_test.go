package policy

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestApplyPatch(t *testing.T) {
	role := "student"
	dept := "Moving Image"
	prio := 5

	base := PolicyRule{
		ID:            1,
		RuleType:      RuleWeeklyLimit,
		Config:        json.RawMessage(`{"max_bookings":3,"per_days":7}`),
		AppliesToRole: &role,
		Priority:      0,
		ExemptedUsers: []int64{42},
	}

	t.Run("пустой патч ничего не меняет", func(t *testing.T) {
		next, err := applyPatch(base, Patch{})
		if err != nil {
			t.Fatal(err)
		}
		if string(next.Config) != string(base.Config) || next.Priority != base.Priority {
			t.Errorf("next = %+v", next)
		}
		if next.AppliesToRole != base.AppliesToRole {
			t.Error("scope изменился без патча")
		}
	})

	t.Run("патч меняет только свои поля", func(t *testing.T) {
		next, err := applyPatch(base, Patch{Priority: &prio})
		if err != nil {
			t.Fatal(err)
		}
		if next.Priority != 5 {
			t.Errorf("Priority = %d, хотели 5", next.Priority)
		}
		if string(next.Config) != string(base.Config) {
			t.Error("конфиг затёрт патчем приоритета")
		}
		if base.Priority != 0 {
			t.Error("applyPatch мутировал исходную запись")
		}
	})

	t.Run("новый конфиг валидируется против старого rule_type", func(t *testing.T) {
		_, err := applyPatch(base, Patch{Config: json.RawMessage(`{"max_bookings":0}`)})
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("err = %v, хотели ErrInvalidConfig", err)
		}
	})

	t.Run("конфиг нормализуется при записи", func(t *testing.T) {
		next, err := applyPatch(base, Patch{Config: json.RawMessage(`{"max_bookings":2}`)})
		if err != nil {
			t.Fatal(err)
		}
		var c WeeklyLimitConfig
		if err := json.Unmarshal(next.Config, &c); err != nil {
			t.Fatal(err)
		}
		if c.PerDays != DefaultWeeklyWindowDays {
			t.Errorf("PerDays = %d, хотели дефолт %d", c.PerDays, DefaultWeeklyWindowDays)
		}
	})

	t.Run("clear_scope с одновременной установкой", func(t *testing.T) {
		next, err := applyPatch(base, Patch{ClearScope: true, AppliesToDepartment: &dept})
		if err != nil {
			t.Fatal(err)
		}
		if next.AppliesToRole != nil {
			t.Error("роль не сброшена")
		}
		if next.AppliesToDepartment == nil || *next.AppliesToDepartment != dept {
			t.Errorf("департамент = %v", next.AppliesToDepartment)
		}
	})

	t.Run("пустой срез исключений затирает старый", func(t *testing.T) {
		next, err := applyPatch(base, Patch{ExemptedUsers: []int64{}})
		if err != nil {
			t.Fatal(err)
		}
		if len(next.ExemptedUsers) != 0 {
			t.Errorf("ExemptedUsers = %v, хотели пустой список", next.ExemptedUsers)
		}
	})
}
