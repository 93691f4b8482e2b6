package api

import (
	"encoding/json"
	"net/http"

	"github.com/MarJone/NCADbook-sub003/internal/domain/policy"
)

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	f := policy.ListFilter{
		RuleType:        policy.RuleType(r.URL.Query().Get("rule_type")),
		IncludeInactive: r.URL.Query().Get("include_inactive") == "true",
	}
	if f.RuleType != "" && !policy.ValidRuleType(f.RuleType) {
		writeError(w, http.StatusBadRequest, CodeValidation, "unknown rule_type")
		return
	}
	rules, err := h.rules.List(r.Context(), f)
	if err != nil {
		h.log.Error("list rules failed", "err", err)
		writeDomainError(w, err)
		return
	}
	if rules == nil {
		rules = []policy.PolicyRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (h *Handler) getRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid rule id")
		return
	}
	rule, err := h.rules.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

type createRuleRequest struct {
	RuleType            policy.RuleType `json:"rule_type"`
	Config              json.RawMessage `json:"rule_config"`
	AppliesToRole       *string         `json:"applies_to_role"`
	AppliesToDepartment *string         `json:"applies_to_department"`
	AppliesToCategory   *string         `json:"applies_to_equipment_category"`
	Priority            int             `json:"priority"`
	ExemptedUsers       []int64         `json:"exempted_users"`
	CreatedBy           int64           `json:"created_by"`
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid JSON: "+err.Error())
		return
	}
	rule, err := h.rules.Create(r.Context(), policy.CreateInput{
		RuleType:            req.RuleType,
		Config:              req.Config,
		AppliesToRole:       req.AppliesToRole,
		AppliesToDepartment: req.AppliesToDepartment,
		AppliesToCategory:   req.AppliesToCategory,
		Priority:            req.Priority,
		ExemptedUsers:       req.ExemptedUsers,
		CreatedBy:           req.CreatedBy,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.log.Info("rule created", "rule_id", rule.ID, "rule_type", rule.RuleType, "created_by", req.CreatedBy)
	writeJSON(w, http.StatusCreated, rule)
}

type updateRuleRequest struct {
	Config              json.RawMessage `json:"rule_config"`
	AppliesToRole       *string         `json:"applies_to_role"`
	AppliesToDepartment *string         `json:"applies_to_department"`
	AppliesToCategory   *string         `json:"applies_to_equipment_category"`
	Priority            *int            `json:"priority"`
	ExemptedUsers       []int64         `json:"exempted_users"`
	ClearScope          bool            `json:"clear_scope"`
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid rule id")
		return
	}
	var req updateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid JSON: "+err.Error())
		return
	}
	rule, err := h.rules.Update(r.Context(), id, policy.Patch{
		Config:              req.Config,
		AppliesToRole:       req.AppliesToRole,
		AppliesToDepartment: req.AppliesToDepartment,
		AppliesToCategory:   req.AppliesToCategory,
		Priority:            req.Priority,
		ExemptedUsers:       req.ExemptedUsers,
		ClearScope:          req.ClearScope,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *Handler) toggleRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid rule id")
		return
	}
	rule, err := h.rules.ToggleActive(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// deleteRule — мягкое удаление: правило деактивируется, строка остаётся.
func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid rule id")
		return
	}
	if err := h.rules.SoftDelete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
