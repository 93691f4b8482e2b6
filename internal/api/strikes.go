package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MarJone/NCADbook-sub003/internal/domain/strikes"
	"github.com/MarJone/NCADbook-sub003/internal/infra/metrics"
)

func (h *Handler) strikeHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid user id")
		return
	}
	includeRevoked := r.URL.Query().Get("include_revoked") == "true"
	hist, err := h.strikes.History(r.Context(), id, includeRevoked)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if hist == nil {
		hist = []strikes.Record{}
	}
	writeJSON(w, http.StatusOK, hist)
}

func (h *Handler) strikeState(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid user id")
		return
	}
	res, err := h.strikes.CanBook(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type issueStrikeRequest struct {
	UserID      int64  `json:"user_id"`
	BookingID   *int64 `json:"booking_id"`
	DaysOverdue int    `json:"days_overdue"`
	AdminID     int64  `json:"admin_id"`
	Reason      string `json:"reason"`
}

// issueStrike — ручная выдача страйка админом, бронь необязательна.
func (h *Handler) issueStrike(w http.ResponseWriter, r *http.Request) {
	var req issueStrikeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid JSON: "+err.Error())
		return
	}
	if req.UserID <= 0 || req.AdminID <= 0 {
		writeError(w, http.StatusBadRequest, CodeValidation, "user_id and admin_id are required")
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, "reason is required")
		return
	}

	res, err := h.strikes.IssueStrike(r.Context(), req.UserID, req.BookingID, req.DaysOverdue, strikes.ByAdmin(req.AdminID), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.StrikesIssued.WithLabelValues("admin").Inc()
	writeJSON(w, http.StatusCreated, res)
}

type revokeStrikeRequest struct {
	AdminID int64  `json:"admin_id"`
	Reason  string `json:"reason"`
}

func (h *Handler) revokeStrike(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid strike id")
		return
	}
	var req revokeStrikeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid JSON: "+err.Error())
		return
	}
	if req.AdminID <= 0 {
		writeError(w, http.StatusBadRequest, CodeValidation, "admin_id is required")
		return
	}
	res, err := h.strikes.RevokeStrike(r.Context(), id, req.AdminID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type resetStrikesRequest struct {
	AdminID int64  `json:"admin_id"`
	Reason  string `json:"reason"`
}

func (h *Handler) resetStrikes(w http.ResponseWriter, r *http.Request) {
	var req resetStrikesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid JSON: "+err.Error())
		return
	}
	if req.AdminID <= 0 {
		writeError(w, http.StatusBadRequest, CodeValidation, "admin_id is required")
		return
	}
	affected, err := h.strikes.ResetAll(r.Context(), req.AdminID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"affected_students": affected})
}
