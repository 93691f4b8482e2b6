package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MarJone/NCADbook-sub003/internal/domain/fines"
	"github.com/MarJone/NCADbook-sub003/internal/domain/gate"
	"github.com/MarJone/NCADbook-sub003/internal/domain/policy"
	"github.com/MarJone/NCADbook-sub003/internal/domain/strikes"
	"github.com/MarJone/NCADbook-sub003/internal/infra/metrics"
)

type evaluateRequest struct {
	UserID            int64     `json:"user_id"`
	EquipmentID       int64     `json:"equipment_id"`
	EquipmentCategory string    `json:"equipment_category"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`

	AdminOverride *struct {
		AdminID int64  `json:"admin_id"`
		Reason  string `json:"reason"`
	} `json:"admin_override"`
}

// evaluateBooking — главная точка входа: полный вердикт по брони.
// Отказ по политике — это 403 со списком нарушений, не 4xx-ошибка формата.
func (h *Handler) evaluateBooking(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid JSON: "+err.Error())
		return
	}
	if req.UserID <= 0 || req.StartDate.IsZero() || req.EndDate.IsZero() {
		writeError(w, http.StatusBadRequest, CodeValidation, "user_id, start_date and end_date are required")
		return
	}
	if req.EndDate.Before(req.StartDate) {
		writeError(w, http.StatusBadRequest, CodeValidation, "end_date before start_date")
		return
	}

	user, err := h.users.GetByID(r.Context(), req.UserID)
	if err != nil {
		h.log.Error("get user failed", "user_id", req.UserID, "err", err)
		writeDomainError(w, err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "user not found")
		return
	}

	var override *gate.Override
	if req.AdminOverride != nil {
		override = &gate.Override{AdminID: req.AdminOverride.AdminID, Reason: req.AdminOverride.Reason}
	}

	verdict, err := h.gate.EvaluateBookingRequest(r.Context(), user, policy.Request{
		UserID:            req.UserID,
		EquipmentID:       req.EquipmentID,
		EquipmentCategory: req.EquipmentCategory,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
	}, override)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	switch {
	case verdict.Overridden:
		metrics.BookingEvaluations.WithLabelValues("overridden").Inc()
	case verdict.Allowed:
		metrics.BookingEvaluations.WithLabelValues("allowed").Inc()
	default:
		metrics.BookingEvaluations.WithLabelValues("denied").Inc()
	}

	if !verdict.Allowed {
		writeJSON(w, http.StatusForbidden, verdict)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

type checkReturnRequest struct {
	BookingID int64 `json:"booking_id"`
}

type checkReturnResponse struct {
	StrikeIssued bool                 `json:"strike_issued"`
	DaysOverdue  int                  `json:"days_overdue"`
	Issue        *strikes.IssueResult `json:"issue,omitempty"`
	Fine         *fines.Fine          `json:"fine,omitempty"`
}

// checkReturn — автоматический триггер при обработке возврата: при
// просрочке выдаёт страйк и начисляет штраф от одного и того же
// подсчёта суток.
func (h *Handler) checkReturn(w http.ResponseWriter, r *http.Request) {
	var req checkReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid JSON: "+err.Error())
		return
	}
	b, err := h.bookings.GetByID(r.Context(), req.BookingID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "booking not found")
		return
	}

	lc, err := h.strikes.CheckLateReturn(r.Context(), b)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := checkReturnResponse{
		StrikeIssued: lc.StrikeIssued,
		DaysOverdue:  lc.DaysOverdue,
		Issue:        lc.Issue,
	}
	if lc.StrikeIssued {
		metrics.StrikesIssued.WithLabelValues("automatic").Inc()
		fine, err := h.fines.CreateLateFee(r.Context(), b)
		if err != nil {
			// Страйк уже выдан; ошибку начисления не прячем.
			h.log.Error("late fee creation failed", "booking_id", b.ID, "err", err)
			writeDomainError(w, err)
			return
		}
		if fine != nil {
			metrics.FineEvents.WithLabelValues("created").Inc()
		}
		resp.Fine = fine
	}
	writeJSON(w, http.StatusOK, resp)
}
