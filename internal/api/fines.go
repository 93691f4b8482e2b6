package api

import (
	"encoding/json"
	"net/http"

	"github.com/MarJone/NCADbook-sub003/internal/domain/fines"
	"github.com/MarJone/NCADbook-sub003/internal/infra/metrics"
)

func (h *Handler) listFines(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid user id")
		return
	}
	list, err := h.fines.List(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if list == nil {
		list = []fines.Fine{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) fineSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid user id")
		return
	}
	s, err := h.fines.Summary(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// payFine — заглушка оплаты: реальный платёжный провайдер вне ядра,
// здесь только переход статуса.
func (h *Handler) payFine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid fine id")
		return
	}
	if err := h.fines.MarkPaid(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.FineEvents.WithLabelValues("paid").Inc()
	w.WriteHeader(http.StatusNoContent)
}

type waiveFineRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) waiveFine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid fine id")
		return
	}
	var req waiveFineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid JSON: "+err.Error())
		return
	}
	if err := h.fines.Waive(r.Context(), id, req.Reason); err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.FineEvents.WithLabelValues("waived").Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listOverrides(w http.ResponseWriter, r *http.Request) {
	list, err := h.audit.ListOverrides(r.Context(), queryLimit(r, 100))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
