package api

import (
	"fmt"
	"net/http"
)

func (h *Handler) penaltyReport(w http.ResponseWriter, r *http.Request) {
	data, err := h.reports.Penalties(r.Context())
	if err != nil {
		h.log.Error("penalty report failed", "err", err)
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.reports.Filename()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
