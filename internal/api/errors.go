package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MarJone/NCADbook-sub003/internal/domain/fines"
	"github.com/MarJone/NCADbook-sub003/internal/domain/gate"
	"github.com/MarJone/NCADbook-sub003/internal/domain/policy"
	"github.com/MarJone/NCADbook-sub003/internal/domain/strikes"
)

// Единый формат ошибки: {"error": {"code": "...", "message": "..."}}.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeInternal   = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError раскладывает ошибки доменных пакетов по HTTP-кодам:
// валидация -> 400, не найдено -> 404, терминальный статус или гонка -> 409,
// остальное -> 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, policy.ErrValidation),
		errors.Is(err, policy.ErrInvalidConfig),
		errors.Is(err, fines.ErrMissingReason),
		errors.Is(err, gate.ErrMissingReason):
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, policy.ErrNotFound),
		errors.Is(err, strikes.ErrNotFound),
		errors.Is(err, fines.ErrNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, strikes.ErrAlreadyRevoked),
		errors.Is(err, strikes.ErrStorageConflict),
		errors.Is(err, policy.ErrStorageConflict),
		errors.Is(err, fines.ErrInvalidTransition):
		writeError(w, http.StatusConflict, CodeConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
