// Пакет api — HTTP-обвязка ядра политик. Аутентификация живёт снаружи:
// вызывающая сторона передаёт id действующего админа в теле запроса.
package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/MarJone/NCADbook-sub003/internal/domain/bookings"
	"github.com/MarJone/NCADbook-sub003/internal/domain/fines"
	"github.com/MarJone/NCADbook-sub003/internal/domain/gate"
	"github.com/MarJone/NCADbook-sub003/internal/domain/policy"
	"github.com/MarJone/NCADbook-sub003/internal/domain/strikes"
	"github.com/MarJone/NCADbook-sub003/internal/domain/users"
	"github.com/MarJone/NCADbook-sub003/internal/report"
)

type Handler struct {
	log      *slog.Logger
	rules    *policy.Repo
	strikes  *strikes.Engine
	fines    *fines.Ledger
	gate     *gate.Gate
	users    *users.Repo
	bookings *bookings.Repo
	audit    *gate.AuditRepo
	reports  *report.Builder
}

func NewHandler(
	log *slog.Logger,
	rules *policy.Repo,
	engine *strikes.Engine,
	ledger *fines.Ledger,
	g *gate.Gate,
	usersRepo *users.Repo,
	bookingsRepo *bookings.Repo,
	audit *gate.AuditRepo,
	reports *report.Builder,
) *Handler {
	return &Handler{
		log: log, rules: rules, strikes: engine, fines: ledger, gate: g,
		users: usersRepo, bookings: bookingsRepo, audit: audit, reports: reports,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/rules", h.listRules)
	mux.HandleFunc("POST /api/v1/rules", h.createRule)
	mux.HandleFunc("GET /api/v1/rules/{id}", h.getRule)
	mux.HandleFunc("PATCH /api/v1/rules/{id}", h.updateRule)
	mux.HandleFunc("POST /api/v1/rules/{id}/toggle", h.toggleRule)
	mux.HandleFunc("DELETE /api/v1/rules/{id}", h.deleteRule)

	mux.HandleFunc("POST /api/v1/bookings/evaluate", h.evaluateBooking)
	mux.HandleFunc("POST /api/v1/returns/check", h.checkReturn)

	mux.HandleFunc("GET /api/v1/users/{id}/strikes", h.strikeHistory)
	mux.HandleFunc("GET /api/v1/users/{id}/strike-state", h.strikeState)
	mux.HandleFunc("POST /api/v1/strikes", h.issueStrike)
	mux.HandleFunc("POST /api/v1/strikes/{id}/revoke", h.revokeStrike)
	mux.HandleFunc("POST /api/v1/strikes/reset", h.resetStrikes)

	mux.HandleFunc("GET /api/v1/users/{id}/fines", h.listFines)
	mux.HandleFunc("GET /api/v1/users/{id}/fines/summary", h.fineSummary)
	mux.HandleFunc("POST /api/v1/fines/{id}/pay", h.payFine)
	mux.HandleFunc("POST /api/v1/fines/{id}/waive", h.waiveFine)

	mux.HandleFunc("GET /api/v1/overrides", h.listOverrides)
	mux.HandleFunc("GET /api/v1/reports/penalties.xlsx", h.penaltyReport)

	return mux
}

// pathID разбирает сегмент {id}.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// queryLimit читает ?limit=; мусор и неположительные значения — дефолт.
func queryLimit(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
