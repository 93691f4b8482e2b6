package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarJone/NCADbook-sub003/internal/api"
	"github.com/MarJone/NCADbook-sub003/internal/config"
	"github.com/MarJone/NCADbook-sub003/internal/domain/bookings"
	"github.com/MarJone/NCADbook-sub003/internal/domain/fines"
	"github.com/MarJone/NCADbook-sub003/internal/domain/gate"
	"github.com/MarJone/NCADbook-sub003/internal/domain/policy"
	"github.com/MarJone/NCADbook-sub003/internal/domain/strikes"
	"github.com/MarJone/NCADbook-sub003/internal/domain/training"
	"github.com/MarJone/NCADbook-sub003/internal/domain/users"
	"github.com/MarJone/NCADbook-sub003/internal/infra/db"
	httpx "github.com/MarJone/NCADbook-sub003/internal/infra/http"
	"github.com/MarJone/NCADbook-sub003/internal/infra/logger"
	"github.com/MarJone/NCADbook-sub003/internal/infra/notify"
	"github.com/MarJone/NCADbook-sub003/internal/report"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/subosito/gotenv"
)

func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("config/example.yaml")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	if err := runMigrations(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	usersRepo := users.NewRepo(pool)
	bookingsRepo := bookings.NewRepo(pool)
	trainingRepo := training.NewRepo(pool)
	rulesRepo := policy.NewRepo(pool)
	strikesRepo := strikes.NewRepo(pool)
	finesRepo := fines.NewRepo(pool)
	auditRepo := gate.NewAuditRepo(pool)

	var notifier strikes.Notifier
	if cfg.Telegram.Token != "" && cfg.Telegram.AdminChatID != 0 {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.AdminChatID, log)
		if err != nil {
			log.Error("telegram init failed", "err", err)
			return
		}
		notifier = tg
		log.Info("telegram notifications enabled", "chat_id", cfg.Telegram.AdminChatID)
	}

	evaluator := policy.NewEvaluator(rulesRepo, bookingsRepo, trainingRepo, log)
	engine := strikes.NewEngine(strikesRepo, log, notifier)
	ledger := fines.NewLedger(finesRepo, fines.Config{
		DailyRateCents:     cfg.Fines.DailyRateCents,
		HoldThresholdCents: cfg.Fines.HoldThresholdCents,
		PaymentDueDays:     cfg.Fines.PaymentDueDays,
	}, log)
	bookingGate := gate.New(engine, ledger, evaluator, auditRepo, log)

	reports := report.NewBuilder(usersRepo, engine, ledger)
	handler := api.NewHandler(log, rulesRepo, engine, ledger, bookingGate, usersRepo, bookingsRepo, auditRepo, reports)

	srv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled, handler.Routes())
	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
