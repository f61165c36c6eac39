package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Spok95/attendance-tracker/internal/app"
	"github.com/Spok95/attendance-tracker/internal/config"
	"github.com/Spok95/attendance-tracker/internal/db"
	"github.com/Spok95/attendance-tracker/internal/httpapi"
	"github.com/Spok95/attendance-tracker/internal/jobs"
	"github.com/Spok95/attendance-tracker/internal/logging"
	"github.com/Spok95/attendance-tracker/internal/notify"
	"github.com/Spok95/attendance-tracker/internal/observability"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logging.Init(logging.Options{Level: cfg.LogLevel, Env: cfg.Env, Service: "attendance-server", Version: version})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Closer()
	logger := lg.Base

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, version)
	if err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
	}
	defer flush()

	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer database.Close()
	if err := db.Migrate(database); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	store := db.New(database)

	services := app.NewServices(cfg, store, logger)

	notifier, err := notify.New(cfg.BotToken, cfg.AdminIDs, lg.Named("notify"))
	if err != nil {
		logger.Warn("telegram notifier disabled", zap.Error(err))
		notifier = notify.Nop{}
	}

	limiter, closeLimiter := app.Limiter(ctx, cfg, logger)
	defer closeLimiter()

	runner := jobs.New(ctx)
	autoManage := services.AutoManage(cfg, notifier, logger)
	// первый прогон сразу, дальше по расписанию
	go func() { _ = jobs.Run(ctx, "auto_manage", autoManage.Job()) }()
	runner.Every(cfg.JobsInterval, "auto_manage", autoManage.Job())

	router := httpapi.NewRouter(*services.HTTPDeps(cfg, store, limiter, logger))
	srv := httpapi.Start(ctx, cfg.HTTPAddr, router, logger)
	if err := srv.Wait(); err != nil {
		logger.Error("http server", zap.Error(err))
		stop()
		lg.Closer()
		flush()
		os.Exit(1)
	}
	logger.Info("server stopped")
}
