package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pigbank/internal/api"
	"pigbank/internal/auth"
	"pigbank/internal/clock"
	"pigbank/internal/config"
	"pigbank/internal/db"
	"pigbank/internal/engine"
	"pigbank/internal/ledger"
	"pigbank/internal/store"
	"pigbank/internal/timer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	ledgers := store.NewPostgres(pool, logger)
	if cfg.StartupInitSchema {
		if err := ledgers.Init(ctx); err != nil {
			logger.Error("schema init failed", "err", err)
			os.Exit(1)
		}
	}

	authClient := auth.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceKey)
	timers := timer.NewRegistry(clock.Real{}, timer.Caps{
		ledger.JobCompany:   cfg.CompanyCap,
		ledger.JobFreelance: cfg.FreelanceCap,
		ledger.JobPartTime:  cfg.PartTimeCap,
	})
	eng := engine.New(ledgers, timers, authClient, logger)

	server := api.New(cfg, logger, authClient, eng, ledgers)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("pigbank api listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
