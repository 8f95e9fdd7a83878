package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"

	"pigbank/internal/config"
	"pigbank/internal/db"
	"pigbank/internal/engine"
	"pigbank/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
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
	if err := ledgers.Init(ctx); err != nil {
		logger.Error("schema init failed", "err", err)
		os.Exit(1)
	}
	eng := engine.New(ledgers, nil, nil, logger)

	runClosingSweep := func() {
		n, err := eng.SweepClosingBalances(ctx)
		if err != nil {
			logger.Error("closing balance sweep failed", "err", err)
			return
		}
		logger.Info("closing balance sweep complete", "snapshots", n)
	}
	runScoreSweep := func() {
		n, err := eng.SweepScores(ctx)
		if err != nil {
			logger.Error("score sweep failed", "err", err)
			return
		}
		logger.Info("score sweep complete", "updated", n)
	}

	runOnce := strings.EqualFold(strings.TrimSpace(os.Getenv("PIGBANK_WORKER_RUN_ONCE")), "true")
	if runOnce {
		runClosingSweep()
		runScoreSweep()
		logger.Info("worker run-once completed")
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.ClosingSweepSpec, runClosingSweep); err != nil {
		logger.Error("bad closing sweep spec", "spec", cfg.ClosingSweepSpec, "err", err)
		os.Exit(1)
	}
	if _, err := c.AddFunc(cfg.ScoreSweepSpec, runScoreSweep); err != nil {
		logger.Error("bad score sweep spec", "spec", cfg.ScoreSweepSpec, "err", err)
		os.Exit(1)
	}
	c.Start()

	logger.Info("worker started",
		"closing_sweep", cfg.ClosingSweepSpec, "score_sweep", cfg.ScoreSweepSpec)
	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("worker shutdown")
}
