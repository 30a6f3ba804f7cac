package main

import (
	"context"
	"log"
	"time"

	"github.com/commercebatola-sys/Outil1/internal/activities"
	"github.com/commercebatola-sys/Outil1/internal/config"
	"github.com/commercebatola-sys/Outil1/internal/logging"
	"github.com/commercebatola-sys/Outil1/internal/storage"
	"github.com/commercebatola-sys/Outil1/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal("temporal.dial.failed", zap.String("address", cfg.TemporalAddress), zap.Error(err))
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	var db *storage.DB
	if cfg.PostgresURL != "" {
		db, err = storage.NewDB(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Fatal("db.connect.failed", zap.Error(err))
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("db.migrate.failed", zap.Error(err))
		}
	}
	a, err := activities.New(ctx, cfg, db, logger)
	if err != nil {
		logger.Fatal("activities.init.failed", zap.Error(err))
	}
	defer a.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, a)

	logger.Info("worker.listening",
		zap.String("address", cfg.TemporalAddress),
		zap.String("queue", cfg.TemporalTaskQueue),
		zap.String("llm_providers", cfg.LLMProviders),
		zap.Bool("postgres", db != nil),
	)
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("worker.run.failed", zap.Error(err))
	}
}
