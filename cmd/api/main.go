package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/commercebatola-sys/Outil1/internal/analysis"
	"github.com/commercebatola-sys/Outil1/internal/api"
	"github.com/commercebatola-sys/Outil1/internal/auth"
	"github.com/commercebatola-sys/Outil1/internal/config"
	"github.com/commercebatola-sys/Outil1/internal/extract"
	"github.com/commercebatola-sys/Outil1/internal/logging"
	"github.com/commercebatola-sys/Outil1/internal/providers"
	"github.com/commercebatola-sys/Outil1/internal/reports"
	"github.com/commercebatola-sys/Outil1/internal/session"
	"github.com/commercebatola-sys/Outil1/internal/storage"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		audit   storage.LLMAuditLog     = storage.NopAuditLog{}
		archive storage.AnalysisArchive = storage.NopArchive{}
	)
	if cfg.PostgresURL != "" {
		dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		db, err := storage.NewDB(dctx, cfg.PostgresURL)
		cancel()
		if err != nil {
			logger.Fatal("db.connect.failed", zap.Error(err))
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("db.migrate.failed", zap.Error(err))
		}
		audit = storage.NewLLMAuditRepo(db)
		archive = storage.NewAnalysisRepo(db)
	}

	ex, err := extract.New(cfg.Extractor)
	if err != nil {
		logger.Fatal("extractor.init.failed", zap.Error(err))
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		logger.Fatal("providers.init.failed", zap.Error(err))
	}
	defer pm.Close()
	rs, err := reports.NewStore(ctx, cfg)
	if err != nil {
		logger.Fatal("reports.init.failed", zap.Error(err))
	}
	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL, cfg.AuthDisabled)
	if err != nil {
		logger.Fatal("auth.init.failed", zap.Error(err))
	}
	if cfg.JWTSecret == "" && !cfg.AuthDisabled {
		logger.Warn("auth.ephemeral_secret", zap.String("hint", "tokens are invalidated on restart; set FINANALYST_AUTH_JWT_SECRET"))
	}

	sessions := session.NewStore(cfg.SessionTTL)
	go sessions.Run(ctx, time.Minute, func(n int) {
		logger.Info("session.swept", zap.Int("expired", n))
	})

	svc := analysis.NewService(cfg, analysis.Deps{
		Extractor: ex,
		Providers: pm,
		Sessions:  sessions,
		Audit:     audit,
		Archive:   archive,
		Reports:   rs,
		Logger:    logger,
	})

	deps := api.Deps{Service: svc, Issuer: issuer, Archive: archive, Logger: logger}
	if cfg.TemporalEnabled {
		c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
		if err != nil {
			logger.Fatal("temporal.dial.failed", zap.String("address", cfg.TemporalAddress), zap.Error(err))
		}
		defer c.Close()
		deps.Workflows = c
	}

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           api.NewServer(cfg, deps).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Warn("api.shutdown.failed", zap.Error(err))
		}
	}()

	logger.Info("api.listening",
		zap.String("addr", cfg.APIAddr),
		zap.String("llm_providers", cfg.LLMProviders),
		zap.Int("llm_count", pm.LLMCount()),
		zap.String("extractor", ex.Name()),
		zap.String("reports", cfg.ReportStore),
		zap.Bool("temporal", cfg.TemporalEnabled),
		zap.Bool("postgres", cfg.PostgresURL != ""),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("api.serve.failed", zap.Error(err))
	}
	logger.Info("api.stopped")
}
