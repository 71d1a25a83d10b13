// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"grecy-client/internal/config"
	"grecy-client/internal/domain/ports/repository"
	"grecy-client/internal/infra/adapters/space"
	"grecy-client/internal/infra/api"
	pg "grecy-client/internal/infra/db/postgres"
	"grecy-client/internal/infra/logging"
	"grecy-client/internal/infra/metrics"
	red "grecy-client/internal/infra/redis"
	"grecy-client/internal/infra/sched"
	"grecy-client/internal/infra/security"
	"grecy-client/internal/infra/worker"
	"grecy-client/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted text)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Space.Endpoint)

	// ---- Postgres (optional job history) ----
	var jobs repository.AnalysisJobRepository
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		defer pool.Close()
		go reportPoolStats(ctx, pool)

		sealer, err := newSealer(cfg.Security.EncryptionKey, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("encryption")
		}
		jobs = pg.NewAnalysisJobRepo(pool, sealer)
	} else {
		logger.Warn().Msg("database.url not set; job history disabled")
	}

	// ---- Redis (optional cache and rate limiting) ----
	var (
		cache   repository.OutcomeCache
		limiter api.Limiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		cache = red.NewOutcomeCache(redisClient, cfg.Redis.TTL)
		limiter = red.NewRateLimiter(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set; outcome cache and rate limiting disabled")
	}

	// ---- Space client ----
	client, err := space.NewClient(space.Options{
		BaseURL:        cfg.Space.BaseURL,
		Endpoint:       cfg.Space.Endpoint,
		Token:          cfg.Space.Token,
		EnqueueTimeout: cfg.Space.EnqueueTimeout,
		StreamTimeout:  cfg.Space.StreamTimeout,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("space client")
	}
	defer client.Close()
	runner := space.NewLimitedRunner(client, cfg.Space.ConcurrentLimit)

	// ---- Use cases ----
	analysisUC := usecase.NewAnalysisUseCase(runner, jobs, cache, usecase.AnalysisOptions{
		DefaultLanguage: cfg.Space.DefaultLanguage,
		Models:          cfg.Space.Models,
		Dev:             cfg.Runtime.Dev,
	}, logger)

	// ---- Batch workers ----
	workers := worker.NewPool(cfg.Jobs.Workers, logger)
	workers.Start(ctx)
	defer workers.Stop()
	batch := worker.NewBatchProcessor(analysisUC, workers, logger)

	// ---- Retention worker ----
	if jobs != nil {
		retention := sched.NewRetentionWorker(cfg.Jobs.PruneInterval, cfg.Jobs.Retention, analysisUC, logger)
		go func() { _ = retention.Run(ctx) }()
	}

	// ---- HTTP API ----
	var auth *api.AuthManager
	if cfg.HTTP.JWTSecret != "" {
		auth = api.NewAuthManager(cfg.HTTP.JWTSecret, 0)
	}
	srv := api.NewServer(analysisUC, batch, api.ServerOptions{
		Auth:           auth,
		Limiter:        limiter,
		RateLimit:      cfg.HTTP.RateLimit,
		RateWindow:     cfg.HTTP.RateWindow,
		RateKey:        red.ClientKey,
		MaxBatch:       cfg.Jobs.MaxBatch,
		HandlerTimeout: cfg.HTTP.HandlerTimeout,
	}, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("space", cfg.Space.BaseURL).Msg("http api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown requested")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	cancel()
}

func newSealer(key string, logger *zerolog.Logger) (security.Sealer, error) {
	if key == "" {
		logger.Warn().Msg("security.encryption_key not set; submitted text stored in plain form")
		return security.PlainSealer{}, nil
	}
	return security.NewAESSealer(key)
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := pool.Stat()
			metrics.SetDBPoolStats(s.TotalConns(), s.IdleConns(), s.AcquiredConns())
		}
	}
}
