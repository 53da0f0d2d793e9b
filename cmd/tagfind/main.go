package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tagfind/internal/config"
	"github.com/kailas-cloud/tagfind/internal/db"
	"github.com/kailas-cloud/tagfind/internal/db/memory"
	dbPostgres "github.com/kailas-cloud/tagfind/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/tagfind/internal/db/redis"
	"github.com/kailas-cloud/tagfind/internal/filter"
	"github.com/kailas-cloud/tagfind/internal/filter/find"
	logpkg "github.com/kailas-cloud/tagfind/internal/logger"
	"github.com/kailas-cloud/tagfind/internal/matcher"
	"github.com/kailas-cloud/tagfind/internal/metrics"
	"github.com/kailas-cloud/tagfind/internal/pipeline"
	chiTransport "github.com/kailas-cloud/tagfind/internal/transport/chi"
	healthuc "github.com/kailas-cloud/tagfind/internal/usecase/health"
	recordsuc "github.com/kailas-cloud/tagfind/internal/usecase/records"
	"github.com/kailas-cloud/tagfind/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg := config.MustLoad(env)

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting tagfind",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("filters", cfg.Pipeline.Filters),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open record store", zap.Error(err))
	}
	defer store.Close()

	// Register metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()
	metrics.RegisterHTTPMetrics()

	// Filter table handed to the host once
	registry, err := filter.NewRegistry(
		find.New(find.NewRandomKeys(cfg.Find.Seed), matcher.New(cfg.Find.MatcherCacheSize)),
	)
	if err != nil {
		logger.Fatal("Failed to build filter registry", zap.Error(err))
	}

	engine := pipeline.New(store, logger.Named("pipeline")).WithMaxPasses(cfg.Pipeline.MaxPasses)
	if err := engine.InstallFromRegistry(registry, cfg.Pipeline.Filters...); err != nil {
		logger.Fatal("Failed to install filters",
			zap.Strings("available", registry.Names()),
			zap.Error(err),
		)
	}
	runner := pipeline.NewRunner(engine, cfg.Pipeline.Interval(), logger.Named("runner"))

	recordsSvc := recordsuc.New(store, engine)
	healthSvc := healthuc.New(store, runner)
	server := chiTransport.NewServer(recordsSvc, healthSvc, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Router(cfg.Auth.APIKeys),
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	runnerDone := make(chan error, 1)
	go func() {
		logger.Info("Starting pipeline runner", zap.Duration("interval", cfg.Pipeline.Interval()))
		runnerDone <- runner.Run(ctx)
	}()

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-runnerDone:
		logger.Error("Pipeline runner stopped", zap.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	select {
	case <-runnerDone:
	case <-shutdownCtx.Done():
		logger.Warn("Pipeline runner did not stop in time")
	}

	logger.Info("Server stopped gracefully")
}

// openStore builds the configured record store and waits until it answers.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (db.Store, error) {
	timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second

	switch cfg.Database.Driver {
	case config.DriverMemory:
		logger.Warn("Using in-memory record store, data is lost on restart")
		return memory.NewStore(), nil

	case config.DriverRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.Database.Addrs,
			Password:  cfg.Database.Password,
			KeyPrefix: cfg.Storage.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		if err := store.WaitForReady(ctx, timeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.Database.Addrs))
		return store, nil

	case config.DriverPostgres:
		store, err := dbPostgres.NewStore(dbPostgres.Config{DSN: cfg.Database.DSN})
		if err != nil {
			return nil, fmt.Errorf("create postgres store: %w", err)
		}
		if err := store.WaitForReady(ctx, timeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("postgres not ready: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info("Connected to postgres")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
