package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rickgao/data-ngin/internal/config"
	"github.com/rickgao/data-ngin/internal/database"
	"github.com/rickgao/data-ngin/internal/health"
	"github.com/rickgao/data-ngin/internal/inserter"
	"github.com/rickgao/data-ngin/internal/metrics"
	"github.com/rickgao/data-ngin/internal/pipeline"
	"github.com/rickgao/data-ngin/internal/registry"
	"github.com/rickgao/data-ngin/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/pipeline.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "use the in-memory inserter and skip the database")
	serve := flag.Bool("serve", false, "keep the metrics and health server running after the run")
	flag.Parse()

	os.Exit(run(*configPath, *dryRun, *serve))
}

func run(configPath string, dryRun, serve bool) int {
	// .env is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	if dryRun {
		cfg.Stages.Inserter = config.Binding{Name: config.MemoryInserter}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		return 1
	}

	logger := cfg.Logging.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting pipeline",
		version.Attr(),
		"pipeline", cfg.PipelineName,
		"config", configPath,
		"dry_run", dryRun,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := registry.Deps{Logger: logger}
	var (
		latest  pipeline.LatestSource
		checker *health.Checker
	)
	healthCfg := health.Config{
		Schema:     cfg.Database.TargetSchema,
		Table:      cfg.Database.Table,
		StaleAfter: cfg.Metrics.StaleAfter,
	}

	if dryRun {
		store := inserter.NewMemoryStore()
		deps.Memory = store
		latest = store
		checker = health.NewChecker(nil, nil, healthCfg, logger)
	} else {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pools, err := database.NewPools(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return 1
		}
		defer pools.Close()
		logger.Info("database connected")

		deps.Pool = pools.Timescale
		store := database.NewLatestStore(pools.Timescale)
		latest = store
		checker = health.NewChecker(pools, store, healthCfg, logger)
	}

	stages, err := registry.Default().Resolve(cfg, deps)
	if err != nil {
		logger.Error("failed to resolve stages", "error", err)
		return 1
	}

	sink := metrics.NewSink(cfg.PipelineName)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           health.NewMux(cfg.Metrics.Path, sink.Handler(), checker),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	orch := pipeline.New(cfg, stages, latest, sink, logger)
	sum, err := orch.Run(ctx)
	if err != nil {
		logger.Error("pipeline run failed", "run_id", sum.RunID, "error", err)
		return 1
	}

	logger.Info("pipeline run finished",
		"run_id", sum.RunID,
		"window", sum.Start.Format(time.DateOnly)+" -> "+sum.End.Format(time.DateOnly),
		"succeeded", len(sum.Succeeded),
		"failed", len(sum.Failed),
		"duration", sum.Duration,
	)
	if len(sum.Failed) > 0 {
		logger.Warn("instruments failed", "symbols", strings.Join(sum.Failed, ","))
	}

	if serve {
		logger.Info("serving metrics until shutdown",
			"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
		)
		<-ctx.Done()
		logger.Info("shutting down...")
	}
	return 0
}
