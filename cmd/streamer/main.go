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
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rickgao/data-ngin/internal/config"
	"github.com/rickgao/data-ngin/internal/database"
	"github.com/rickgao/data-ngin/internal/fetcher"
	"github.com/rickgao/data-ngin/internal/health"
	"github.com/rickgao/data-ngin/internal/inserter"
	"github.com/rickgao/data-ngin/internal/metrics"
	"github.com/rickgao/data-ngin/internal/version"
	"github.com/rickgao/data-ngin/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/pipeline.yaml", "path to config file")
	flag.Parse()

	os.Exit(run(*configPath))
}

func run(configPath string) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	if len(cfg.Stream.Symbols) == 0 {
		fmt.Fprintln(os.Stderr, "stream.symbols is empty")
		return 1
	}

	logger := cfg.Logging.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting streamer",
		version.Attr(),
		"pipeline", cfg.PipelineName,
		"symbols", cfg.Stream.Symbols,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pools, err := database.NewPools(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return 1
	}
	defer pools.Close()

	sink := metrics.NewSink(cfg.PipelineName)
	checker := health.NewChecker(pools, database.NewLatestStore(pools.Timescale), health.Config{
		Schema:     cfg.Database.TargetSchema,
		Table:      cfg.Database.Table,
		StaleAfter: cfg.Metrics.StaleAfter,
	}, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           health.NewMux(cfg.Metrics.Path, sink.Handler(), checker),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	stream := fetcher.NewStream(fetcher.StreamConfig{
		URL:           cfg.Provider.WSURL,
		APIKey:        cfg.Provider.APIKey,
		Dataset:       cfg.Provider.Dataset,
		Schema:        cfg.Provider.Schema,
		Symbols:       cfg.Stream.Symbols,
		SymbolRemap:   cfg.Provider.SymbolRemap,
		RetryInterval: cfg.Stream.RetryInterval,
		MaxRetries:    cfg.Stream.MaxRetries,
		PingInterval:  cfg.Stream.PingInterval,
		ReadTimeout:   cfg.Stream.ReadTimeout,
		BufferSize:    cfg.Stream.BufferSize,
	}, logger, fetcher.WithReconnectHook(sink.StreamReconnect))

	w := writer.NewBarWriter(writer.WriterConfig{
		Schema:        cfg.Database.TargetSchema,
		Table:         cfg.Database.Table,
		BatchSize:     cfg.Stream.BatchSize,
		FlushInterval: cfg.Stream.FlushInterval,
	}, stream.Bars(), inserter.NewTimescale(pools.Timescale, logger), logger)

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start writer", "error", err)
		return 1
	}

	sink.RunStarted()
	runErr := stream.Run(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		logger.Warn("writer stop", "error", err)
	}

	stats := w.Stats()
	logger.Info("streamer stopped",
		"reconnects", stream.Reconnects(),
		"inserts", stats.Inserts,
		"conflicts", stats.Conflicts,
		"errors", stats.Errors,
	)

	switch {
	case runErr == nil, errors.Is(runErr, context.Canceled):
		sink.RunSucceeded(time.Now())
		return 0
	case errors.Is(runErr, fetcher.ErrRetriesExhausted):
		logger.Error("stream gave up", "error", runErr)
		return 1
	default:
		logger.Error("stream failed", "error", runErr)
		return 1
	}
}
