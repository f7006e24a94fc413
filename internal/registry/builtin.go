package registry

import (
	"errors"

	"github.com/rickgao/data-ngin/internal/cleaner"
	"github.com/rickgao/data-ngin/internal/config"
	"github.com/rickgao/data-ngin/internal/fetcher"
	"github.com/rickgao/data-ngin/internal/inserter"
	"github.com/rickgao/data-ngin/internal/loader"
	"github.com/rickgao/data-ngin/internal/model"
	"github.com/rickgao/data-ngin/internal/stage"
)

// Default returns a registry with the built-in stages.
func Default() *Registry {
	r := New()
	r.RegisterLoader(newCSVLoader, "csv", "loader.csv")
	r.RegisterLoader(newYAMLLoader, "yaml", "loader.yaml")
	r.RegisterFetcher(newHistoricalFetcher, "historical", "databento.historical")
	r.RegisterCleaner(newOHLCVCleaner, "ohlcv", "cleaner.ohlcv")
	r.RegisterInserter(newTimescaleInserter, "timescale", "inserter.timescale")
	r.RegisterInserter(newMemoryInserter, config.MemoryInserter, "inserter.memory")
	return r
}

func newCSVLoader(cfg *config.Config, deps Deps) (stage.Loader, error) {
	return loader.NewCSV(cfg.Loader.Path, cfg.Loader.SymbolColumn, cfg.Loader.TypeColumn, deps.Logger), nil
}

func newYAMLLoader(cfg *config.Config, deps Deps) (stage.Loader, error) {
	return loader.NewYAML(cfg.Loader.Path, deps.Logger), nil
}

func newHistoricalFetcher(cfg *config.Config, deps Deps) (stage.Fetcher, error) {
	p := cfg.Provider
	asset, err := model.ParseInstrumentType(p.Asset)
	if err != nil {
		return nil, err
	}
	if p.Dataset == "" {
		return nil, errors.New("provider.dataset is required")
	}
	return fetcher.NewHistorical(
		fetcher.HistoricalConfig{
			BaseURL:      p.BaseURL,
			APIKey:       p.APIKey,
			Asset:        asset,
			Dataset:      p.Dataset,
			Schema:       p.Schema,
			RollType:     p.RollType,
			ContractType: p.ContractType,
			SymbolRemap:  p.SymbolRemap,
		},
		fetcher.WithTimeout(p.Timeout),
		fetcher.WithRetries(p.MaxRetries, fetcher.DefaultRetryBackoff),
		fetcher.WithRateLimit(p.RequestsPerSecond),
		fetcher.WithLogger(deps.Logger),
	), nil
}

func newOHLCVCleaner(cfg *config.Config, deps Deps) (stage.Cleaner, error) {
	return cleaner.New(cleaner.Config{
		MissingData:      cfg.MissingData,
		TimestampColumns: cfg.Cleaner.TimestampColumns,
		ExpectedInterval: cfg.Cleaner.ExpectedInterval,
		MaxGapWarnings:   cfg.Cleaner.MaxGapWarnings,
	}, deps.Logger), nil
}

func newTimescaleInserter(cfg *config.Config, deps Deps) (stage.NewInserter, error) {
	if deps.Pool == nil {
		return nil, errors.New("timescale inserter needs a database pool")
	}
	pool, logger := deps.Pool, deps.Logger
	return func() stage.Inserter {
		return inserter.NewTimescale(pool, logger)
	}, nil
}

func newMemoryInserter(cfg *config.Config, deps Deps) (stage.NewInserter, error) {
	store := deps.Memory
	if store == nil {
		store = inserter.NewMemoryStore()
	}
	return store.NewInserter, nil
}
