package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/data-ngin/internal/cleaner"
	"github.com/rickgao/data-ngin/internal/config"
	"github.com/rickgao/data-ngin/internal/fetcher"
	"github.com/rickgao/data-ngin/internal/inserter"
	"github.com/rickgao/data-ngin/internal/loader"
	"github.com/rickgao/data-ngin/internal/model"
	"github.com/rickgao/data-ngin/internal/stage"
)

func testConfig() *config.Config {
	cfg := &config.Config{
		PipelineName: "test",
		Stages: config.StagesConfig{
			Loader:   config.Binding{Name: "csv"},
			Fetcher:  config.Binding{Name: "historical", Module: "databento"},
			Cleaner:  config.Binding{Name: "ohlcv"},
			Inserter: config.Binding{Name: config.MemoryInserter},
		},
		Loader: config.LoaderConfig{Path: "contracts/contract.csv"},
		Provider: config.ProviderConfig{
			Asset:   "FUTURE",
			Dataset: "GLBX.MDP3",
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestDefaultResolve(t *testing.T) {
	store := inserter.NewMemoryStore()
	set, err := Default().Resolve(testConfig(), Deps{Memory: store})
	require.NoError(t, err)

	assert.IsType(t, &loader.CSV{}, set.Loader)
	assert.IsType(t, &fetcher.Historical{}, set.Fetcher)
	assert.IsType(t, &cleaner.Cleaner{}, set.Cleaner)
	require.NotNil(t, set.NewInserter)

	// Inserters built by the factory share the injected store.
	ins := set.NewInserter()
	require.NoError(t, ins.Connect(context.Background()))
	defer ins.Close()

	row := model.Bar{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Symbol: "ES", Close: 1}.Record()
	n, err := ins.InsertRows(context.Background(), []model.Record{row}, "public", "ohlcv")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, store.Rows("public", "ohlcv"), 1)
}

func TestResolveModuleAndPlainNames(t *testing.T) {
	cfg := testConfig()
	cfg.Stages.Loader = config.Binding{Name: "yaml", Module: "loader"}
	cfg.Stages.Fetcher = config.Binding{Name: "historical"}

	set, err := Default().Resolve(cfg, Deps{})
	require.NoError(t, err)
	assert.IsType(t, &loader.YAML{}, set.Loader)
	assert.IsType(t, &fetcher.Historical{}, set.Fetcher)
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown loader", func(c *config.Config) { c.Stages.Loader.Name = "parquet" }},
		{"unknown fetcher module", func(c *config.Config) { c.Stages.Fetcher.Module = "other" }},
		{"empty cleaner", func(c *config.Config) { c.Stages.Cleaner = config.Binding{} }},
		{"bad asset", func(c *config.Config) { c.Provider.Asset = "BOND" }},
		{"missing dataset", func(c *config.Config) { c.Provider.Dataset = "" }},
		{"timescale without pool", func(c *config.Config) { c.Stages.Inserter.Name = "timescale" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			_, err := Default().Resolve(cfg, Deps{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, stage.ErrConfiguration), "got %v", err)
		})
	}
}

func TestCustomRegistration(t *testing.T) {
	r := Default()
	var called bool
	r.RegisterLoader(func(cfg *config.Config, deps Deps) (stage.Loader, error) {
		called = true
		return loader.NewYAML(cfg.Loader.Path, deps.Logger), nil
	}, "custom.catalog")

	cfg := testConfig()
	cfg.Stages.Loader = config.Binding{Name: "catalog", Module: "custom"}
	_, err := r.Resolve(cfg, Deps{})
	require.NoError(t, err)
	assert.True(t, called)
}
