package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rickgao/data-ngin/internal/model"
	"github.com/rickgao/data-ngin/internal/stage"
)

// yamlCatalog is the YAML catalog format:
//
//	symbols:
//	  - {symbol: ES, type: FUTURE}
//	  - {symbol: AAPL, type: EQUITY}
type yamlCatalog struct {
	Symbols []struct {
		Symbol string `yaml:"symbol"`
		Type   string `yaml:"type"`
	} `yaml:"symbols"`
}

// YAML loads instruments from a YAML file.
type YAML struct {
	path   string
	logger *slog.Logger
}

var _ stage.Loader = (*YAML)(nil)

// NewYAML creates a YAML loader.
func NewYAML(path string, logger *slog.Logger) *YAML {
	if logger == nil {
		logger = slog.Default()
	}
	return &YAML{path: path, logger: logger}
}

// Load reads the catalog.
func (l *YAML) Load(ctx context.Context) ([]model.Instrument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w: %w", stage.ErrConfiguration, err)
	}

	var cat yamlCatalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w: %w", l.path, stage.ErrConfiguration, err)
	}

	b := newCatalogBuilder(l.path)
	for i, s := range cat.Symbols {
		if err := b.add(fmt.Sprintf("entry %d", i), s.Symbol, s.Type); err != nil {
			return nil, err
		}
	}

	l.logger.Info("loaded catalog", "path", l.path, "instruments", len(b.items))
	return b.items, nil
}
