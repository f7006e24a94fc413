// Package loader reads the instrument catalog from CSV or YAML files.
package loader

import (
	"fmt"
	"strings"

	"github.com/rickgao/data-ngin/internal/model"
	"github.com/rickgao/data-ngin/internal/stage"
)

// catalogBuilder accumulates instruments and rejects duplicate symbols.
type catalogBuilder struct {
	path  string
	seen  map[string]bool
	items []model.Instrument
}

func newCatalogBuilder(path string) *catalogBuilder {
	return &catalogBuilder{path: path, seen: make(map[string]bool)}
}

func (b *catalogBuilder) add(where, symbol, typ string) error {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return fmt.Errorf("%s %s: empty symbol: %w", b.path, where, stage.ErrConfiguration)
	}
	t, err := model.ParseInstrumentType(typ)
	if err != nil {
		return fmt.Errorf("%s %s: %v: %w", b.path, where, err, stage.ErrConfiguration)
	}
	if b.seen[symbol] {
		return fmt.Errorf("%s %s: duplicate symbol %q: %w", b.path, where, symbol, stage.ErrConfiguration)
	}
	b.seen[symbol] = true
	b.items = append(b.items, model.Instrument{Symbol: symbol, Type: t})
	return nil
}
