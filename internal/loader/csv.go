package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rickgao/data-ngin/internal/model"
	"github.com/rickgao/data-ngin/internal/stage"
)

// CSV loads instruments from a CSV file with a header row.
type CSV struct {
	path         string
	symbolColumn string
	typeColumn   string
	logger       *slog.Logger
}

var _ stage.Loader = (*CSV)(nil)

// NewCSV creates a CSV loader reading symbolColumn and typeColumn.
func NewCSV(path, symbolColumn, typeColumn string, logger *slog.Logger) *CSV {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSV{
		path:         path,
		symbolColumn: symbolColumn,
		typeColumn:   typeColumn,
		logger:       logger,
	}
}

// Load reads the catalog.
func (l *CSV) Load(ctx context.Context) ([]model.Instrument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w: %w", stage.ErrConfiguration, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty catalog file: %w", l.path, stage.ErrConfiguration)
		}
		return nil, fmt.Errorf("%s: read header: %w: %w", l.path, stage.ErrConfiguration, err)
	}

	symIdx, typIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case l.symbolColumn:
			symIdx = i
		case l.typeColumn:
			typIdx = i
		}
	}
	if symIdx < 0 || typIdx < 0 {
		return nil, fmt.Errorf("%s: header must contain %q and %q: %w", l.path, l.symbolColumn, l.typeColumn, stage.ErrConfiguration)
	}

	b := newCatalogBuilder(l.path)
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", l.path, stage.ErrConfiguration, err)
		}
		if err := b.add(fmt.Sprintf("line %d", line), rec[symIdx], rec[typIdx]); err != nil {
			return nil, err
		}
	}

	l.logger.Info("loaded catalog", "path", l.path, "instruments", len(b.items))
	return b.items, nil
}
