package cleaner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/rickgao/data-ngin/internal/adjust"
	"github.com/rickgao/data-ngin/internal/config"
	"github.com/rickgao/data-ngin/internal/model"
	"github.com/rickgao/data-ngin/internal/stage"
)

// Config holds cleaner settings.
type Config struct {
	MissingData      config.MissingDataConfig
	TimestampColumns []string      // Aliases renamed to "time"
	ExpectedInterval time.Duration // 0 disables gap detection
	MaxGapWarnings   int
}

// Cleaner implements stage.Cleaner for OHLCV rows.
type Cleaner struct {
	cfg    Config
	logger *slog.Logger
}

var _ stage.Cleaner = (*Cleaner)(nil)

// New creates a cleaner.
func New(cfg Config, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TimestampColumns == nil {
		cfg.TimestampColumns = config.DefaultTimestampColumns
	}
	if cfg.MaxGapWarnings <= 0 {
		cfg.MaxGapWarnings = config.DefaultMaxGapWarnings
	}
	return &Cleaner{cfg: cfg, logger: logger}
}

// Clean validates, fills, and transforms rows. The input is not modified.
func (c *Cleaner) Clean(ctx context.Context, rows []model.Record) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	validated, err := c.ValidateFields(rows)
	if err != nil {
		return nil, err
	}
	filled := c.HandleMissingData(validated)
	return c.TransformData(filled)
}

// ValidateFields returns copies of rows with timestamp aliases renamed and
// every required column present. Rows lacking a column that other rows carry
// get it as nil. A column missing from every row is a validation error.
func (c *Cleaner) ValidateFields(rows []model.Record) ([]model.Record, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows to clean: %w", stage.ErrValidation)
	}

	out := make([]model.Record, len(rows))
	present := make(map[string]bool)
	for i, r := range rows {
		rec := r.Clone()
		if _, ok := rec[model.ColTime]; !ok {
			for _, alias := range c.cfg.TimestampColumns {
				if v, ok := rec[alias]; ok {
					rec[model.ColTime] = v
					delete(rec, alias)
					break
				}
			}
		}
		for k := range rec {
			present[k] = true
		}
		out[i] = rec
	}

	var missing []string
	for _, col := range model.RequiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns [%s]: %w", strings.Join(missing, ", "), stage.ErrValidation)
	}

	for _, rec := range out {
		for _, col := range model.RequiredColumns {
			if _, ok := rec[col]; !ok {
				rec[col] = nil
			}
		}
	}
	return out, nil
}

// TransformData coerces rows into bars sorted ascending by time, logs
// duplicate timestamps and gaps, and sets back-adjusted prices.
func (c *Cleaner) TransformData(rows []model.Record) ([]model.Bar, error) {
	bars := make([]model.Bar, 0, len(rows))
	for i, r := range rows {
		b, err := toBar(r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		bars = append(bars, b)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})

	c.checkQuality(bars)

	rolls := adjust.Apply(bars)
	if len(rolls) > 0 {
		c.logger.Debug("applied back-adjustment",
			"symbol", bars[0].Symbol,
			"rolls", len(rolls),
		)
	}
	return bars, nil
}

func toBar(r model.Record) (model.Bar, error) {
	var b model.Bar
	var err error

	if b.Time, err = toTime(r[model.ColTime]); err != nil {
		return b, columnError(model.ColTime, err)
	}
	sym, ok := r[model.ColSymbol].(string)
	if !ok || sym == "" {
		return b, columnError(model.ColSymbol, fmt.Errorf("want non-empty string, got %T", r[model.ColSymbol]))
	}
	b.Symbol = sym

	prices := []struct {
		col string
		dst *float64
	}{
		{model.ColOpen, &b.Open},
		{model.ColHigh, &b.High},
		{model.ColLow, &b.Low},
		{model.ColClose, &b.Close},
	}
	for _, p := range prices {
		if *p.dst, err = toFloat(r[p.col]); err != nil {
			return b, columnError(p.col, err)
		}
	}

	if b.Volume, err = toInt(r[model.ColVolume]); err != nil {
		return b, columnError(model.ColVolume, err)
	}

	if v, ok := r[model.ColInstrumentID]; ok && v != nil {
		b.Contract = fmt.Sprint(v)
	} else if v, ok := r[model.ColContract]; ok && v != nil {
		b.Contract = fmt.Sprint(v)
	}
	return b, nil
}

func columnError(col string, err error) error {
	return fmt.Errorf("column %q: %v: %w", col, err, stage.ErrValidation)
}
