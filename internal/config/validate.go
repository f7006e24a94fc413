package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rickgao/data-ngin/internal/window"
)

// MemoryInserter is the registry name of the in-process inserter; it needs no
// database connection.
const MemoryInserter = "memory"

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.PipelineName == "" {
		return errors.New("pipeline_name is required")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	for name, b := range map[string]Binding{
		"loader":   c.Stages.Loader,
		"fetcher":  c.Stages.Fetcher,
		"cleaner":  c.Stages.Cleaner,
		"inserter": c.Stages.Inserter,
	} {
		if b.Name == "" {
			return fmt.Errorf("stages.%s.name is required", name)
		}
	}

	if c.Loader.Path == "" {
		return errors.New("loader.path is required")
	}

	if c.Stages.Inserter.ID() != MemoryInserter {
		if err := c.Database.DBConfig.validate("database"); err != nil {
			return err
		}
	}
	if c.Database.TargetSchema == "" {
		return errors.New("database.target_schema is required")
	}
	if c.Database.RawTable == "" || c.Database.Table == "" {
		return errors.New("database.raw_table and database.table are required")
	}

	if err := c.TimeRange.validate(); err != nil {
		return err
	}

	if c.BatchDownloading.Enabled {
		if c.BatchDownloading.MaxUnits < 1 {
			return errors.New("batch_downloading.max_units must be >= 1")
		}
		if _, err := window.ParseUnit(c.BatchDownloading.Unit); err != nil {
			return fmt.Errorf("batch_downloading.unit: %w", err)
		}
	}

	if c.Provider.MaxRetries < 0 {
		return errors.New("provider.max_retries must be >= 0")
	}
	if c.Provider.RequestsPerSecond < 0 {
		return errors.New("provider.requests_per_second must be >= 0")
	}

	if c.Stream.MaxRetries < 0 {
		return errors.New("stream.max_retries must be >= 0")
	}
	if c.Stream.BatchSize < 1 {
		return errors.New("stream.batch_size must be >= 1")
	}

	if c.Cleaner.ExpectedInterval < 0 {
		return errors.New("cleaner.expected_interval must be >= 0")
	}

	if c.Pipeline.Concurrency < 1 {
		return errors.New("pipeline.concurrency must be >= 1")
	}
	if c.Pipeline.ExpectedRowsPerAsset < 0 {
		return errors.New("pipeline.expected_rows_per_asset must be >= 0")
	}
	if c.Pipeline.InstrumentTimeout < 0 {
		return errors.New("pipeline.instrument_timeout must be >= 0")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

func (r TimeRangeConfig) validate() error {
	var start, end time.Time
	var err error
	if r.StartDate != "" {
		if start, err = ParseDate(r.StartDate); err != nil {
			return fmt.Errorf("time_range.start_date: %w", err)
		}
	}
	if r.EndDate != "" {
		if end, err = ParseDate(r.EndDate); err != nil {
			return fmt.Errorf("time_range.end_date: %w", err)
		}
	}
	if r.StartDate != "" && r.EndDate != "" && end.Before(start) {
		return fmt.Errorf("time_range.end_date (%s) is before start_date (%s)", r.EndDate, r.StartDate)
	}
	if _, err := ParseDate(r.DefaultStart); err != nil {
		return fmt.Errorf("time_range.default_start: %w", err)
	}
	return nil
}

// ParseDate parses YYYY-MM-DD or RFC 3339 into UTC.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t.UTC(), nil
}
