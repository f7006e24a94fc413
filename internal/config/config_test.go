package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
pipeline_name: futures-daily
stages:
  loader: {name: csv}
  fetcher: {name: historical, module: databento}
loader:
  path: contracts/contract.csv
database:
  host: localhost
  port: 5432
  name: market
  user: ingest
  password: testpass
  target_schema: futures_data
  raw_table: ohlcv_raw
  table: ohlcv_1d
provider:
  asset: FUTURE
  dataset: GLBX.MDP3
  symbol_remap:
    ES: MES
  timeout: 10s
batch_downloading:
  enabled: true
  unit: day
  max_units: 30
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.PipelineName != "futures-daily" {
		t.Errorf("PipelineName = %q, want %q", cfg.PipelineName, "futures-daily")
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "localhost")
	}
	if cfg.Database.TargetSchema != "futures_data" {
		t.Errorf("Database.TargetSchema = %q, want %q", cfg.Database.TargetSchema, "futures_data")
	}
	if got := cfg.Stages.Fetcher.ID(); got != "databento.historical" {
		t.Errorf("Stages.Fetcher.ID() = %q, want %q", got, "databento.historical")
	}
	if cfg.Provider.SymbolRemap["ES"] != "MES" {
		t.Errorf("Provider.SymbolRemap[ES] = %q, want %q", cfg.Provider.SymbolRemap["ES"], "MES")
	}
	if cfg.Provider.Timeout != 10*time.Second {
		t.Errorf("Provider.Timeout = %v, want %v", cfg.Provider.Timeout, 10*time.Second)
	}
	if !cfg.BatchDownloading.Enabled || cfg.BatchDownloading.MaxUnits != 30 {
		t.Errorf("BatchDownloading = %+v, want enabled with 30 units", cfg.BatchDownloading)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_API_KEY", "db-abc")

	yaml := `
pipeline_name: futures-daily
database:
  host: localhost
  name: market
  user: ingest
  password: ${TEST_DB_PASSWORD}
provider:
  api_key: ${TEST_API_KEY}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
	if cfg.Provider.APIKey != "db-abc" {
		t.Errorf("Provider.APIKey = %q, want %q", cfg.Provider.APIKey, "db-abc")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
pipeline_name: futures-daily
database:
  host: localhost
  name: market
  user: ingest
  password: testpass
  max_conns: 4
  min_conns: 1
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Stages.Loader.Name != DefaultLoaderStage {
		t.Errorf("Stages.Loader.Name = %q, want default %q", cfg.Stages.Loader.Name, DefaultLoaderStage)
	}
	if cfg.Stages.Inserter.Name != DefaultInserterStage {
		t.Errorf("Stages.Inserter.Name = %q, want default %q", cfg.Stages.Inserter.Name, DefaultInserterStage)
	}
	if cfg.Provider.BaseURL != DefaultProviderURL {
		t.Errorf("Provider.BaseURL = %q, want default %q", cfg.Provider.BaseURL, DefaultProviderURL)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Pipeline.Concurrency != 4 {
		t.Errorf("Pipeline.Concurrency = %d, want max_conns 4", cfg.Pipeline.Concurrency)
	}
	if cfg.Stream.RetryInterval != DefaultRetryInterval {
		t.Errorf("Stream.RetryInterval = %v, want default %v", cfg.Stream.RetryInterval, DefaultRetryInterval)
	}
	if len(cfg.Cleaner.TimestampColumns) != len(DefaultTimestampColumns) {
		t.Errorf("Cleaner.TimestampColumns = %v, want %v", cfg.Cleaner.TimestampColumns, DefaultTimestampColumns)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
}

func TestBindingID(t *testing.T) {
	tests := []struct {
		b    Binding
		want string
	}{
		{Binding{Name: "csv"}, "csv"},
		{Binding{Name: "historical", Module: "databento"}, "databento.historical"},
	}
	for _, tt := range tests {
		if got := tt.b.ID(); got != tt.want {
			t.Errorf("Binding%+v.ID() = %q, want %q", tt.b, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "missing pipeline name",
			mutate:  func(c *Config) { c.PipelineName = "" },
			wantErr: "pipeline_name is required",
		},
		{
			name:    "missing loader path",
			mutate:  func(c *Config) { c.Loader.Path = "" },
			wantErr: "loader.path is required",
		},
		{
			name:    "missing database password",
			mutate:  func(c *Config) { c.Database.Password = "" },
			wantErr: "database.password is required",
		},
		{
			name: "memory inserter skips database",
			mutate: func(c *Config) {
				c.Stages.Inserter = Binding{Name: MemoryInserter}
				c.Database.DBConfig = DBConfig{}
			},
			wantErr: "",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Database.MaxConns = 5
				c.Database.MinConns = 10
			},
			wantErr: "database.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "bad start date",
			mutate:  func(c *Config) { c.TimeRange.StartDate = "01/02/2023" },
			wantErr: `time_range.start_date: invalid date "01/02/2023": want YYYY-MM-DD or RFC 3339`,
		},
		{
			name: "end before start",
			mutate: func(c *Config) {
				c.TimeRange.StartDate = "2023-02-01"
				c.TimeRange.EndDate = "2023-01-01"
			},
			wantErr: "time_range.end_date (2023-01-01) is before start_date (2023-02-01)",
		},
		{
			name: "bad batch unit",
			mutate: func(c *Config) {
				c.BatchDownloading.Enabled = true
				c.BatchDownloading.Unit = "week"
			},
			wantErr: `batch_downloading.unit: unknown window unit: "week"`,
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Pipeline.Concurrency = 0 },
			wantErr: "pipeline.concurrency must be >= 1",
		},
		{
			name:    "negative instrument timeout",
			mutate:  func(c *Config) { c.Pipeline.InstrumentTimeout = -time.Second },
			wantErr: "pipeline.instrument_timeout must be >= 0",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: `logging.format must be text or json, got "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2023-01-05")
	if err != nil {
		t.Fatalf("ParseDate() error = %v", err)
	}
	if want := time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("ParseDate() = %v, want %v", got, want)
	}

	got, err = ParseDate("2023-01-05T10:00:00-05:00")
	if err != nil {
		t.Fatalf("ParseDate() error = %v", err)
	}
	if got.Hour() != 15 || got.Location() != time.UTC {
		t.Errorf("ParseDate() = %v, want 15:00 UTC", got)
	}
}

func validConfig() *Config {
	cfg := &Config{
		PipelineName: "futures-daily",
		Loader:       LoaderConfig{Path: "contracts/contract.csv"},
		Database: DatabaseConfig{
			DBConfig: DBConfig{Host: "localhost", Name: "market", User: "ingest", Password: "pass"},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoggingConfigNewLogger(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := (LoggingConfig{Level: tt.level}).SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}

	var buf bytes.Buffer
	logger := LoggingConfig{Level: "info", Format: "json"}.NewLogger(&buf)
	logger.Debug("hidden")
	logger.Info("shown", "symbol", "ES")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record written at info level: %s", out)
	}
	if !strings.Contains(out, `"symbol":"ES"`) {
		t.Errorf("JSON output missing attribute: %s", out)
	}
}
