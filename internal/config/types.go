package config

import "time"

// Config is the root configuration for one pipeline.
type Config struct {
	PipelineName     string                 `yaml:"pipeline_name"`
	Logging          LoggingConfig          `yaml:"logging"`
	Stages           StagesConfig           `yaml:"stages"`
	Loader           LoaderConfig           `yaml:"loader"`
	Database         DatabaseConfig         `yaml:"database"`
	TimeRange        TimeRangeConfig        `yaml:"time_range"`
	MissingData      MissingDataConfig      `yaml:"missing_data"`
	BatchDownloading BatchDownloadingConfig `yaml:"batch_downloading"`
	Provider         ProviderConfig         `yaml:"provider"`
	Stream           StreamConfig           `yaml:"stream"`
	Cleaner          CleanerConfig          `yaml:"cleaner"`
	Pipeline         PipelineConfig         `yaml:"pipeline"`
	Metrics          MetricsConfig          `yaml:"metrics"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Binding names the registered implementation for one stage.
type Binding struct {
	Name   string `yaml:"name"`
	Module string `yaml:"module"`
}

// ID returns the registry identifier: "module.name", or just "name".
func (b Binding) ID() string {
	if b.Module == "" {
		return b.Name
	}
	return b.Module + "." + b.Name
}

// StagesConfig binds each stage to an implementation.
type StagesConfig struct {
	Loader   Binding `yaml:"loader"`
	Fetcher  Binding `yaml:"fetcher"`
	Cleaner  Binding `yaml:"cleaner"`
	Inserter Binding `yaml:"inserter"`
}

// LoaderConfig locates the instrument catalog.
type LoaderConfig struct {
	Path         string `yaml:"path"`
	SymbolColumn string `yaml:"symbol_column"` // CSV only
	TypeColumn   string `yaml:"type_column"`   // CSV only
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// DatabaseConfig holds the TimescaleDB connection and target tables.
type DatabaseConfig struct {
	DBConfig `yaml:",inline"`

	TargetSchema string `yaml:"target_schema"`
	RawTable     string `yaml:"raw_table"` // Provider rows as fetched
	Table        string `yaml:"table"`     // Cleaned, back-adjusted bars
}

// TimeRangeConfig bounds the run's date window. Dates are YYYY-MM-DD or RFC 3339.
type TimeRangeConfig struct {
	StartDate    string `yaml:"start_date"`
	EndDate      string `yaml:"end_date"`
	DefaultStart string `yaml:"default_start"` // Used when nothing is persisted yet
}

// MissingDataConfig enables null-handling strategies. Enabled strategies are
// applied in field order.
type MissingDataConfig struct {
	DropRows     bool    `yaml:"drop_rows"`
	ForwardFill  bool    `yaml:"forward_fill"`
	BackwardFill bool    `yaml:"backward_fill"`
	Interpolate  bool    `yaml:"interpolate"`
	ZeroFill     bool    `yaml:"zero_fill"`
	MeanFill     bool    `yaml:"mean_fill"`
	MedianFill   bool    `yaml:"median_fill"`
	CustomFill   bool    `yaml:"custom_fill"`
	CustomValue  float64 `yaml:"custom_value"`
}

// BatchDownloadingConfig splits large fetches into windows.
type BatchDownloadingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Unit     string `yaml:"unit"`
	MaxUnits int    `yaml:"max_units"`
}

// ProviderConfig holds market data provider settings.
type ProviderConfig struct {
	BaseURL           string            `yaml:"base_url"`
	WSURL             string            `yaml:"ws_url"`
	APIKey            string            `yaml:"api_key"`
	Asset             string            `yaml:"asset"` // Instrument type this provider binding serves
	Dataset           string            `yaml:"dataset"`
	Schema            string            `yaml:"schema"`
	RollType          string            `yaml:"roll_type"`     // Continuous futures roll rule (c, n, v)
	ContractType      string            `yaml:"contract_type"` // Continuous contract rank
	SymbolRemap       map[string]string `yaml:"symbol_remap"`  // Root symbol -> stored symbol
	Timeout           time.Duration     `yaml:"timeout"`
	MaxRetries        int               `yaml:"max_retries"`
	RequestsPerSecond float64           `yaml:"requests_per_second"`
}

// StreamConfig holds live streaming settings.
type StreamConfig struct {
	Symbols       []string      `yaml:"symbols"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	MaxRetries    int           `yaml:"max_retries"`
	PingInterval  time.Duration `yaml:"ping_interval"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// CleanerConfig holds cleaning and data-quality settings.
type CleanerConfig struct {
	TimestampColumns []string      `yaml:"timestamp_columns"` // Renamed to "time" when present
	ExpectedInterval time.Duration `yaml:"expected_interval"` // 0 disables gap detection
	MaxGapWarnings   int           `yaml:"max_gap_warnings"`
}

// PipelineConfig holds orchestrator settings.
type PipelineConfig struct {
	Concurrency          int           `yaml:"concurrency"`
	ExpectedRowsPerAsset int           `yaml:"expected_rows_per_asset"` // 0 disables completeness
	InstrumentTimeout    time.Duration `yaml:"instrument_timeout"`      // 0 disables
}

// MetricsConfig holds Prometheus and health endpoint settings.
type MetricsConfig struct {
	Port       int           `yaml:"port"`
	Path       string        `yaml:"path"`
	StaleAfter time.Duration `yaml:"stale_after"`
}
