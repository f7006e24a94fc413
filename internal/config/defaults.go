package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultLoaderStage       = "csv"
	DefaultFetcherStage      = "historical"
	DefaultCleanerStage      = "ohlcv"
	DefaultInserterStage     = "timescale"
	DefaultSymbolColumn      = "dataSymbol"
	DefaultTypeColumn        = "instrumentType"
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultTargetSchema      = "public"
	DefaultRawTable          = "ohlcv_raw"
	DefaultTable             = "ohlcv"
	DefaultStartDate         = "2010-01-01"
	DefaultBatchUnit         = "day"
	DefaultBatchMaxUnits     = 30
	DefaultProviderURL       = "https://hist.databento.com/v0"
	DefaultProviderWSURL     = "wss://live.databento.com/v0/stream"
	DefaultProviderSchema    = "ohlcv-1d"
	DefaultRollType          = "c"
	DefaultContractType      = "0"
	DefaultProviderTimeout   = 30 * time.Second
	DefaultProviderRetries   = 3
	DefaultRequestsPerSecond = 5
	DefaultRetryInterval     = 5 * time.Second
	DefaultStreamRetries     = 5
	DefaultPingInterval      = 15 * time.Second
	DefaultReadTimeout       = 30 * time.Second
	DefaultBatchSize         = 500
	DefaultFlushInterval     = 1 * time.Second
	DefaultBufferSize        = 10000
	DefaultMaxGapWarnings    = 10
	DefaultMetricsPort       = 8003
	DefaultMetricsPath       = "/metrics"
	DefaultStaleAfter        = 72 * time.Hour
)

// DefaultTimestampColumns are renamed to "time" by the cleaner.
var DefaultTimestampColumns = []string{"ts_event", "date", "datetime"}

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}

	// Stage bindings
	applyBindingDefault(&c.Stages.Loader, DefaultLoaderStage)
	applyBindingDefault(&c.Stages.Fetcher, DefaultFetcherStage)
	applyBindingDefault(&c.Stages.Cleaner, DefaultCleanerStage)
	applyBindingDefault(&c.Stages.Inserter, DefaultInserterStage)

	if c.Loader.SymbolColumn == "" {
		c.Loader.SymbolColumn = DefaultSymbolColumn
	}
	if c.Loader.TypeColumn == "" {
		c.Loader.TypeColumn = DefaultTypeColumn
	}

	// Database defaults
	applyDBDefaults(&c.Database.DBConfig)
	if c.Database.TargetSchema == "" {
		c.Database.TargetSchema = DefaultTargetSchema
	}
	if c.Database.RawTable == "" {
		c.Database.RawTable = DefaultRawTable
	}
	if c.Database.Table == "" {
		c.Database.Table = DefaultTable
	}

	if c.TimeRange.DefaultStart == "" {
		c.TimeRange.DefaultStart = DefaultStartDate
	}

	if c.BatchDownloading.Unit == "" {
		c.BatchDownloading.Unit = DefaultBatchUnit
	}
	if c.BatchDownloading.MaxUnits == 0 {
		c.BatchDownloading.MaxUnits = DefaultBatchMaxUnits
	}

	// Provider defaults
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = DefaultProviderURL
	}
	if c.Provider.WSURL == "" {
		c.Provider.WSURL = DefaultProviderWSURL
	}
	if c.Provider.Schema == "" {
		c.Provider.Schema = DefaultProviderSchema
	}
	if c.Provider.RollType == "" {
		c.Provider.RollType = DefaultRollType
	}
	if c.Provider.ContractType == "" {
		c.Provider.ContractType = DefaultContractType
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = DefaultProviderTimeout
	}
	if c.Provider.MaxRetries == 0 {
		c.Provider.MaxRetries = DefaultProviderRetries
	}
	if c.Provider.RequestsPerSecond == 0 {
		c.Provider.RequestsPerSecond = DefaultRequestsPerSecond
	}

	// Stream defaults
	if c.Stream.RetryInterval == 0 {
		c.Stream.RetryInterval = DefaultRetryInterval
	}
	if c.Stream.MaxRetries == 0 {
		c.Stream.MaxRetries = DefaultStreamRetries
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.ReadTimeout == 0 {
		c.Stream.ReadTimeout = DefaultReadTimeout
	}
	if c.Stream.BatchSize == 0 {
		c.Stream.BatchSize = DefaultBatchSize
	}
	if c.Stream.FlushInterval == 0 {
		c.Stream.FlushInterval = DefaultFlushInterval
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultBufferSize
	}

	if len(c.Cleaner.TimestampColumns) == 0 {
		c.Cleaner.TimestampColumns = append([]string(nil), DefaultTimestampColumns...)
	}
	if c.Cleaner.MaxGapWarnings == 0 {
		c.Cleaner.MaxGapWarnings = DefaultMaxGapWarnings
	}

	// One in-flight instrument per pooled connection.
	if c.Pipeline.Concurrency == 0 {
		c.Pipeline.Concurrency = c.Database.MaxConns
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Metrics.StaleAfter == 0 {
		c.Metrics.StaleAfter = DefaultStaleAfter
	}
}

func applyBindingDefault(b *Binding, name string) {
	if b.Name == "" && b.Module == "" {
		b.Name = name
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
