package fetcher

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/rickgao/data-ngin/internal/model"
)

// DefaultRetryBackoff is the base delay between request retries.
const DefaultRetryBackoff = time.Second

// HistoricalConfig describes one provider binding.
type HistoricalConfig struct {
	BaseURL      string
	APIKey       string
	Asset        model.InstrumentType // Only instruments of this type are served
	Dataset      string               // e.g., GLBX.MDP3
	Schema       string               // e.g., ohlcv-1d
	RollType     string               // Continuous roll rule: c (calendar), n (open interest), v (volume)
	ContractType string               // Continuous contract rank, "0" is front month
	SymbolRemap  map[string]string    // Root symbol -> stored symbol
}

// Historical fetches bars from the provider's HTTP API.
type Historical struct {
	cfg        HistoricalConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// Option configures a Historical fetcher.
type Option func(*Historical)

// NewHistorical creates a historical fetcher.
func NewHistorical(cfg HistoricalConfig, opts ...Option) *Historical {
	h := &Historical{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:      rate.NewLimiter(rate.Inf, 1),
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: DefaultRetryBackoff,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(h *Historical) {
		h.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) Option {
	return func(h *Historical) {
		h.maxRetries = max
		h.retryBackoff = backoff
	}
}

// WithRateLimit caps provider requests per second. Zero or less disables the cap.
func WithRateLimit(rps float64) Option {
	return func(h *Historical) {
		if rps <= 0 {
			h.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		h.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Historical) {
		h.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(h *Historical) {
		h.httpClient = hc
	}
}
