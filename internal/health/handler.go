// Package health serves the metrics server's /health endpoint.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/data-ngin/internal/database"
)

// Status values, ordered by severity.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Pinger checks database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StalenessChecker reports the age of the newest row in a table.
type StalenessChecker interface {
	CheckStaleness(ctx context.Context, schema, table string, threshold time.Duration, now time.Time, logger *slog.Logger) (database.Staleness, error)
}

// Config names the table whose freshness is reported.
type Config struct {
	Schema     string
	Table      string
	StaleAfter time.Duration
}

// Report is the /health response body.
type Report struct {
	Status     string         `json:"status"`
	Components map[string]any `json:"components"`
}

// Checker builds health reports. A nil db reports the database as disabled,
// as in dry runs.
type Checker struct {
	db     Pinger
	stale  StalenessChecker
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewChecker creates a checker. stale may be nil to skip the freshness check.
func NewChecker(db Pinger, stale StalenessChecker, cfg Config, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{db: db, stale: stale, cfg: cfg, logger: logger, now: time.Now}
}

// Check runs every component check.
func (c *Checker) Check(ctx context.Context) Report {
	report := Report{
		Status:     StatusHealthy,
		Components: make(map[string]any),
	}

	if c.db == nil {
		report.Components["timescaledb"] = "disabled"
		return report
	}

	if err := c.db.Ping(ctx); err != nil {
		report.Status = StatusUnhealthy
		report.Components["timescaledb"] = map[string]string{
			"status": "disconnected",
			"error":  err.Error(),
		}
		return report
	}
	report.Components["timescaledb"] = "connected"

	if c.stale == nil {
		return report
	}
	st, err := c.stale.CheckStaleness(ctx, c.cfg.Schema, c.cfg.Table, c.cfg.StaleAfter, c.now(), c.logger)
	if err != nil {
		report.Status = StatusDegraded
		report.Components["freshness"] = map[string]string{"error": err.Error()}
		return report
	}
	if st.Stale {
		report.Status = StatusDegraded
	}
	report.Components["freshness"] = map[string]any{
		"table":  c.cfg.Schema + "." + c.cfg.Table,
		"latest": st.Latest,
		"age":    st.Age.String(),
		"stale":  st.Stale,
		"empty":  st.Empty,
	}
	return report
}

// Handler serves Check as JSON. Unhealthy reports return 503.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		report := c.Check(ctx)

		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(report); err != nil {
			c.logger.Debug("write health response", "error", err)
		}
	})
}

// NewMux mounts the metrics handler at metricsPath and the checker at /health.
func NewMux(metricsPath string, metrics http.Handler, checker *Checker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, metrics)
	mux.Handle("/health", checker.Handler())
	return mux
}
