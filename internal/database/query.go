package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgxpool.Pool used for reads.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Querier = (*pgxpool.Pool)(nil)

// LatestStore answers the newest persisted timestamp of a table.
type LatestStore struct {
	db Querier
}

// NewLatestStore wraps a pool for latest-timestamp lookups.
func NewLatestStore(db Querier) *LatestStore {
	return &LatestStore{db: db}
}

// LatestTime returns MAX(time) of schema.table. ok is false when the table is
// empty.
func (s *LatestStore) LatestTime(ctx context.Context, schema, table string) (time.Time, bool, error) {
	sql := fmt.Sprintf("SELECT MAX(time) FROM %s", pgx.Identifier{schema, table}.Sanitize())

	var latest *time.Time
	if err := s.db.QueryRow(ctx, sql).Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("query latest time of %s.%s: %w", schema, table, err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return latest.UTC(), true, nil
}

// Staleness reports how old the newest row of a table is.
type Staleness struct {
	Latest time.Time     `json:"latest,omitempty"`
	Age    time.Duration `json:"age"`
	Stale  bool          `json:"stale"`
	Empty  bool          `json:"empty"`
}

// CheckStaleness flags schema.table as stale when its newest row is older than
// threshold. An empty table is stale. Stale data is a warning, not an error.
func (s *LatestStore) CheckStaleness(ctx context.Context, schema, table string, threshold time.Duration, now time.Time, logger *slog.Logger) (Staleness, error) {
	if logger == nil {
		logger = slog.Default()
	}

	latest, ok, err := s.LatestTime(ctx, schema, table)
	if err != nil {
		return Staleness{}, err
	}
	if !ok {
		logger.Warn("table has no data", "schema", schema, "table", table)
		return Staleness{Stale: true, Empty: true}, nil
	}

	st := Staleness{Latest: latest, Age: now.Sub(latest)}
	if st.Age > threshold {
		st.Stale = true
		logger.Warn("data is stale",
			"schema", schema,
			"table", table,
			"latest", latest,
			"age", st.Age,
			"threshold", threshold,
		)
	}
	return st, nil
}
