package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rickgao/data-ngin/internal/config"
)

// LatestSource reports the newest persisted time in a table.
type LatestSource interface {
	LatestTime(ctx context.Context, schema, table string) (time.Time, bool, error)
}

// nextStartOffset is added to the latest persisted time for incremental runs.
const nextStartOffset = 24 * time.Hour

// dateWindow picks the run's [start, end) span. An explicit start date wins;
// otherwise the run resumes a day after the newest persisted bar, falling back
// to the configured default start for an empty table.
func dateWindow(ctx context.Context, cfg *config.Config, latest LatestSource, now time.Time) (time.Time, time.Time, error) {
	tr := cfg.TimeRange
	end := now.UTC()
	if tr.EndDate != "" {
		t, err := config.ParseDate(tr.EndDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("time_range.end_date: %w", err)
		}
		end = t
	}

	if tr.StartDate != "" {
		start, err := config.ParseDate(tr.StartDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("time_range.start_date: %w", err)
		}
		return start, end, nil
	}

	if latest != nil {
		t, ok, err := latest.LatestTime(ctx, cfg.Database.TargetSchema, cfg.Database.Table)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("latest persisted time: %w", err)
		}
		if ok {
			return t.UTC().Add(nextStartOffset), end, nil
		}
	}

	start, err := config.ParseDate(tr.DefaultStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("time_range.default_start: %w", err)
	}
	return start, end, nil
}
