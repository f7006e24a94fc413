package cleaner

import (
	"time"

	"github.com/rickgao/data-ngin/internal/model"
)

// Gap is a spacing between consecutive bars wider than the expected interval.
type Gap struct {
	After  time.Time
	Before time.Time
}

// Duration returns the width of the gap.
func (g Gap) Duration() time.Duration {
	return g.Before.Sub(g.After)
}

// CountDuplicates returns the number of bars sharing a timestamp with the
// previous bar. bars must be sorted by time.
func CountDuplicates(bars []model.Bar) int {
	n := 0
	for i := 1; i < len(bars); i++ {
		if bars[i].Time.Equal(bars[i-1].Time) {
			n++
		}
	}
	return n
}

// FindGaps returns consecutive bars spaced more than interval apart. bars
// must be sorted by time.
func FindGaps(bars []model.Bar, interval time.Duration) []Gap {
	if interval <= 0 {
		return nil
	}
	var gaps []Gap
	for i := 1; i < len(bars); i++ {
		if bars[i].Time.Sub(bars[i-1].Time) > interval {
			gaps = append(gaps, Gap{After: bars[i-1].Time, Before: bars[i].Time})
		}
	}
	return gaps
}

func (c *Cleaner) checkQuality(bars []model.Bar) {
	if len(bars) == 0 {
		return
	}
	symbol := bars[0].Symbol

	if dups := CountDuplicates(bars); dups > 0 {
		c.logger.Warn("duplicate timestamps found",
			"symbol", symbol,
			"duplicates", dups,
		)
	}

	gaps := FindGaps(bars, c.cfg.ExpectedInterval)
	for i, g := range gaps {
		if i == c.cfg.MaxGapWarnings {
			break
		}
		c.logger.Warn("gap in data",
			"symbol", symbol,
			"after", g.After,
			"before", g.Before,
			"gap", g.Duration(),
		)
	}
	if len(gaps) > c.cfg.MaxGapWarnings {
		c.logger.Warn("additional gaps suppressed",
			"symbol", symbol,
			"total", len(gaps),
			"logged", c.cfg.MaxGapWarnings,
		)
	}
}
