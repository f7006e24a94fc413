// Package window splits a date span into contiguous request windows small
// enough for a provider's per-request limits.
package window

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidMaxUnits = errors.New("max units must be positive")
	ErrUnknownUnit     = errors.New("unknown window unit")
)

// Unit is the granularity windows are measured in.
type Unit string

const (
	Day    Unit = "day"
	Hour   Unit = "hour"
	Minute Unit = "minute"
)

// ParseUnit accepts the long, adjective, and short spellings of a unit.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "daily", "d":
		return Day, nil
	case "hour", "hourly", "h":
		return Hour, nil
	case "minute", "min", "m":
		return Minute, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownUnit, s)
	}
}

// Duration returns the length of one unit.
func (u Unit) Duration() (time.Duration, error) {
	switch u {
	case Day:
		return 24 * time.Hour, nil
	case Hour:
		return time.Hour, nil
	case Minute:
		return time.Minute, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, string(u))
	}
}

// Window is a half-open request span [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) String() string {
	return w.Start.Format(time.RFC3339) + "/" + w.End.Format(time.RFC3339)
}

// Plan returns contiguous windows of at most maxUnits units covering
// [start, end]. The final window is clamped to end. An empty or inverted span
// yields no windows.
func Plan(start, end time.Time, unit Unit, maxUnits int) ([]Window, error) {
	if maxUnits <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxUnits, maxUnits)
	}
	d, err := unit.Duration()
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, nil
	}

	step := d * time.Duration(maxUnits)
	n := int((end.Sub(start) + step - 1) / step)
	windows := make([]Window, 0, n)

	for cur := start; cur.Before(end); {
		next := cur.Add(step)
		if next.After(end) {
			next = end
		}
		windows = append(windows, Window{Start: cur, End: next})
		cur = next
	}
	return windows, nil
}
