package cleaner

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var errNull = errors.New("null value")

// Accepted string timestamp layouts, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.DateTime,
	time.DateOnly,
}

// toTime coerces v to UTC. Integers are epoch nanoseconds.
func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, errNull
	case time.Time:
		return t.UTC(), nil
	case *time.Time:
		if t == nil {
			return time.Time{}, errNull
		}
		return t.UTC(), nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), nil
			}
		}
		if ns, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(0, ns).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", t)
	case int64:
		return time.Unix(0, t).UTC(), nil
	case int:
		return time.Unix(0, int64(t)).UTC(), nil
	case uint64:
		return time.Unix(0, int64(t)).UTC(), nil
	case float64:
		return time.Unix(0, int64(t)).UTC(), nil
	case json.Number:
		ns, err := t.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("unparseable timestamp %q", t.String())
		}
		return time.Unix(0, ns).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

// toFloat coerces a numeric cell to float64.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, errNull
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case decimal.Decimal:
		return n.InexactFloat64(), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("unparseable number %q", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
}

// toInt coerces a volume cell to int64. Fractional values are truncated.
func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i, nil
		}
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
