package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Catalog Types
// -----------------------------------------------------------------------------

// InstrumentType classifies an instrument for provider symbology.
type InstrumentType string

const (
	InstrumentFuture InstrumentType = "FUTURE"
	InstrumentEquity InstrumentType = "EQUITY"
	InstrumentOption InstrumentType = "OPTION"
	InstrumentIndex  InstrumentType = "INDEX"
)

// ParseInstrumentType parses a catalog value such as "future" or "EQUITY".
func ParseInstrumentType(s string) (InstrumentType, error) {
	switch t := InstrumentType(strings.ToUpper(strings.TrimSpace(s))); t {
	case InstrumentFuture, InstrumentEquity, InstrumentOption, InstrumentIndex:
		return t, nil
	default:
		return "", fmt.Errorf("unknown instrument type %q", s)
	}
}

// Instrument is one entry of the symbol catalog. Immutable for a run.
type Instrument struct {
	Symbol string         // Provider root symbol (e.g., "ES")
	Type   InstrumentType // Drives symbology and provider binding checks
}

// -----------------------------------------------------------------------------
// Row Types
// -----------------------------------------------------------------------------

// Canonical column names.
const (
	ColTime           = "time"
	ColSymbol         = "symbol"
	ColOpen           = "open"
	ColHigh           = "high"
	ColLow            = "low"
	ColClose          = "close"
	ColVolume         = "volume"
	ColBackAdjOpen    = "back_adjusted_open"
	ColBackAdjHigh    = "back_adjusted_high"
	ColBackAdjLow     = "back_adjusted_low"
	ColBackAdjClose   = "back_adjusted_close"
	ColInstrumentID   = "instrument_id"
	ColContract       = "contract"
	ColEventTimestamp = "ts_event"
)

// RequiredColumns lists the fields every raw row must carry before cleaning.
var RequiredColumns = []string{ColTime, ColSymbol, ColOpen, ColHigh, ColLow, ColClose, ColVolume}

// Record is a raw provider row. Column set is whatever the provider returned;
// a nil value is a null.
type Record map[string]any

// Columns returns the record's keys in sorted order.
func (r Record) Columns() []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// AdjustedPrices holds back-adjusted prices for a continuous futures series.
type AdjustedPrices struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Bar is a canonical OHLCV row. (Time, Symbol) is the persisted primary key.
type Bar struct {
	Time     time.Time // UTC
	Symbol   string    // Continuous/root symbol used for storage
	Contract string    // Underlying contract identity; empty means same as Symbol
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   int64

	BackAdjusted *AdjustedPrices // nil until the back-adjustment engine runs
}

// ContractKey returns the identity used for roll detection.
func (b Bar) ContractKey() string {
	if b.Contract != "" {
		return b.Contract
	}
	return b.Symbol
}

// Record converts the bar to the column map written to the clean table.
func (b Bar) Record() Record {
	rec := Record{
		ColTime:   b.Time,
		ColSymbol: b.Symbol,
		ColOpen:   b.Open,
		ColHigh:   b.High,
		ColLow:    b.Low,
		ColClose:  b.Close,
		ColVolume: b.Volume,
	}
	if b.BackAdjusted != nil {
		rec[ColBackAdjOpen] = b.BackAdjusted.Open
		rec[ColBackAdjHigh] = b.BackAdjusted.High
		rec[ColBackAdjLow] = b.BackAdjusted.Low
		rec[ColBackAdjClose] = b.BackAdjusted.Close
	}
	return rec
}

// BarsToRecords converts cleaned bars for insertion.
func BarsToRecords(bars []Bar) []Record {
	out := make([]Record, len(bars))
	for i, b := range bars {
		out[i] = b.Record()
	}
	return out
}
