package fetcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Provider prices are fixed-point integers scaled by 1e-9.
const priceExponent = -9

// Symbology types accepted by the provider.
const (
	stypeContinuous = "continuous"
	stypeRawSymbol  = "raw_symbol"
	stypeParent     = "parent"
	stypeInstrument = "instrument_id"
)

// Record types on the live stream.
const (
	rtypeOHLCVPrefix   = "ohlcv-"
	rtypeTrade         = "trade"
	rtypeSymbolMapping = "symbol_mapping"
	rtypeError         = "error"
	rtypeSystem        = "system"
)

// flexInt decodes an integer sent either bare or as a quoted string. The
// provider quotes 64-bit values to keep them exact in JSON.
type flexInt int64

func (n *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("decode integer %q: %w", b, err)
	}
	*n = flexInt(v)
	return nil
}

// Price converts a fixed-point price to float64.
func (n flexInt) Price() float64 {
	return decimal.New(int64(n), priceExponent).InexactFloat64()
}

// Time converts epoch nanoseconds to UTC.
func (n flexInt) Time() time.Time {
	return time.Unix(0, int64(n)).UTC()
}

// recordHeader is common to every provider record.
type recordHeader struct {
	TsEvent      flexInt `json:"ts_event"`
	RType        any     `json:"rtype"`
	PublisherID  int     `json:"publisher_id"`
	InstrumentID int64   `json:"instrument_id"`
}

// ohlcvRecord is one bar from timeseries.get_range or the live stream.
type ohlcvRecord struct {
	Header recordHeader `json:"hd"`
	Open   flexInt      `json:"open"`
	High   flexInt      `json:"high"`
	Low    flexInt      `json:"low"`
	Close  flexInt      `json:"close"`
	Volume flexInt      `json:"volume"`
	Symbol string       `json:"symbol,omitempty"`
}

// liveMessage is the envelope of a live stream message. Which fields are set
// depends on RType.
type liveMessage struct {
	RType        string  `json:"rtype"`
	TsEvent      flexInt `json:"ts_event"`
	InstrumentID int64   `json:"instrument_id"`
	Symbol       string  `json:"symbol,omitempty"`

	// ohlcv-*
	Open   flexInt `json:"open"`
	High   flexInt `json:"high"`
	Low    flexInt `json:"low"`
	Close  flexInt `json:"close"`
	Volume flexInt `json:"volume"`

	// trade
	Price flexInt `json:"price"`
	Size  flexInt `json:"size"`

	// symbol_mapping
	StypeInSymbol  string `json:"stype_in_symbol,omitempty"`
	StypeOutSymbol string `json:"stype_out_symbol,omitempty"`

	// error, system
	Err string `json:"err,omitempty"`
	Msg string `json:"msg,omitempty"`
}

// subscribeRequest is sent once per live connection.
type subscribeRequest struct {
	Action  string   `json:"action"`
	Dataset string   `json:"dataset"`
	Schema  string   `json:"schema"`
	StypeIn string   `json:"stype_in"`
	Symbols []string `json:"symbols"`
}

func decodeLive(data []byte) (liveMessage, error) {
	var msg liveMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("decode live message: %w", err)
	}
	return msg, nil
}
