package fetcher

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rickgao/data-ngin/internal/model"
	"github.com/rickgao/data-ngin/internal/stage"
)

const getRangePath = "/timeseries.get_range"

var _ stage.Fetcher = (*Historical)(nil)

// Fetch retrieves bars for symbol over [start, end). Rows carry ts_event,
// symbol, instrument_id, open, high, low, close, and volume.
func (h *Historical) Fetch(ctx context.Context, symbol string, typ model.InstrumentType, start, end time.Time) ([]model.Record, error) {
	if typ != h.cfg.Asset {
		return nil, fmt.Errorf("instrument %s is %s but provider binding serves %s: %w", symbol, typ, h.cfg.Asset, stage.ErrConfiguration)
	}

	reqSymbol, stypeIn, err := h.symbology(symbol, typ)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("dataset", h.cfg.Dataset)
	form.Set("schema", h.cfg.Schema)
	form.Set("symbols", reqSymbol)
	form.Set("stype_in", stypeIn)
	form.Set("stype_out", stypeInstrument)
	form.Set("start", start.UTC().Format(time.RFC3339Nano))
	form.Set("end", end.UTC().Format(time.RFC3339Nano))
	form.Set("encoding", "json")

	h.logger.Debug("fetching range",
		"symbol", reqSymbol,
		"stype_in", stypeIn,
		"start", start,
		"end", end,
	)

	body, err := h.doWithRetry(ctx, getRangePath, form)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("fetch %s: %w: %w", reqSymbol, stage.ErrConnection, err)
	}

	rows, err := h.parseRecords(body, h.storedSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w: %w", reqSymbol, stage.ErrValidation, err)
	}
	if len(rows) == 0 {
		h.logger.Warn("no data returned",
			"symbol", reqSymbol,
			"start", start,
			"end", end,
		)
	}
	return rows, nil
}

// symbology returns the request symbol and its symbology type.
func (h *Historical) symbology(symbol string, typ model.InstrumentType) (string, string, error) {
	switch typ {
	case model.InstrumentFuture:
		return fmt.Sprintf("%s.%s.%s", symbol, h.cfg.RollType, h.cfg.ContractType), stypeContinuous, nil
	case model.InstrumentEquity:
		return symbol, stypeRawSymbol, nil
	default:
		return "", "", fmt.Errorf("instrument type %s not supported by provider: %w", typ, stage.ErrConfiguration)
	}
}

// storedSymbol applies the configured remap to a root symbol.
func (h *Historical) storedSymbol(symbol string) string {
	if mapped, ok := h.cfg.SymbolRemap[symbol]; ok {
		return mapped
	}
	return symbol
}

// parseRecords decodes a JSON-lines body.
func (h *Historical) parseRecords(body []byte, symbol string) ([]model.Record, error) {
	var rows []model.Record

	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		var rec ohlcvRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rows = append(rows, model.Record{
			model.ColEventTimestamp: rec.Header.TsEvent.Time(),
			model.ColSymbol:         symbol,
			model.ColInstrumentID:   rec.Header.InstrumentID,
			model.ColOpen:           rec.Open.Price(),
			model.ColHigh:           rec.High.Price(),
			model.ColLow:            rec.Low.Price(),
			model.ColClose:          rec.Close.Price(),
			model.ColVolume:         int64(rec.Volume),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan response: %w", err)
	}
	return rows, nil
}
