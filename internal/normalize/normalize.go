// Package normalize converts source-specific price payloads into the
// canonical bar series every downstream component consumes.
package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"screener/internal/market"
)

// Shape tags accepted by Normalize.
const (
	ShapePriceOnly  = "price-only-pairs"
	ShapeOHLCV      = "ohlcv-records"
	ShapeStoredRows = "stored-rows"
)

// FormatError marks a payload that cannot be normalized at all: alien
// structure, empty body, or a timestamp no parse strategy accepts. It is
// fatal for the asset's run and is never retried automatically.
type FormatError struct {
	Shape  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("normalize %s: %s", e.Shape, e.Reason)
}

func formatErrf(shape, format string, args ...any) error {
	return &FormatError{Shape: shape, Reason: fmt.Sprintf(format, args...)}
}

// Normalize decodes raw according to the shape tag and returns an ordered
// bar series, ascending by time. Unparseable numeric fields become nulls;
// an unparseable timestamp fails the whole payload since silently dropping
// or re-stamping a row would corrupt the ordering invariant.
func Normalize(shape string, raw []byte) (market.Series, error) {
	switch shape {
	case ShapePriceOnly:
		return normalizePriceOnly(raw)
	case ShapeOHLCV:
		return normalizeOHLCV(raw)
	case ShapeStoredRows:
		return normalizeStoredRows(raw)
	default:
		return market.Series{}, formatErrf(shape, "unknown payload shape")
	}
}

// normalizePriceOnly handles [[timestamp, price], ...] payloads. The source
// reports close only, so open/high/low are duplicated from close and volume
// is zero; the series is flagged synthetic so the sufficiency gate keeps
// high/low-dependent families off it.
func normalizePriceOnly(raw []byte) (market.Series, error) {
	var pairs [][]json.RawMessage
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return market.Series{}, formatErrf(ShapePriceOnly, "decode: %v", err)
	}
	if len(pairs) == 0 {
		return market.Series{}, formatErrf(ShapePriceOnly, "empty payload")
	}
	bars := make([]market.Bar, 0, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return market.Series{}, formatErrf(ShapePriceOnly, "entry %d: want [timestamp, price], got %d elements", i, len(pair))
		}
		ts, ok := parseTime(pair[0])
		if !ok {
			return market.Series{}, formatErrf(ShapePriceOnly, "entry %d: unparseable timestamp %s", i, string(pair[0]))
		}
		price := coerceNumber(pair[1])
		bars = append(bars, market.Bar{
			Time:   ts,
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: 0,
		})
	}
	sortBars(bars)
	return market.Series{Bars: bars, SyntheticOHLC: true}, nil
}

// ohlcvRecord mirrors the discrete OHLCV record shape. Fields are raw so
// that absent, null, numeric and numeric-string variants all coerce through
// the same path.
type ohlcvRecord struct {
	Timestamp json.RawMessage `json:"timestamp"`
	Time      json.RawMessage `json:"time"`
	Open      json.RawMessage `json:"open"`
	High      json.RawMessage `json:"high"`
	Low       json.RawMessage `json:"low"`
	Close     json.RawMessage `json:"close"`
	Volume    json.RawMessage `json:"volume"`
}

// normalizeOHLCV handles [{"timestamp": ..., "open": ..., ...}, ...]
// payloads. Only reported fields are set; a genuinely absent open/high/low
// or volume stays null rather than being defaulted, so the gate can tell
// real OHLC apart from synthesized.
func normalizeOHLCV(raw []byte) (market.Series, error) {
	var records []ohlcvRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return market.Series{}, formatErrf(ShapeOHLCV, "decode: %v", err)
	}
	if len(records) == 0 {
		return market.Series{}, formatErrf(ShapeOHLCV, "empty payload")
	}
	bars := make([]market.Bar, 0, len(records))
	for i, rec := range records {
		tsRaw := rec.Timestamp
		if len(tsRaw) == 0 {
			tsRaw = rec.Time
		}
		if len(tsRaw) == 0 {
			return market.Series{}, formatErrf(ShapeOHLCV, "record %d: missing timestamp", i)
		}
		ts, ok := parseTime(tsRaw)
		if !ok {
			return market.Series{}, formatErrf(ShapeOHLCV, "record %d: unparseable timestamp %s", i, string(tsRaw))
		}
		bars = append(bars, market.Bar{
			Time:   ts,
			Open:   coerceNumber(rec.Open),
			High:   coerceNumber(rec.High),
			Low:    coerceNumber(rec.Low),
			Close:  coerceNumber(rec.Close),
			Volume: coerceNumber(rec.Volume),
		})
	}
	sortBars(bars)
	return market.Series{Bars: bars}, nil
}

// storedRow is the store's export row: unix-millisecond time, nullable
// open/high/low/volume.
type storedRow struct {
	Time   int64           `json:"time"`
	Open   json.RawMessage `json:"open"`
	High   json.RawMessage `json:"high"`
	Low    json.RawMessage `json:"low"`
	Close  json.RawMessage `json:"close"`
	Volume json.RawMessage `json:"volume"`
}

func normalizeStoredRows(raw []byte) (market.Series, error) {
	var rows []storedRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return market.Series{}, formatErrf(ShapeStoredRows, "decode: %v", err)
	}
	if len(rows) == 0 {
		return market.Series{}, formatErrf(ShapeStoredRows, "empty payload")
	}
	bars := make([]market.Bar, 0, len(rows))
	for i, row := range rows {
		if row.Time == 0 {
			return market.Series{}, formatErrf(ShapeStoredRows, "row %d: missing time", i)
		}
		bars = append(bars, market.Bar{
			Time:   time.UnixMilli(row.Time).UTC(),
			Open:   coerceNumber(row.Open),
			High:   coerceNumber(row.High),
			Low:    coerceNumber(row.Low),
			Close:  coerceNumber(row.Close),
			Volume: coerceNumber(row.Volume),
		})
	}
	sortBars(bars)
	return market.Series{Bars: bars}, nil
}

// FromBars wraps already-typed rows into a canonical series, restoring the
// ascending-time invariant. Used when bars come straight from the store.
func FromBars(bars []market.Bar) market.Series {
	out := make([]market.Bar, len(bars))
	copy(out, bars)
	sortBars(out)
	return market.Series{Bars: out}
}

func sortBars(bars []market.Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})
}

// coerceNumber turns a raw JSON token into a float64, mapping absent, null,
// non-numeric and NaN-ish inputs to the null value. Numeric strings are
// accepted since several vendors quote their prices.
func coerceNumber(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return market.Null()
	}
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return market.Null()
	}
	if s[0] == '"' {
		var quoted string
		if err := json.Unmarshal(raw, &quoted); err != nil {
			return market.Null()
		}
		s = strings.TrimSpace(quoted)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || market.IsNull(f) {
		return market.Null()
	}
	return f
}
