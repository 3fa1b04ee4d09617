package market

import (
	"math"
	"time"
)

// Asset identifies one instrument tracked by the screener. Symbol is the
// natural key; ID is assigned by the store on first ingestion and never
// reused.
type Asset struct {
	ID     int64
	Symbol string
	Name   string
	Source string
}

// Bar is one OHLCV observation. Close is always present; Open/High/Low and
// Volume use NaN when the upstream source did not report them. The store
// boundary maps NaN to SQL NULL and back.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// IndicatorPoint is one computed indicator value in long format. A point only
// exists when the value was computed and is not null.
type IndicatorPoint struct {
	AssetID int64
	Time    time.Time
	Name    string
	Value   float64
}

// Series is an ordered bar sequence for a single asset, ascending by time.
// SyntheticOHLC marks series whose open/high/low were duplicated from close
// by the price-only normalization path.
type Series struct {
	Bars          []Bar
	SyntheticOHLC bool
}

func (s Series) Len() int { return len(s.Bars) }

// Times returns the bar timestamps in order.
func (s Series) Times() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Time
	}
	return out
}

func (s Series) Opens() []float64   { return s.column(func(b Bar) float64 { return b.Open }) }
func (s Series) Highs() []float64   { return s.column(func(b Bar) float64 { return b.High }) }
func (s Series) Lows() []float64    { return s.column(func(b Bar) float64 { return b.Low }) }
func (s Series) Closes() []float64  { return s.column(func(b Bar) float64 { return b.Close }) }
func (s Series) Volumes() []float64 { return s.column(func(b Bar) float64 { return b.Volume }) }

func (s Series) column(pick func(Bar) float64) []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = pick(b)
	}
	return out
}

// IsNull reports whether v represents an absent value.
func IsNull(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// Null returns the in-memory representation of an absent value.
func Null() float64 { return math.NaN() }
