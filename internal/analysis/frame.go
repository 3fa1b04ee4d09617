// Package analysis holds the wide indicator table and its sparse long-format
// transformation.
package analysis

import (
	"fmt"
	"time"

	"screener/internal/market"
)

// Frame is a wide indicator table: one row per bar time, one column per
// indicator output, aligned on the normalizer's time index. A Frame only
// ever contains indicator columns; price, volume and identity columns never
// enter it, so melting cannot pick them up by accident. Frames are built
// once and treated as immutable afterwards.
type Frame struct {
	times []time.Time
	names []string
	cols  map[string][]float64
}

// NewFrame creates an empty frame over the given time index.
func NewFrame(times []time.Time) *Frame {
	idx := make([]time.Time, len(times))
	copy(idx, times)
	return &Frame{
		times: idx,
		cols:  make(map[string][]float64),
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.times) }

// Times returns the time index.
func (f *Frame) Times() []time.Time { return f.times }

// AddColumn attaches one output column. The column must match the index
// length and its name must be unique within the frame.
func (f *Frame) AddColumn(name string, values []float64) error {
	if len(values) != len(f.times) {
		return fmt.Errorf("column %s: %d values for %d rows", name, len(values), len(f.times))
	}
	if _, exists := f.cols[name]; exists {
		return fmt.Errorf("column %s already present", name)
	}
	f.names = append(f.names, name)
	f.cols[name] = values
	return nil
}

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string { return f.names }

// Column returns one column by name.
func (f *Frame) Column(name string) ([]float64, bool) {
	col, ok := f.cols[name]
	return col, ok
}

// Value returns a single cell; null when the column does not exist.
func (f *Frame) Value(name string, row int) float64 {
	col, ok := f.cols[name]
	if !ok || row < 0 || row >= len(col) {
		return market.Null()
	}
	return col[row]
}

// Melt reshapes the frame into sparse long-format points for assetID: one
// point per non-null (time, column) cell. Null cells are dropped entirely:
// a missing point means "not computed", never "computed as zero".
func (f *Frame) Melt(assetID int64) []market.IndicatorPoint {
	out := make([]market.IndicatorPoint, 0, len(f.names)*len(f.times)/2)
	for _, name := range f.names {
		col := f.cols[name]
		for i, v := range col {
			if market.IsNull(v) {
				continue
			}
			out = append(out, market.IndicatorPoint{
				AssetID: assetID,
				Time:    f.times[i],
				Name:    name,
				Value:   v,
			})
		}
	}
	return out
}
