// Package export writes optional per-asset artifacts: the wide indicator
// table as JSON, an overlay chart, and the run summary table.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"screener/internal/analysis"
	"screener/internal/market"
)

// WriteFrameJSON dumps bars plus the wide indicator columns as one JSON
// record per bar time, nulls preserved as JSON null. Returns the written
// path.
func WriteFrameJSON(dir, symbol string, s market.Series, frame *analysis.Frame) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export dir: %w", err)
	}
	records := make([]map[string]any, 0, s.Len())
	cols := frame.Columns()
	for i, b := range s.Bars {
		rec := map[string]any{
			"timestamp": b.Time.UTC().Format(time.RFC3339),
			"open":      jsonNumber(b.Open),
			"high":      jsonNumber(b.High),
			"low":       jsonNumber(b.Low),
			"close":     jsonNumber(b.Close),
			"volume":    jsonNumber(b.Volume),
		}
		for _, name := range cols {
			rec[name] = jsonNumber(frame.Value(name, i))
		}
		records = append(records, rec)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fileName(symbol)+"_indicators.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func jsonNumber(v float64) any {
	if market.IsNull(v) {
		return nil
	}
	return v
}

func fileName(symbol string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(symbol), "/", "_"))
}
