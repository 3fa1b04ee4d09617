package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"screener/internal/analysis"
	"screener/internal/analysis/indicator"
	"screener/internal/market"
)

// chart overlays drawn on top of the candles.
var overlayColumns = []string{
	indicator.ColSMA20,
	indicator.ColBBHigh,
	indicator.ColBBLow,
}

// WriteChart renders an HTML candle chart with the moving-average and band
// overlays. Returns the written path.
func WriteChart(dir, symbol string, s market.Series, frame *analysis.Frame) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export dir: %w", err)
	}
	x := make([]string, s.Len())
	candles := make([]opts.KlineData, s.Len())
	for i, b := range s.Bars {
		x[i] = b.Time.UTC().Format(time.DateOnly)
		// echarts kline order is [open, close, low, high].
		candles[i] = opts.KlineData{Value: [4]float64{b.Open, b.Close, b.Low, b.High}}
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: symbol}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	kline.SetXAxis(x).AddSeries("price", candles)

	for _, name := range overlayColumns {
		col, ok := frame.Column(name)
		if !ok {
			continue
		}
		points := make([]opts.LineData, len(col))
		populated := false
		for i, v := range col {
			if market.IsNull(v) {
				points[i] = opts.LineData{Value: nil}
				continue
			}
			points[i] = opts.LineData{Value: v}
			populated = true
		}
		if !populated {
			continue
		}
		line := charts.NewLine()
		line.SetXAxis(x).AddSeries(name, points,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
		kline.Overlap(line)
	}

	path := filepath.Join(dir, fileName(symbol)+"_chart.html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := kline.Render(f); err != nil {
		return "", fmt.Errorf("render chart: %w", err)
	}
	return path, nil
}
