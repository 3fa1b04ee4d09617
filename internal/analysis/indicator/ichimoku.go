package indicator

import "screener/internal/market"

const (
	ichimokuConvWindow = 9
	ichimokuBaseWindow = 26
	ichimokuSpanWindow = 52
	ichimokuLagOffset  = 26
)

// computeIchimoku builds the five cloud lines. Values are stored at their
// source bar without the chart-plotting forward shift, and the lagging line
// carries the close from 26 bars back aligned to the current bar, so every
// column is populated from index 51 onward on a sufficient series.
func computeIchimoku(s market.Series) map[string][]float64 {
	highs := s.Highs()
	lows := s.Lows()
	closes := s.Closes()
	n := len(closes)

	conv := midlineSeries(highs, lows, ichimokuConvWindow)
	base := midlineSeries(highs, lows, ichimokuBaseWindow)
	spanA := nullColumn(n)
	for i := range spanA {
		if !market.IsNull(conv[i]) && !market.IsNull(base[i]) {
			spanA[i] = (conv[i] + base[i]) / 2
		}
	}
	spanB := midlineSeries(highs, lows, ichimokuSpanWindow)
	lag := nullColumn(n)
	for i := ichimokuLagOffset; i < n; i++ {
		lag[i] = closes[i-ichimokuLagOffset]
	}
	return map[string][]float64{
		ColConv:  conv,
		ColBase:  base,
		ColSpanA: spanA,
		ColSpanB: spanB,
		ColLag:   lag,
	}
}

// midlineSeries is (highest high + lowest low) / 2 over a trailing window.
// A null high or low anywhere in the window nulls the output.
func midlineSeries(highs, lows []float64, window int) []float64 {
	n := len(highs)
	out := nullColumn(n)
	for i := window - 1; i < n; i++ {
		hh, ok1 := windowMax(highs[i-window+1 : i+1])
		ll, ok2 := windowMin(lows[i-window+1 : i+1])
		if ok1 && ok2 {
			out[i] = (hh + ll) / 2
		}
	}
	return out
}

func windowMax(vals []float64) (float64, bool) {
	best := vals[0]
	for _, v := range vals {
		if market.IsNull(v) {
			return 0, false
		}
		if v > best {
			best = v
		}
	}
	return best, !market.IsNull(best)
}

func windowMin(vals []float64) (float64, bool) {
	best := vals[0]
	for _, v := range vals {
		if market.IsNull(v) {
			return 0, false
		}
		if v < best {
			best = v
		}
	}
	return best, !market.IsNull(best)
}
