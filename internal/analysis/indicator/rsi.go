package indicator

import "screener/internal/market"

// rsiSeries computes a Wilder-smoothed RSI whose first value lands at index
// window-1, consistent with the window-1 warmup of the other single-window
// families. The seed averages the first window-1 deltas; later bars apply
// the usual Wilder recurrence.
func rsiSeries(closes []float64, window int) []float64 {
	n := len(closes)
	out := nullColumn(n)
	if window < 2 || n < window {
		return out
	}
	var gain, loss float64
	for i := 1; i < window; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	span := float64(window - 1)
	avgGain := gain / span
	avgLoss := loss / span
	out[window-1] = rsiValue(avgGain, avgLoss)
	for i := window; i < n; i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*span + g) / float64(window)
		avgLoss = (avgLoss*span + l) / float64(window)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if market.IsNull(avgGain) || market.IsNull(avgLoss) {
		return market.Null()
	}
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
