// Package indicator computes the fixed battery of technical indicator
// families over a canonical bar series, behind a data-sufficiency gate.
package indicator

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"screener/internal/analysis"
	"screener/internal/logger"
	"screener/internal/market"
)

// Result bundles the wide indicator frame with the gate's skip diagnostics
// and any families degraded by a computation failure.
type Result struct {
	Frame    *analysis.Frame
	Skipped  []Decision
	Degraded []string
}

// Compute runs the sufficiency gate and every admitted family over the
// series, producing a wide frame with one column per registry output. Gated
// or failed families contribute explicit null columns, so the column set is
// identical for every run. Families are independent: a panic inside one is
// recovered and degrades only that family.
func Compute(s market.Series) (Result, error) {
	if s.Len() == 0 {
		return Result{}, fmt.Errorf("no bars")
	}
	frame := analysis.NewFrame(s.Times())
	res := Result{Frame: frame}
	decisions := Gate(s)
	for i, f := range families {
		d := decisions[i]
		if !d.Compute {
			res.Skipped = append(res.Skipped, d)
			addNullFamily(frame, f)
			continue
		}
		cols, err := computeFamily(f, s)
		if err != nil {
			logger.Warnf("indicator family %s failed: %v", f.Name, err)
			res.Degraded = append(res.Degraded, f.Name)
			addNullFamily(frame, f)
			continue
		}
		for _, name := range f.Outputs {
			col, ok := cols[name]
			if !ok {
				col = nullColumn(s.Len())
			}
			mustAdd(frame, name, col)
		}
	}
	return res, nil
}

// computeFamily isolates one family's numeric work; a panic inside the
// family surfaces as an error instead of aborting the other families.
func computeFamily(f Family, s market.Series) (cols map[string][]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			cols = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	cols = f.Compute(s)
	for name, col := range cols {
		if len(col) != s.Len() {
			return nil, fmt.Errorf("column %s: %d values for %d bars", name, len(col), s.Len())
		}
		sanitize(col)
	}
	return cols, nil
}

func computeSMA(s market.Series) map[string][]float64 {
	out := talib.Sma(s.Closes(), 20)
	maskWarmup(out, 19)
	return map[string][]float64{ColSMA20: out}
}

func computeRSI(s market.Series) map[string][]float64 {
	return map[string][]float64{ColRSI14: rsiSeries(s.Closes(), 14)}
}

func computeMACD(s market.Series) map[string][]float64 {
	line, signal, hist := talib.Macd(s.Closes(), 12, 26, 9)
	// TA-Lib's MACD lookback is (slow-1)+(signal-1) = 33 for all three
	// outputs.
	maskWarmup(line, 33)
	maskWarmup(signal, 33)
	maskWarmup(hist, 33)
	return map[string][]float64{
		ColMACDLine:   line,
		ColMACDSignal: signal,
		ColMACDHist:   hist,
	}
}

func computeBBands(s market.Series) map[string][]float64 {
	upper, mid, lower := talib.BBands(s.Closes(), 20, 2, 2, talib.SMA)
	maskWarmup(upper, 19)
	maskWarmup(mid, 19)
	maskWarmup(lower, 19)
	return map[string][]float64{
		ColBBMid:  mid,
		ColBBHigh: upper,
		ColBBLow:  lower,
	}
}

func computeStoch(s market.Series) map[string][]float64 {
	k, d := talib.Stoch(s.Highs(), s.Lows(), s.Closes(), 14, 3, talib.SMA, 3, talib.SMA)
	// lookback = (14-1)+(3-1)+(3-1) = 17.
	maskWarmup(k, 17)
	maskWarmup(d, 17)
	return map[string][]float64{ColStochK: k, ColStochD: d}
}

func computeATR(s market.Series) map[string][]float64 {
	out := talib.Atr(s.Highs(), s.Lows(), s.Closes(), 14)
	maskWarmup(out, 14)
	return map[string][]float64{ColATR: out}
}

func addNullFamily(frame *analysis.Frame, f Family) {
	for _, name := range f.Outputs {
		mustAdd(frame, name, nullColumn(frame.Len()))
	}
}

func mustAdd(frame *analysis.Frame, name string, col []float64) {
	if err := frame.AddColumn(name, col); err != nil {
		// Registry output names are unique and columns are built to index
		// length, so this only fires on a programming error.
		panic(err)
	}
}

func nullColumn(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = market.Null()
	}
	return out
}

// maskWarmup nulls the first n entries, where the library's warmup output is
// zero-filled rather than null.
func maskWarmup(series []float64, n int) {
	if n > len(series) {
		n = len(series)
	}
	for i := 0; i < n; i++ {
		series[i] = market.Null()
	}
}

// sanitize maps infinities to null in place, keeping positions intact.
func sanitize(series []float64) {
	for i, v := range series {
		if market.IsNull(v) {
			series[i] = market.Null()
		}
	}
}
