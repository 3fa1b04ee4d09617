package indicator

import "screener/internal/market"

// Output column names. The registry is closed: indicator_name values in
// storage are always drawn from this set.
const (
	ColSMA20      = "SMA_20"
	ColRSI14      = "RSI_14"
	ColMACDLine   = "MACD_line"
	ColMACDSignal = "MACD_signal"
	ColMACDHist   = "MACD_hist"
	ColBBMid      = "bb_mid"
	ColBBHigh     = "bb_high"
	ColBBLow      = "bb_low"
	ColConv       = "conv"
	ColBase       = "base"
	ColSpanA      = "span_a"
	ColSpanB      = "span_b"
	ColLag        = "lag"
	ColStochK     = "stoch_k"
	ColStochD     = "stoch_d"
	ColATR        = "atr"
	ColVWAP       = "vwap"
)

// Family describes one indicator family: its output columns, the minimum bar
// count below which every output is null, and the gate requirements on input
// quality. Compute is pure over the bar series and returns one full-length
// column per output name, nulls in the warmup region.
type Family struct {
	Name          string
	Outputs       []string
	MinBars       int
	NeedsRealOHLC bool
	NeedsVolume   bool
	Compute       func(s market.Series) map[string][]float64
}

// families is the closed registry, in computation (and column) order.
// Composite minimums: MACD 26+9, stochastic 14+3+3-2, ATR period+1 bars for
// the first true range.
var families = []Family{
	{
		Name:    "sma",
		Outputs: []string{ColSMA20},
		MinBars: 20,
		Compute: computeSMA,
	},
	{
		Name:    "rsi",
		Outputs: []string{ColRSI14},
		MinBars: 14,
		Compute: computeRSI,
	},
	{
		Name:    "macd",
		Outputs: []string{ColMACDLine, ColMACDSignal, ColMACDHist},
		MinBars: 35,
		Compute: computeMACD,
	},
	{
		Name:    "bbands",
		Outputs: []string{ColBBMid, ColBBHigh, ColBBLow},
		MinBars: 20,
		Compute: computeBBands,
	},
	{
		Name:          "ichimoku",
		Outputs:       []string{ColConv, ColBase, ColSpanA, ColSpanB, ColLag},
		MinBars:       52,
		NeedsRealOHLC: true,
		Compute:       computeIchimoku,
	},
	{
		Name:          "stoch",
		Outputs:       []string{ColStochK, ColStochD},
		MinBars:       18,
		NeedsRealOHLC: true,
		Compute:       computeStoch,
	},
	{
		Name:          "atr",
		Outputs:       []string{ColATR},
		MinBars:       15,
		NeedsRealOHLC: true,
		Compute:       computeATR,
	},
	{
		Name:          "vwap",
		Outputs:       []string{ColVWAP},
		MinBars:       14,
		NeedsRealOHLC: true,
		NeedsVolume:   true,
		Compute:       computeVWAP,
	},
}

// Families returns the closed registry in order.
func Families() []Family { return families }

// AllOutputs returns every output column name in registry order.
func AllOutputs() []string {
	out := make([]string, 0, 17)
	for _, f := range families {
		out = append(out, f.Outputs...)
	}
	return out
}
