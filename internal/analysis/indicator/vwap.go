package indicator

import "screener/internal/market"

const vwapWindow = 14

// computeVWAP is a rolling volume-weighted typical price: sum(tp*vol) over
// sum(vol) across the trailing window. A null input or zero volume-sum in
// the window nulls the output.
func computeVWAP(s market.Series) map[string][]float64 {
	highs := s.Highs()
	lows := s.Lows()
	closes := s.Closes()
	volumes := s.Volumes()
	n := len(closes)

	out := nullColumn(n)
	for i := vwapWindow - 1; i < n; i++ {
		var pv, vol float64
		valid := true
		for j := i - vwapWindow + 1; j <= i; j++ {
			if market.IsNull(highs[j]) || market.IsNull(lows[j]) ||
				market.IsNull(closes[j]) || market.IsNull(volumes[j]) {
				valid = false
				break
			}
			tp := (highs[j] + lows[j] + closes[j]) / 3
			pv += tp * volumes[j]
			vol += volumes[j]
		}
		if !valid || vol == 0 {
			continue
		}
		out[i] = pv / vol
	}
	return map[string][]float64{ColVWAP: out}
}
