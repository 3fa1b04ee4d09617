package indicator

import (
	"fmt"

	"screener/internal/market"
)

// Decision is the sufficiency gate's verdict for one family. When Compute is
// false the family's output columns are forced to null and Reason records
// the diagnostic.
type Decision struct {
	Family  string
	Compute bool
	Reason  string
}

// Gate runs the sufficiency checks for every family, before any computation.
// It is a pre-condition, not error recovery: families it rejects are never
// invoked.
func Gate(s market.Series) []Decision {
	real := RealOHLC(s)
	hasVol := HasVolume(s)
	out := make([]Decision, 0, len(families))
	for _, f := range families {
		out = append(out, gateFamily(f, s.Len(), real, hasVol))
	}
	return out
}

func gateFamily(f Family, n int, realOHLC, hasVolume bool) Decision {
	d := Decision{Family: f.Name, Compute: true}
	switch {
	case n < f.MinBars:
		d.Compute = false
		d.Reason = fmt.Sprintf("%d bars, need %d", n, f.MinBars)
	case f.NeedsRealOHLC && !realOHLC:
		d.Compute = false
		d.Reason = "open/high/low are synthesized from close"
	case f.NeedsVolume && !hasVolume:
		d.Compute = false
		d.Reason = "volume absent or all zero"
	}
	return d
}

// RealOHLC reports whether the series carries genuine open/high/low data. A
// series is real iff at least one bar has a present open, high or low that
// differs from its close; a series whose open/high/low are entirely absent
// or element-wise duplicates of close is close-only. Series already flagged
// synthetic by the price-only normalization path short-circuit to false.
func RealOHLC(s market.Series) bool {
	if s.SyntheticOHLC {
		return false
	}
	for _, b := range s.Bars {
		if market.IsNull(b.Close) {
			continue
		}
		if differs(b.Open, b.Close) || differs(b.High, b.Close) || differs(b.Low, b.Close) {
			return true
		}
	}
	return false
}

func differs(v, close float64) bool {
	return !market.IsNull(v) && v != close
}

// HasVolume reports whether the series has a usable volume column: at least
// one non-null, non-zero entry.
func HasVolume(s market.Series) bool {
	for _, b := range s.Bars {
		if !market.IsNull(b.Volume) && b.Volume != 0 {
			return true
		}
	}
	return false
}
