package risk

import "math"

// SizerParams holds the statistics and caps Kelly sizing works from.
type SizerParams struct {
	WinRate     float64
	AvgWin      float64
	AvgLoss     float64
	MaxScore    float64
	FMax        float64
	MinNotional float64
}

// KellyNotional computes a capital allocation from a capped Kelly fraction
// scaled by signal confidence.
//
//	f* = (b*p - q) / b   with b = avgWin/avgLoss, q = 1-p
//
// f* is clamped to [0, fMax], confidence is |score|/maxScore clamped to
// [0,1], and the result is capital * f* * confidence. Anything below the
// minimum tradable notional degrades to 0, which the caller treats as no
// action. For fixed statistics the result is non-decreasing in |score| and
// never exceeds capital*fMax.
func KellyNotional(capital, score float64, p SizerParams) float64 {
	if capital <= 0 || p.MaxScore <= 0 {
		return 0
	}
	if p.AvgWin <= 0 || p.AvgLoss <= 0 {
		return 0
	}

	winRate := clamp(p.WinRate, 0, 1)
	b := p.AvgWin / p.AvgLoss
	fStar := (b*winRate - (1 - winRate)) / b
	fStar = clamp(fStar, 0, p.FMax)

	confidence := clamp(math.Abs(score)/p.MaxScore, 0, 1)
	notional := capital * fStar * confidence

	if notional > capital {
		notional = capital
	}
	if notional < p.MinNotional {
		return 0
	}
	return notional
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
