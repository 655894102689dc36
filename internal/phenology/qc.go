package phenology

import "math"

// ScreenQC returns a copy of values where every observation ranked above
// maxRank is replaced with NaN, turning low-quality retrievals into gaps
// for the interpolation step.
func ScreenQC(values []float64, ranks []int, maxRank int) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if i < len(ranks) && ranks[i] > maxRank {
			out[i] = math.NaN()
			continue
		}
		out[i] = v
	}
	return out
}

// GoodFraction returns the fraction of observations at or below maxRank.
// Observations that arrived as NaN count as bad regardless of rank.
func GoodFraction(values []float64, ranks []int, maxRank int) float64 {
	if len(values) == 0 {
		return 0
	}
	good := 0
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if i < len(ranks) && ranks[i] > maxRank {
			continue
		}
		good++
	}
	return float64(good) / float64(len(values))
}
