package phenology

import "math"

// RescaleMinMax maps a series onto [0, 1] using its own minimum and
// maximum, ignoring NaNs. The returned min and max are of the input; when
// the series has no valid points or zero amplitude, every output is NaN and
// min/max are NaN. Callers decide how small an amplitude is still a season
// worth scaling.
func RescaleMinMax(values []float64) ([]float64, float64, float64) {
	minV := math.Inf(1)
	maxV := math.Inf(-1)
	valid := 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		valid++
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}

	out := make([]float64, len(values))
	if valid == 0 || maxV <= minV {
		for i := range out {
			out[i] = math.NaN()
		}
		return out, math.NaN(), math.NaN()
	}

	amp := maxV - minV
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		out[i] = (v - minV) / amp
	}
	return out, minV, maxV
}
