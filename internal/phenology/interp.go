package phenology

import "math"

// InterpolateGaps fills NaN runs by linear interpolation between the valid
// neighbors on each side. Runs longer than maxGap points are left alone, as
// are leading and trailing NaNs, which have only one neighbor and must not
// be extrapolated. The second return reports which indices were filled.
func InterpolateGaps(values []float64, maxGap int) ([]float64, []bool) {
	n := len(values)
	out := make([]float64, n)
	copy(out, values)
	filled := make([]bool, n)

	if maxGap <= 0 {
		return out, filled
	}

	i := 0
	for i < n {
		if !math.IsNaN(out[i]) {
			i++
			continue
		}

		// Found the start of a NaN run; find its end.
		start := i
		for i < n && math.IsNaN(out[i]) {
			i++
		}
		end := i // first valid index after the run, or n

		if start == 0 || end == n {
			continue // leading or trailing run
		}
		if end-start > maxGap {
			continue
		}

		left := out[start-1]
		right := out[end]
		span := float64(end - (start - 1))
		for j := start; j < end; j++ {
			frac := float64(j-(start-1)) / span
			out[j] = left + (right-left)*frac
			filled[j] = true
		}
	}

	return out, filled
}
