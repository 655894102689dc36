package phenology

import (
	"fmt"
	"math"
)

// Crossing holds the season dates derived from one threshold, expressed as
// fractional day-of-season.
type Crossing struct {
	Threshold float64 `json:"threshold"`
	// SOSDay is the first day the rescaled series rises through the
	// threshold; EOSDay the last day it falls through it.
	SOSDay float64 `json:"sos_day"`
	EOSDay float64 `json:"eos_day"`
	// LOSDays is the length of season, EOSDay - SOSDay.
	LOSDays float64 `json:"los_days"`
}

// CrossingDates finds the first upward and last downward crossing of a
// fractional threshold in a rescaled series. days holds the day-of-season
// of each point and must be strictly increasing where values are valid.
// Crossing days are linearly interpolated between the bracketing composite
// points, so a 16-day product still yields calendar-day precision.
//
// A series already above the threshold at its first valid point is clamped
// to start there, and symmetrically at the end. The second return is false
// when the series never reaches the threshold.
func CrossingDates(days, values []float64, threshold float64) (Crossing, bool) {
	if len(days) != len(values) {
		return Crossing{}, false
	}
	if threshold <= 0 || threshold >= 1 {
		return Crossing{}, false
	}

	// Compact away NaNs; crossings are between consecutive valid points.
	xs := make([]float64, 0, len(days))
	ys := make([]float64, 0, len(values))
	for i := range values {
		if math.IsNaN(values[i]) || math.IsNaN(days[i]) {
			continue
		}
		xs = append(xs, days[i])
		ys = append(ys, values[i])
	}
	if len(xs) < 2 {
		return Crossing{}, false
	}

	c := Crossing{Threshold: threshold, SOSDay: math.NaN(), EOSDay: math.NaN()}

	// Start of season: first upward crossing.
	if ys[0] >= threshold {
		c.SOSDay = xs[0]
	} else {
		for i := 1; i < len(ys); i++ {
			if ys[i-1] < threshold && ys[i] >= threshold {
				c.SOSDay = interpCrossing(xs[i-1], ys[i-1], xs[i], ys[i], threshold)
				break
			}
		}
	}

	// End of season: last downward crossing.
	if ys[len(ys)-1] >= threshold {
		c.EOSDay = xs[len(xs)-1]
	} else {
		for i := len(ys) - 1; i >= 1; i-- {
			if ys[i-1] >= threshold && ys[i] < threshold {
				c.EOSDay = interpCrossing(xs[i-1], ys[i-1], xs[i], ys[i], threshold)
				break
			}
		}
	}

	if math.IsNaN(c.SOSDay) || math.IsNaN(c.EOSDay) {
		return Crossing{}, false
	}
	if c.EOSDay < c.SOSDay {
		// A series that dips through the threshold before its first rise
		// can place the last downward crossing ahead of the first upward
		// one; treat that as no coherent season.
		return Crossing{}, false
	}
	c.LOSDays = c.EOSDay - c.SOSDay
	return c, true
}

// interpCrossing returns the x position where the segment (x0,y0)-(x1,y1)
// reaches the threshold.
func interpCrossing(x0, y0, x1, y1, threshold float64) float64 {
	if y1 == y0 {
		return x0
	}
	return x0 + (threshold-y0)/(y1-y0)*(x1-x0)
}

// CrossingKey renders a threshold the way it is keyed in stored metrics,
// e.g. 0.25 -> "0.25".
func CrossingKey(threshold float64) string {
	return trimFloat(fmt.Sprintf("%.4f", threshold))
}

func trimFloat(s string) string {
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}
