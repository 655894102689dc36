package phenology

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/khufkens/greenwave/pkg/photoperiod"
)

// Series is one pixel's (or one site's) time series, sorted by time, one
// point per composite period.
type Series struct {
	Dates  []time.Time
	Values []float64
	Ranks  []int
}

// Len returns the number of points in the series.
func (s Series) Len() int { return len(s.Values) }

// ProcessSeries runs the series-wide half of the pipeline: QC screening,
// Savitzky-Golay smoothing, and gap interpolation. Per-season rescaling and
// thresholding happen in ComputeSeason, on slices of the processed series.
func ProcessSeries(s Series, params Params) ([]float64, error) {
	if len(s.Dates) != len(s.Values) {
		return nil, fmt.Errorf("series has %d dates but %d values", len(s.Dates), len(s.Values))
	}

	screened := ScreenQC(s.Values, s.Ranks, params.MaxQCRank)

	smoothed, err := SavitzkyGolay(screened, params.Window, params.PolyOrder)
	if err != nil {
		return nil, err
	}

	filledVals, _ := InterpolateGaps(smoothed, params.MaxGapComposites)
	return filledVals, nil
}

// seasonIndices groups series indices by season-year for a site latitude.
func seasonIndices(dates []time.Time, latitude float64) map[int][]int {
	out := make(map[int][]int)
	for i, d := range dates {
		y := SeasonYearOf(d, latitude)
		out[y] = append(out[y], i)
	}
	return out
}

// ComputeSeason derives the metrics of a single season-year from a
// processed series. The whole series is passed so the season can be sliced
// out here; callers that already processed the series across years get
// cross-boundary smoothing for free.
func ComputeSeason(s Series, processed []float64, seasonYear int, latitude float64, params Params) (SeasonMetrics, error) {
	idx := seasonIndices(s.Dates, latitude)[seasonYear]
	if len(idx) == 0 {
		return SeasonMetrics{}, fmt.Errorf("no observations in season %d", seasonYear)
	}

	days := make([]float64, len(idx))
	vals := make([]float64, len(idx))
	rawVals := make([]float64, len(idx))
	ranks := make([]int, len(idx))
	for i, j := range idx {
		days[i] = SeasonDay(s.Dates[j], latitude)
		vals[i] = processed[j]
		rawVals[i] = s.Values[j]
		if j < len(s.Ranks) {
			ranks[i] = s.Ranks[j]
		}
	}

	good := GoodFraction(rawVals, ranks, params.MaxQCRank)
	if good < params.MinGoodFraction {
		return SeasonMetrics{}, fmt.Errorf("season %d has good fraction %.2f below minimum %.2f",
			seasonYear, good, params.MinGoodFraction)
	}

	scaled, minV, maxV := RescaleMinMax(vals)
	if math.IsNaN(minV) || maxV-minV < params.MinAmplitude {
		return SeasonMetrics{}, fmt.Errorf("season %d amplitude %.3f below minimum %.3f",
			seasonYear, maxV-minV, params.MinAmplitude)
	}

	m := SeasonMetrics{
		SeasonYear:   seasonYear,
		SeasonStart:  SeasonStart(seasonYear, latitude),
		Crossings:    make(map[string]SeasonCrossing, len(params.Thresholds)),
		MinValue:     minV,
		PeakValue:    maxV,
		Amplitude:    maxV - minV,
		GoodFraction: good,
	}

	for i, v := range vals {
		if !math.IsNaN(v) && v == maxV {
			m.PeakDay = days[i]
			break
		}
	}

	// All thresholds are applied to the same rescaled series, so a lower
	// threshold always starts earlier and ends later than a higher one.
	for _, th := range params.Thresholds {
		c, ok := CrossingDates(days, scaled, th)
		if !ok {
			continue
		}
		m.Crossings[CrossingKey(th)] = SeasonCrossing{
			Threshold: th,
			SOSDay:    c.SOSDay,
			SOSDate:   SeasonDate(seasonYear, latitude, c.SOSDay),
			EOSDay:    c.EOSDay,
			EOSDate:   SeasonDate(seasonYear, latitude, c.EOSDay),
			LOSDays:   c.LOSDays,
		}
	}

	if len(m.Crossings) == 0 {
		return SeasonMetrics{}, fmt.Errorf("season %d never reaches any configured threshold", seasonYear)
	}

	if c, ok := m.Crossings[CrossingKey(params.Thresholds[0])]; ok {
		m.DaylengthAtSOS = photoperiod.Daylength(latitude, c.SOSDate)
	}

	return m, nil
}

// SeasonYears lists the season-years present in a series, ascending.
func SeasonYears(dates []time.Time, latitude float64) []int {
	seen := seasonIndices(dates, latitude)
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
