package phenology

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

// compositeCalendar returns the 23 16-day composite start dates of one year,
// DOY 1 through 353.
func compositeCalendar(year int) []time.Time {
	dates := make([]time.Time, 0, 23)
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 23; i++ {
		dates = append(dates, start.Add(time.Duration(i)*16*24*time.Hour))
	}
	return dates
}

// greenSeason samples a double-logistic NDVI-like curve on the composite
// calendar of one year.
func greenSeason(year int) ([]time.Time, []float64) {
	dates := compositeCalendar(year)
	vals := make([]float64, len(dates))
	for i := range dates {
		doy := float64(1 + 16*i)
		vals[i] = doubleLogistic(doy, 0.15, 0.55, 120, 280, 0.08)
	}
	return dates, vals
}

func TestProcessSeries(t *testing.T) {
	dates, vals := greenSeason(2020)
	params := DefaultParams()

	t.Run("clean series stays fully valid", func(t *testing.T) {
		s := Series{Dates: dates, Values: vals, Ranks: make([]int, len(vals))}
		out, err := ProcessSeries(s, params)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(out) != len(vals) {
			t.Fatalf("expected %d points, got %d", len(vals), len(out))
		}
		for i, v := range out {
			if math.IsNaN(v) {
				t.Errorf("point %d is NaN in a clean series", i)
			}
		}
	})

	t.Run("single bad composite is reconstructed", func(t *testing.T) {
		ranks := make([]int, len(vals))
		ranks[10] = 3
		s := Series{Dates: dates, Values: vals, Ranks: ranks}
		out, err := ProcessSeries(s, params)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.IsNaN(out[10]) {
			t.Fatal("screened point was not reconstructed")
		}
		if diff := math.Abs(out[10] - vals[10]); diff > 0.12 {
			t.Errorf("reconstructed value %v too far from curve %v", out[10], vals[10])
		}
	})

	t.Run("gap at the interpolation limit is bridged", func(t *testing.T) {
		ranks := make([]int, len(vals))
		for i := 9; i <= 12; i++ {
			ranks[i] = 4
		}
		s := Series{Dates: dates, Values: vals, Ranks: ranks}
		out, err := ProcessSeries(s, params)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i := 9; i <= 12; i++ {
			if math.IsNaN(out[i]) {
				t.Errorf("point %d should have been bridged", i)
			}
		}
	})

	t.Run("gap beyond the interpolation limit stays missing", func(t *testing.T) {
		ranks := make([]int, len(vals))
		for i := 8; i <= 12; i++ {
			ranks[i] = 4
		}
		s := Series{Dates: dates, Values: vals, Ranks: ranks}
		out, err := ProcessSeries(s, params)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !math.IsNaN(out[10]) {
			t.Errorf("expected NaN at the center of a 5-composite gap, got %v", out[10])
		}
	})

	t.Run("series shorter than window errors", func(t *testing.T) {
		s := Series{Dates: dates[:5], Values: vals[:5], Ranks: make([]int, 5)}
		_, err := ProcessSeries(s, params)
		if !errors.Is(err, ErrInsufficientData) {
			t.Fatalf("expected ErrInsufficientData, got %v", err)
		}
	})

	t.Run("mismatched dates and values error", func(t *testing.T) {
		s := Series{Dates: dates[:10], Values: vals, Ranks: make([]int, len(vals))}
		if _, err := ProcessSeries(s, params); err == nil {
			t.Fatal("expected an error for mismatched lengths")
		}
	})
}

func TestComputeSeason(t *testing.T) {
	const latitude = 42.54 // Harvard Forest

	d2020, v2020 := greenSeason(2020)
	d2021, v2021 := greenSeason(2021)
	dates := append(append([]time.Time{}, d2020...), d2021...)
	vals := append(append([]float64{}, v2020...), v2021...)
	s := Series{Dates: dates, Values: vals, Ranks: make([]int, len(vals))}

	params := DefaultParams()
	processed, err := ProcessSeries(s, params)
	if err != nil {
		t.Fatalf("processing failed: %v", err)
	}

	m, err := ComputeSeason(s, processed, 2020, latitude, params)
	if err != nil {
		t.Fatalf("season 2020 should produce metrics: %v", err)
	}

	if m.SeasonYear != 2020 {
		t.Errorf("expected season year 2020, got %d", m.SeasonYear)
	}
	if want := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC); !m.SeasonStart.Equal(want) {
		t.Errorf("expected season start %v, got %v", want, m.SeasonStart)
	}
	if m.GoodFraction != 1 {
		t.Errorf("clean season should have good fraction 1, got %v", m.GoodFraction)
	}
	if m.Amplitude < 0.45 || m.Amplitude > 0.65 {
		t.Errorf("amplitude %v outside the expected range for the synthetic curve", m.Amplitude)
	}
	if m.MinValue < 0.10 || m.MinValue > 0.20 {
		t.Errorf("min value %v outside the expected range", m.MinValue)
	}
	if m.PeakValue < 0.63 || m.PeakValue > 0.76 {
		t.Errorf("peak value %v outside the expected range", m.PeakValue)
	}
	if m.PeakDay < 150 || m.PeakDay > 260 {
		t.Errorf("peak day %v outside the plateau", m.PeakDay)
	}

	for _, th := range params.Thresholds {
		if _, ok := m.Crossings[CrossingKey(th)]; !ok {
			t.Fatalf("missing crossing for threshold %v", th)
		}
	}

	half := m.Crossings["0.5"]
	if half.SOSDay < 104 || half.SOSDay > 136 {
		t.Errorf("SOS %v should land within one composite of day 120", half.SOSDay)
	}
	if half.EOSDay < 264 || half.EOSDay > 296 {
		t.Errorf("EOS %v should land within one composite of day 280", half.EOSDay)
	}
	if half.LOSDays < 140 || half.LOSDays > 192 {
		t.Errorf("LOS %v outside the expected range", half.LOSDays)
	}
	if !half.SOSDate.After(m.SeasonStart) {
		t.Errorf("SOS date %v should fall inside the season", half.SOSDate)
	}

	// Lower thresholds start no later and end no earlier than higher ones.
	for i := 1; i < len(params.Thresholds); i++ {
		lo := m.Crossings[CrossingKey(params.Thresholds[i-1])]
		hi := m.Crossings[CrossingKey(params.Thresholds[i])]
		if lo.SOSDay > hi.SOSDay {
			t.Errorf("SOS at %v (%v) after SOS at %v (%v)", lo.Threshold, lo.SOSDay, hi.Threshold, hi.SOSDay)
		}
		if lo.EOSDay < hi.EOSDay {
			t.Errorf("EOS at %v (%v) before EOS at %v (%v)", lo.Threshold, lo.EOSDay, hi.Threshold, hi.EOSDay)
		}
	}

	if m.DaylengthAtSOS < 12 || m.DaylengthAtSOS > 16 {
		t.Errorf("spring daylength %v implausible for latitude %v", m.DaylengthAtSOS, latitude)
	}

	if _, err := ComputeSeason(s, processed, 2030, latitude, params); err == nil {
		t.Error("expected an error for a season with no observations")
	}
}

func TestComputeSeasonSkipsFlatSeason(t *testing.T) {
	const latitude = 42.54

	d2020, v2020 := greenSeason(2020)
	d2021 := compositeCalendar(2021)
	v2021 := make([]float64, len(d2021))
	for i := range v2021 {
		v2021[i] = 0.15
	}

	dates := append(append([]time.Time{}, d2020...), d2021...)
	vals := append(append([]float64{}, v2020...), v2021...)
	s := Series{Dates: dates, Values: vals, Ranks: make([]int, len(vals))}

	params := DefaultParams()
	processed, err := ProcessSeries(s, params)
	if err != nil {
		t.Fatalf("processing failed: %v", err)
	}

	if _, err := ComputeSeason(s, processed, 2020, latitude, params); err != nil {
		t.Errorf("green season should still compute: %v", err)
	}

	_, err = ComputeSeason(s, processed, 2021, latitude, params)
	if err == nil {
		t.Fatal("flat season should be rejected")
	}
	if !strings.Contains(err.Error(), "amplitude") {
		t.Errorf("expected an amplitude error, got %v", err)
	}
}

func TestComputeSeasonSkipsCloudySeason(t *testing.T) {
	const latitude = 42.54

	d2020, v2020 := greenSeason(2020)
	d2021, v2021 := greenSeason(2021)
	dates := append(append([]time.Time{}, d2020...), d2021...)
	vals := append(append([]float64{}, v2020...), v2021...)

	ranks := make([]int, len(vals))
	for i := 0; i < len(d2021); i += 2 {
		ranks[len(d2020)+i] = 4 // 12 of 23 composites unusable
	}
	s := Series{Dates: dates, Values: vals, Ranks: ranks}

	params := DefaultParams()
	processed, err := ProcessSeries(s, params)
	if err != nil {
		t.Fatalf("processing failed: %v", err)
	}

	_, err = ComputeSeason(s, processed, 2021, latitude, params)
	if err == nil {
		t.Fatal("cloudy season should be rejected")
	}
	if !strings.Contains(err.Error(), "good fraction") {
		t.Errorf("expected a good fraction error, got %v", err)
	}
}

func TestSeasonYears(t *testing.T) {
	d2020 := compositeCalendar(2020)
	d2021 := compositeCalendar(2021)
	dates := append(append([]time.Time{}, d2021...), d2020...) // deliberately unsorted

	years := SeasonYears(dates, 42.54)
	if len(years) != 2 || years[0] != 2020 || years[1] != 2021 {
		t.Errorf("expected [2020 2021], got %v", years)
	}
}
