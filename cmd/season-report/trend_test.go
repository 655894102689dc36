package main

import (
	"math"
	"testing"
)

func TestSOSTrend(t *testing.T) {
	tests := []struct {
		name          string
		years         []float64
		sos           []float64
		wantPerDecade float64
		wantR2        float64
	}{
		{
			name:          "advancing one day per year",
			years:         []float64{2015, 2016, 2017, 2018, 2019},
			sos:           []float64{130, 129, 128, 127, 126},
			wantPerDecade: -10,
			wantR2:        1,
		},
		{
			name:          "flat",
			years:         []float64{2015, 2016, 2017, 2018},
			sos:           []float64{120, 120, 120, 120},
			wantPerDecade: 0,
			wantR2:        0,
		},
		{
			name:          "delaying half a day per year",
			years:         []float64{2010, 2012, 2014, 2016, 2018, 2020},
			sos:           []float64{110, 111, 112, 113, 114, 115},
			wantPerDecade: 5,
			wantR2:        1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perDecade, r2 := sosTrend(tt.years, tt.sos)
			if math.Abs(perDecade-tt.wantPerDecade) > 1e-9 {
				t.Errorf("daysPerDecade = %v, want %v", perDecade, tt.wantPerDecade)
			}
			if math.Abs(r2-tt.wantR2) > 1e-9 {
				t.Errorf("rSquared = %v, want %v", r2, tt.wantR2)
			}
		})
	}
}

func TestTrendInputFiltersSkippedSeasons(t *testing.T) {
	rows := []SeasonRow{
		{Window: 7, SeasonYear: 2018, SOSDay: 120},
		{Window: 7, SeasonYear: 2019, Skipped: "threshold never crossed"},
		{Window: 5, SeasonYear: 2019, SOSDay: 118},
		{Window: 7, SeasonYear: 2020, SOSDay: 119},
	}

	years, sos := trendInput(rows, 7)
	if len(years) != 2 || len(sos) != 2 {
		t.Fatalf("expected 2 pairs, got %d years and %d sos values", len(years), len(sos))
	}
	if years[0] != 2018 || years[1] != 2020 {
		t.Errorf("unexpected years: %v", years)
	}
}

func TestParseWindows(t *testing.T) {
	if _, err := parseWindows("5,7,9"); err != nil {
		t.Fatalf("valid windows rejected: %v", err)
	}
	if _, err := parseWindows("4"); err == nil {
		t.Error("even window accepted")
	}
	if _, err := parseWindows("1"); err == nil {
		t.Error("window below 3 accepted")
	}
	if _, err := parseWindows("7,x"); err == nil {
		t.Error("non-numeric window accepted")
	}
}
