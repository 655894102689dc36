package photoperiod

import (
	"math"
	"testing"
	"time"
)

func TestDeclination(t *testing.T) {
	tests := []struct {
		name    string
		date    time.Time
		want    float64
		epsilon float64
	}{
		{
			name:    "june solstice near +23.44",
			date:    time.Date(2021, 6, 21, 0, 0, 0, 0, time.UTC),
			want:    23.44,
			epsilon: 0.1,
		},
		{
			name:    "december solstice near -23.44",
			date:    time.Date(2021, 12, 21, 0, 0, 0, 0, time.UTC),
			want:    -23.44,
			epsilon: 0.1,
		},
		{
			name:    "march equinox near zero",
			date:    time.Date(2021, 3, 20, 0, 0, 0, 0, time.UTC),
			want:    0.0,
			epsilon: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Declination(tt.date)
			if math.Abs(got-tt.want) > tt.epsilon {
				t.Errorf("expected %.2f ± %.2f, got %.2f", tt.want, tt.epsilon, got)
			}
		})
	}
}

func TestDaylength(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		date    time.Time
		want    float64
		epsilon float64
	}{
		{
			name:    "equator is near 12h year round",
			lat:     0,
			date:    time.Date(2021, 6, 21, 0, 0, 0, 0, time.UTC),
			want:    12.0,
			epsilon: 0.2,
		},
		{
			name:    "45N june solstice",
			lat:     45,
			date:    time.Date(2021, 6, 21, 0, 0, 0, 0, time.UTC),
			want:    15.4,
			epsilon: 0.3,
		},
		{
			name:    "45N december solstice",
			lat:     45,
			date:    time.Date(2021, 12, 21, 0, 0, 0, 0, time.UTC),
			want:    8.6,
			epsilon: 0.3,
		},
		{
			name:    "polar day clamps to 24",
			lat:     80,
			date:    time.Date(2021, 6, 21, 0, 0, 0, 0, time.UTC),
			want:    24.0,
			epsilon: 0.001,
		},
		{
			name:    "polar night clamps to 0",
			lat:     80,
			date:    time.Date(2021, 12, 21, 0, 0, 0, 0, time.UTC),
			want:    0.0,
			epsilon: 0.001,
		},
		{
			name:    "southern hemisphere mirrors northern",
			lat:     -45,
			date:    time.Date(2021, 12, 21, 0, 0, 0, 0, time.UTC),
			want:    15.4,
			epsilon: 0.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Daylength(tt.lat, tt.date)
			if math.Abs(got-tt.want) > tt.epsilon {
				t.Errorf("lat %.0f on %s: expected %.2f ± %.2f h, got %.2f h",
					tt.lat, tt.date.Format("2006-01-02"), tt.want, tt.epsilon, got)
			}
		})
	}
}

func TestDaylengthHemisphereSymmetry(t *testing.T) {
	// Daylength at +lat on the June solstice should match -lat on the
	// December solstice to within the solstice drift.
	north := Daylength(52, time.Date(2021, 6, 21, 0, 0, 0, 0, time.UTC))
	south := Daylength(-52, time.Date(2021, 12, 21, 0, 0, 0, 0, time.UTC))
	if math.Abs(north-south) > 0.25 {
		t.Errorf("hemisphere asymmetry too large: north %.2f h vs south %.2f h", north, south)
	}
}
