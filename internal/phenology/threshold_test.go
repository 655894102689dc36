package phenology

import (
	"math"
	"testing"
)

func TestCrossingDates(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name      string
		days      []float64
		values    []float64
		threshold float64
		wantSOS   float64
		wantEOS   float64
		wantOK    bool
		epsilon   float64
	}{
		{
			name:      "interpolated crossing between composites",
			days:      []float64{0, 10, 20, 30},
			values:    []float64{0, 1, 1, 0},
			threshold: 0.25,
			wantSOS:   2.5,
			wantEOS:   27.5,
			wantOK:    true,
			epsilon:   1e-9,
		},
		{
			name:      "exact hit on a composite",
			days:      []float64{0, 10, 20},
			values:    []float64{0, 0.5, 0},
			threshold: 0.5,
			wantSOS:   10,
			wantEOS:   10,
			wantOK:    true,
			epsilon:   1e-9,
		},
		{
			name:      "series starting above threshold clamps to first point",
			days:      []float64{5, 15, 25},
			values:    []float64{0.8, 1.0, 0.1},
			threshold: 0.5,
			wantSOS:   5,
			wantEOS:   15 + 10*(0.5/0.9),
			wantOK:    true,
			epsilon:   1e-9,
		},
		{
			name:      "series ending above threshold clamps to last point",
			days:      []float64{5, 15, 25},
			values:    []float64{0.1, 1.0, 0.8},
			threshold: 0.5,
			wantSOS:   5 + 10*(0.4/0.9),
			wantEOS:   25,
			wantOK:    true,
			epsilon:   1e-9,
		},
		{
			name:      "threshold never reached",
			days:      []float64{0, 10, 20},
			values:    []float64{0, 0.3, 0},
			threshold: 0.5,
			wantOK:    false,
		},
		{
			name:      "NaNs are skipped",
			days:      []float64{0, 10, 20, 30, 40},
			values:    []float64{0, nan, 1, nan, 0},
			threshold: 0.5,
			wantSOS:   10,
			wantEOS:   30,
			wantOK:    true,
			epsilon:   1e-9,
		},
		{
			name:      "too few valid points",
			days:      []float64{0, 10},
			values:    []float64{nan, 1},
			threshold: 0.5,
			wantOK:    false,
		},
		{
			name:      "threshold out of range",
			days:      []float64{0, 10},
			values:    []float64{0, 1},
			threshold: 1.5,
			wantOK:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := CrossingDates(tt.days, tt.values, tt.threshold)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got ok=%v (%+v)", tt.wantOK, ok, c)
			}
			if !tt.wantOK {
				return
			}
			if math.Abs(c.SOSDay-tt.wantSOS) > tt.epsilon {
				t.Errorf("SOS: expected %.4f, got %.4f", tt.wantSOS, c.SOSDay)
			}
			if math.Abs(c.EOSDay-tt.wantEOS) > tt.epsilon {
				t.Errorf("EOS: expected %.4f, got %.4f", tt.wantEOS, c.EOSDay)
			}
			if math.Abs(c.LOSDays-(tt.wantEOS-tt.wantSOS)) > tt.epsilon {
				t.Errorf("LOS: expected %.4f, got %.4f", tt.wantEOS-tt.wantSOS, c.LOSDays)
			}
		})
	}
}

// doubleLogistic builds a canonical seasonal greenness curve: a rise around
// sosDay, a fall around eosDay, background level base and amplitude amp.
func doubleLogistic(day, base, amp, sosDay, eosDay, rate float64) float64 {
	up := 1.0 / (1.0 + math.Exp(-rate*(day-sosDay)))
	down := 1.0 / (1.0 + math.Exp(-rate*(day-eosDay)))
	return base + amp*(up-down)
}

func TestThresholdOrdering(t *testing.T) {
	// For one rescaled season, a lower threshold must be reached no later
	// on the way up and left no earlier on the way down than any higher
	// threshold.
	thresholds := []float64{0.1, 0.25, 0.5, 0.85}

	buildSeason := func(noise func(i int) float64) ([]float64, []float64) {
		var days, values []float64
		for doy := 1.0; doy <= 365; doy += 16 {
			v := doubleLogistic(doy, 0.15, 0.55, 120, 280, 0.08)
			if noise != nil {
				v += noise(len(days))
			}
			days = append(days, doy)
			values = append(values, v)
		}
		return days, values
	}

	cases := []struct {
		name  string
		noise func(i int) float64
	}{
		{name: "clean curve", noise: nil},
		{
			name: "deterministic jitter",
			noise: func(i int) float64 {
				return 0.02 * math.Sin(float64(i)*2.3)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			days, values := buildSeason(tc.noise)
			scaled, _, _ := RescaleMinMax(values)

			var prev Crossing
			for i, th := range thresholds {
				c, ok := CrossingDates(days, scaled, th)
				if !ok {
					t.Fatalf("threshold %v not found", th)
				}
				if i > 0 {
					if c.SOSDay < prev.SOSDay {
						t.Errorf("SOS at %.2f (%.2f) earlier than SOS at %.2f (%.2f)",
							th, c.SOSDay, prev.Threshold, prev.SOSDay)
					}
					if c.EOSDay > prev.EOSDay {
						t.Errorf("EOS at %.2f (%.2f) later than EOS at %.2f (%.2f)",
							th, c.EOSDay, prev.Threshold, prev.EOSDay)
					}
				}
				prev = c
			}
		})
	}
}

func TestCrossingKey(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.25, "0.25"},
		{0.5, "0.5"},
		{0.85, "0.85"},
		{0.125, "0.125"},
	}
	for _, tt := range tests {
		if got := CrossingKey(tt.in); got != tt.want {
			t.Errorf("CrossingKey(%v): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
