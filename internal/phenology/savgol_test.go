package phenology

import (
	"errors"
	"math"
	"testing"
)

func TestSavitzkyGolayReproducesPolynomials(t *testing.T) {
	// A least-squares polynomial fit of sufficient order reproduces exact
	// polynomial data, including at the edges where the window is clamped.
	tests := []struct {
		name      string
		f         func(x float64) float64
		n         int
		window    int
		polyorder int
		epsilon   float64
	}{
		{
			name:      "linear data, order 1",
			f:         func(x float64) float64 { return 2*x + 1 },
			n:         12,
			window:    5,
			polyorder: 1,
			epsilon:   1e-8,
		},
		{
			name:      "quadratic data, order 2",
			f:         func(x float64) float64 { return 0.5*x*x - 3*x + 2 },
			n:         15,
			window:    5,
			polyorder: 2,
			epsilon:   1e-8,
		},
		{
			name:      "cubic data, order 3",
			f:         func(x float64) float64 { return 0.1*x*x*x - x },
			n:         23,
			window:    7,
			polyorder: 3,
			epsilon:   1e-6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]float64, tt.n)
			for i := range data {
				data[i] = tt.f(float64(i))
			}

			result, err := SavitzkyGolay(data, tt.window, tt.polyorder)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(result) != len(data) {
				t.Fatalf("expected %d results, got %d", len(data), len(result))
			}
			for i, val := range result {
				if math.Abs(val-data[i]) > tt.epsilon {
					t.Errorf("point %d: expected %.6f ± %g, got %.6f", i, data[i], tt.epsilon, val)
				}
			}
		})
	}
}

func TestSavitzkyGolaySmoothsNoise(t *testing.T) {
	// Alternating noise around a constant level must end up closer to the
	// level than it started.
	data := make([]float64, 21)
	for i := range data {
		data[i] = 5.0
		if i%2 == 0 {
			data[i] += 1.0
		} else {
			data[i] -= 1.0
		}
	}

	result, err := SavitzkyGolay(data, 7, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 3; i < len(result)-3; i++ {
		if math.Abs(result[i]-5.0) > 0.9 {
			t.Errorf("point %d: smoothing left %.3f, want closer to 5.0 than the raw ±1", i, result[i])
		}
	}
}

func TestSavitzkyGolayHandlesGaps(t *testing.T) {
	// NaNs carry no weight: with the remaining points on an exact
	// quadratic, the fit still reproduces the curve, and the gap itself
	// gets a fitted value.
	f := func(x float64) float64 { return x*x - 2*x }
	data := make([]float64, 15)
	for i := range data {
		data[i] = f(float64(i))
	}
	data[7] = math.NaN()

	result, err := SavitzkyGolay(data, 5, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, val := range result {
		if math.Abs(val-f(float64(i))) > 1e-8 {
			t.Errorf("point %d: expected %.6f, got %.6f", i, f(float64(i)), val)
		}
	}
}

func TestSavitzkyGolayWindowStarvedOfPoints(t *testing.T) {
	// A window left with fewer points than the fit needs yields NaN for
	// its center instead of a bogus value.
	data := []float64{1, math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), 7}

	result, err := SavitzkyGolay(data, 5, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !math.IsNaN(result[3]) {
		t.Errorf("expected NaN at starved center point, got %v", result[3])
	}
}

func TestSavitzkyGolayErrors(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}

	tests := []struct {
		name      string
		data      []float64
		window    int
		polyorder int
	}{
		{name: "even window", data: data, window: 4, polyorder: 2},
		{name: "window too small", data: data, window: 1, polyorder: 0},
		{name: "polyorder not below window", data: data, window: 5, polyorder: 5},
		{name: "polyorder zero", data: data, window: 5, polyorder: 0},
		{name: "series shorter than window", data: []float64{1, 2, 3}, window: 5, polyorder: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := SavitzkyGolay(tt.data, tt.window, tt.polyorder); err == nil {
				t.Errorf("expected error for window=%d polyorder=%d len=%d",
					tt.window, tt.polyorder, len(tt.data))
			}
		})
	}

	_, err := SavitzkyGolay([]float64{1, 2, 3}, 5, 2)
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("short series should wrap ErrInsufficientData, got %v", err)
	}
}
