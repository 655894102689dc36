package phenology

import (
	"math"
	"testing"
)

func TestInterpolateGaps(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name       string
		values     []float64
		maxGap     int
		expected   []float64
		wantFilled []int
	}{
		{
			name:       "single gap",
			values:     []float64{1, nan, 3},
			maxGap:     2,
			expected:   []float64{1, 2, 3},
			wantFilled: []int{1},
		},
		{
			name:       "two point gap",
			values:     []float64{0, nan, nan, 3},
			maxGap:     2,
			expected:   []float64{0, 1, 2, 3},
			wantFilled: []int{1, 2},
		},
		{
			name:       "gap longer than max stays",
			values:     []float64{0, nan, nan, nan, 4},
			maxGap:     2,
			expected:   []float64{0, nan, nan, nan, 4},
			wantFilled: nil,
		},
		{
			name:       "leading gap never extrapolated",
			values:     []float64{nan, nan, 2, 3},
			maxGap:     4,
			expected:   []float64{nan, nan, 2, 3},
			wantFilled: nil,
		},
		{
			name:       "trailing gap never extrapolated",
			values:     []float64{1, 2, nan},
			maxGap:     4,
			expected:   []float64{1, 2, nan},
			wantFilled: nil,
		},
		{
			name:       "max gap zero disables filling",
			values:     []float64{1, nan, 3},
			maxGap:     0,
			expected:   []float64{1, nan, 3},
			wantFilled: nil,
		},
		{
			name:       "multiple gaps filled independently",
			values:     []float64{0, nan, 2, nan, nan, 5},
			maxGap:     2,
			expected:   []float64{0, 1, 2, 3, 4, 5},
			wantFilled: []int{1, 3, 4},
		},
		{
			name:       "no gaps is a no-op",
			values:     []float64{1, 2, 3},
			maxGap:     2,
			expected:   []float64{1, 2, 3},
			wantFilled: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, filled := InterpolateGaps(tt.values, tt.maxGap)

			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d values, got %d", len(tt.expected), len(got))
			}
			for i := range got {
				if math.IsNaN(tt.expected[i]) {
					if !math.IsNaN(got[i]) {
						t.Errorf("point %d: expected NaN, got %v", i, got[i])
					}
					continue
				}
				if math.Abs(got[i]-tt.expected[i]) > 1e-9 {
					t.Errorf("point %d: expected %v, got %v", i, tt.expected[i], got[i])
				}
			}

			wantFilled := make(map[int]bool, len(tt.wantFilled))
			for _, i := range tt.wantFilled {
				wantFilled[i] = true
			}
			for i, f := range filled {
				if f != wantFilled[i] {
					t.Errorf("point %d: filled=%v, want %v", i, f, wantFilled[i])
				}
			}
		})
	}
}
