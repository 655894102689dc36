package phenology

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrInsufficientData is returned when a series has fewer points than the
// smoothing window needs.
var ErrInsufficientData = errors.New("insufficient data points for smoothing window")

// SavitzkyGolay smooths a series by fitting a least-squares polynomial of
// the given order inside a sliding window and evaluating it at the center
// point (scipy.signal.savgol_filter semantics). window must be a positive
// odd integer larger than polyorder.
//
// NaN values are treated as gaps: they carry no weight in the fit, and a
// window with fewer than polyorder+1 usable points yields NaN. Points near
// the series edges are fit against the first or last full window, which is
// how scipy's "interp" mode handles edges.
func SavitzkyGolay(values []float64, window, polyorder int) ([]float64, error) {
	if window < 3 || window%2 == 0 {
		return nil, fmt.Errorf("window must be a positive odd integer >= 3, got %d", window)
	}
	if polyorder < 1 || polyorder >= window {
		return nil, fmt.Errorf("polyorder must be in [1, window), got %d with window %d", polyorder, window)
	}
	n := len(values)
	if n < window {
		return nil, fmt.Errorf("%w: have %d points, window is %d", ErrInsufficientData, n, window)
	}

	half := window / 2
	result := make([]float64, n)

	for i := 0; i < n; i++ {
		// Clamp the window to the series so edge points are fit against
		// the first or last full window rather than a shrunken one.
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		if lo > n-window {
			lo = n - window
		}
		hi := lo + window

		xs := make([]float64, 0, window)
		ys := make([]float64, 0, window)
		for j := lo; j < hi; j++ {
			if math.IsNaN(values[j]) {
				continue
			}
			xs = append(xs, float64(j-i))
			ys = append(ys, values[j])
		}

		if len(xs) < polyorder+1 {
			result[i] = math.NaN()
			continue
		}

		coeffs, err := polyfit(xs, ys, polyorder)
		if err != nil {
			result[i] = math.NaN()
			continue
		}
		// The fitted value at the center is the constant term, since the
		// window abscissae are offsets from the center point.
		result[i] = coeffs[0]
	}

	return result, nil
}

// polyfit solves the least-squares polynomial fit of the given order using
// a Vandermonde design matrix and QR decomposition.
func polyfit(xs, ys []float64, order int) ([]float64, error) {
	n := len(xs)

	X := mat.NewDense(n, order+1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= order; j++ {
			X.Set(i, j, math.Pow(xs[i], float64(j)))
		}
	}

	y := mat.NewVecDense(n, ys)

	var qr mat.QR
	qr.Factorize(X)

	coeffs := mat.NewVecDense(order+1, nil)
	if err := qr.SolveVecTo(coeffs, false, y); err != nil {
		return nil, fmt.Errorf("polynomial fit failed: %w", err)
	}

	out := make([]float64, order+1)
	for i := 0; i <= order; i++ {
		out[i] = coeffs.AtVec(i)
	}
	return out, nil
}
