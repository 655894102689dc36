// Package phenology derives land-surface phenology metrics from
// vegetation-index time series: quality screening, Savitzky-Golay
// smoothing, gap interpolation, per-season min-max rescaling, and
// threshold-crossing season dates.
package phenology

import "fmt"

// Params tunes the phenology pipeline. Zero values are invalid; use
// DefaultParams as the base and override from configuration.
type Params struct {
	// Window is the Savitzky-Golay window in composite periods, odd.
	Window int `json:"window"`
	// PolyOrder is the Savitzky-Golay polynomial order.
	PolyOrder int `json:"poly_order"`
	// Thresholds are the amplitude fractions season dates are derived at,
	// strictly increasing, each in (0, 1).
	Thresholds []float64 `json:"thresholds"`
	// MaxGapComposites bounds how many consecutive missing composites the
	// gap interpolation will bridge.
	MaxGapComposites int `json:"max_gap_composites"`
	// MinAmplitude is the smallest min-max amplitude (in scaled physical
	// units) a season must span to be rescaled; flatter seasons produce
	// no metrics.
	MinAmplitude float64 `json:"min_amplitude"`
	// MaxQCRank is the worst quality rank still accepted as an
	// observation.
	MaxQCRank int `json:"max_qc_rank"`
	// MinGoodFraction is the smallest fraction of analysis-grade
	// observations a season needs before metrics are computed.
	MinGoodFraction float64 `json:"min_good_fraction"`
}

// DefaultParams returns the parameter set used when configuration does not
// override: a 7-composite cubic Savitzky-Golay filter, the conventional
// 25/50/85 percent amplitude thresholds, and a 4-composite gap limit.
func DefaultParams() Params {
	return Params{
		Window:           7,
		PolyOrder:        3,
		Thresholds:       []float64{0.25, 0.50, 0.85},
		MaxGapComposites: 4,
		MinAmplitude:     0.1,
		MaxQCRank:        1,
		MinGoodFraction:  0.5,
	}
}

// Validate checks the parameter set.
func (p Params) Validate() error {
	if p.Window < 3 || p.Window%2 == 0 {
		return fmt.Errorf("window must be a positive odd integer >= 3, got %d", p.Window)
	}
	if p.PolyOrder < 1 || p.PolyOrder >= p.Window {
		return fmt.Errorf("poly order must be in [1, window), got %d", p.PolyOrder)
	}
	if len(p.Thresholds) == 0 {
		return fmt.Errorf("at least one threshold is required")
	}
	prev := 0.0
	for _, t := range p.Thresholds {
		if t <= 0 || t >= 1 {
			return fmt.Errorf("threshold %v out of range (0, 1)", t)
		}
		if t <= prev {
			return fmt.Errorf("thresholds must be strictly increasing, got %v after %v", t, prev)
		}
		prev = t
	}
	if p.MaxGapComposites < 0 {
		return fmt.Errorf("max gap must be >= 0, got %d", p.MaxGapComposites)
	}
	if p.MinAmplitude < 0 {
		return fmt.Errorf("min amplitude must be >= 0, got %v", p.MinAmplitude)
	}
	if p.MaxQCRank < 0 || p.MaxQCRank > 4 {
		return fmt.Errorf("max QC rank must be in [0, 4], got %d", p.MaxQCRank)
	}
	if p.MinGoodFraction < 0 || p.MinGoodFraction > 1 {
		return fmt.Errorf("min good fraction must be in [0, 1], got %v", p.MinGoodFraction)
	}
	return nil
}
