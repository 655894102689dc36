package phenology

import (
	"math"
	"testing"
	"time"

	"github.com/khufkens/greenwave/internal/types"
)

func testSubsetMeta() types.SubsetMeta {
	return types.SubsetMeta{
		SiteName:  "harvard",
		Product:   "MOD13Q1",
		Band:      "NDVI",
		NRows:     2,
		NCols:     2,
		CellsizeM: 231.656358,
		Latitude:  42.5378,
		Longitude: -72.1715,
	}
}

// gridSamples builds two years of samples for a 2x2 subset. Pixels 0-2
// green up at staggered dates; pixel 3 stays flat all year.
func gridSamples() []types.Sample {
	meta := testSubsetMeta()
	var samples []types.Sample
	for _, year := range []int{2020, 2021} {
		for i, d := range compositeCalendar(year) {
			doy := float64(1 + 16*i)
			for pixel := 0; pixel < meta.Pixels(); pixel++ {
				v := 0.2
				if pixel < 3 {
					v = doubleLogistic(doy, 0.15, 0.55, 112+8*float64(pixel), 280, 0.08)
				}
				samples = append(samples, types.Sample{
					Time:       d,
					SiteName:   meta.SiteName,
					Product:    meta.Product,
					Band:       meta.Band,
					PixelIndex: pixel,
					Value:      v,
				})
			}
		}
	}
	return samples
}

func TestAssembleGrid(t *testing.T) {
	meta := testSubsetMeta()

	t.Run("pivots samples into per-pixel series", func(t *testing.T) {
		g, err := AssembleGrid(meta, gridSamples())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(g.Dates) != 46 {
			t.Fatalf("expected 46 composite dates, got %d", len(g.Dates))
		}
		for i := 1; i < len(g.Dates); i++ {
			if !g.Dates[i].After(g.Dates[i-1]) {
				t.Fatalf("dates not ascending at %d: %v then %v", i, g.Dates[i-1], g.Dates[i])
			}
		}
		if len(g.Values) != 4 {
			t.Fatalf("expected 4 pixel series, got %d", len(g.Values))
		}

		// DOY 161 of 2020 is composite index 10.
		want := doubleLogistic(161, 0.15, 0.55, 120, 280, 0.08)
		if got := g.Values[1][10]; math.Abs(got-want) > 1e-12 {
			t.Errorf("pixel 1 at composite 10: expected %v, got %v", want, got)
		}
	})

	t.Run("missing composites stay NaN with unusable rank", func(t *testing.T) {
		samples := gridSamples()
		// Drop pixel 2's last composite.
		trimmed := samples[:0:0]
		last := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC).Add(22 * 16 * 24 * time.Hour)
		for _, s := range samples {
			if s.PixelIndex == 2 && s.Time.Equal(last) {
				continue
			}
			trimmed = append(trimmed, s)
		}

		g, err := AssembleGrid(meta, trimmed)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		lastIdx := len(g.Dates) - 1
		if !math.IsNaN(g.Values[2][lastIdx]) {
			t.Errorf("expected NaN for the dropped composite, got %v", g.Values[2][lastIdx])
		}
		if g.Ranks[2][lastIdx] != 4 {
			t.Errorf("expected rank 4 for the dropped composite, got %d", g.Ranks[2][lastIdx])
		}
	})

	t.Run("rejects pixels outside the grid", func(t *testing.T) {
		samples := gridSamples()
		samples[0].PixelIndex = 7
		if _, err := AssembleGrid(meta, samples); err == nil {
			t.Fatal("expected an error for a pixel outside the grid")
		}
	})

	t.Run("rejects empty input", func(t *testing.T) {
		if _, err := AssembleGrid(meta, nil); err == nil {
			t.Fatal("expected an error for no samples")
		}
	})

	t.Run("rejects empty geometry", func(t *testing.T) {
		bad := meta
		bad.NRows = 0
		if _, err := AssembleGrid(bad, gridSamples()); err == nil {
			t.Fatal("expected an error for empty geometry")
		}
	})
}

func TestComputeGrid(t *testing.T) {
	meta := testSubsetMeta()
	g, err := AssembleGrid(meta, gridSamples())
	if err != nil {
		t.Fatalf("assembling grid: %v", err)
	}
	params := DefaultParams()

	serial, err := ComputeGrid(g, 2020, meta.Latitude, params, 1)
	if err != nil {
		t.Fatalf("serial compute: %v", err)
	}

	if serial.Skipped != 1 {
		t.Errorf("expected the flat pixel to be skipped, got %d skips", serial.Skipped)
	}
	for pixel := 0; pixel < 3; pixel++ {
		if _, ok := serial.ByPixel[pixel]; !ok {
			t.Errorf("expected metrics for pixel %d", pixel)
		}
	}
	if _, ok := serial.ByPixel[3]; ok {
		t.Error("flat pixel should not produce metrics")
	}

	parallel, err := ComputeGrid(g, 2020, meta.Latitude, params, 4)
	if err != nil {
		t.Fatalf("parallel compute: %v", err)
	}

	if parallel.Skipped != serial.Skipped {
		t.Errorf("parallel skipped %d, serial %d", parallel.Skipped, serial.Skipped)
	}
	if len(parallel.ByPixel) != len(serial.ByPixel) {
		t.Fatalf("parallel produced %d pixels, serial %d", len(parallel.ByPixel), len(serial.ByPixel))
	}
	for pixel, sm := range serial.ByPixel {
		pm, ok := parallel.ByPixel[pixel]
		if !ok {
			t.Errorf("pixel %d missing from parallel result", pixel)
			continue
		}
		if pm.Amplitude != sm.Amplitude || pm.PeakDay != sm.PeakDay {
			t.Errorf("pixel %d metrics differ between serial and parallel", pixel)
		}
		for key, sc := range sm.Crossings {
			pc, ok := pm.Crossings[key]
			if !ok || pc.SOSDay != sc.SOSDay || pc.EOSDay != sc.EOSDay {
				t.Errorf("pixel %d crossing %s differs between serial and parallel", pixel, key)
			}
		}
	}

	if _, err := ComputeGrid(g, 2020, meta.Latitude, Params{}, 1); err == nil {
		t.Error("expected invalid params to be rejected")
	}
}

func TestSOSMap(t *testing.T) {
	meta := testSubsetMeta()
	g, err := AssembleGrid(meta, gridSamples())
	if err != nil {
		t.Fatalf("assembling grid: %v", err)
	}

	gm, err := ComputeGrid(g, 2020, meta.Latitude, DefaultParams(), 2)
	if err != nil {
		t.Fatalf("computing grid: %v", err)
	}

	m := gm.SOSMap(0.5)
	if len(m) != 2 || len(m[0]) != 2 {
		t.Fatalf("expected a 2x2 map, got %dx%d", len(m), len(m[0]))
	}
	if !math.IsNaN(m[1][1]) {
		t.Errorf("flat pixel should map to NaN, got %v", m[1][1])
	}

	// Pixels green up 8 days apart in row-major order.
	if !(m[0][0] < m[0][1] && m[0][1] < m[1][0]) {
		t.Errorf("SOS should increase across staggered pixels: %v, %v, %v", m[0][0], m[0][1], m[1][0])
	}
	for _, sos := range []float64{m[0][0], m[0][1], m[1][0]} {
		if sos < 90 || sos > 150 {
			t.Errorf("SOS %v outside the plausible window", sos)
		}
	}

	if unknown := gm.SOSMap(0.33); !math.IsNaN(unknown[0][0]) {
		t.Errorf("unconfigured threshold should map to NaN, got %v", unknown[0][0])
	}
}
