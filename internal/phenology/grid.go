package phenology

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/khufkens/greenwave/internal/types"
	"github.com/panjf2000/ants/v2"
)

// Grid holds a site's subset pivoted from tidy samples into per-pixel
// series: every pixel shares the Dates axis.
type Grid struct {
	Meta  types.SubsetMeta
	Dates []time.Time
	// Values and Ranks are indexed [pixel][composite].
	Values [][]float64
	Ranks  [][]int
}

// AssembleGrid pivots tidy samples (one row per pixel per composite) into a
// Grid. Composites missing for a pixel stay NaN. Samples must all belong to
// one site and band.
func AssembleGrid(meta types.SubsetMeta, samples []types.Sample) (*Grid, error) {
	npix := meta.Pixels()
	if npix <= 0 {
		return nil, fmt.Errorf("subset geometry is empty: %dx%d", meta.NRows, meta.NCols)
	}

	// Collect the unique composite dates.
	dateSet := make(map[time.Time]struct{})
	for _, s := range samples {
		dateSet[s.Time.UTC()] = struct{}{}
	}
	if len(dateSet) == 0 {
		return nil, fmt.Errorf("no samples to assemble")
	}
	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	dateIdx := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		dateIdx[d] = i
	}

	g := &Grid{Meta: meta, Dates: dates}
	g.Values = make([][]float64, npix)
	g.Ranks = make([][]int, npix)
	for p := 0; p < npix; p++ {
		row := make([]float64, len(dates))
		ranks := make([]int, len(dates))
		for i := range row {
			row[i] = math.NaN()
			ranks[i] = 4 // unobserved composites rank as unusable
		}
		g.Values[p] = row
		g.Ranks[p] = ranks
	}

	for _, s := range samples {
		if s.PixelIndex < 0 || s.PixelIndex >= npix {
			return nil, fmt.Errorf("pixel index %d outside %dx%d grid", s.PixelIndex, meta.NRows, meta.NCols)
		}
		i := dateIdx[s.Time.UTC()]
		g.Values[s.PixelIndex][i] = s.Value
		g.Ranks[s.PixelIndex][i] = s.QCRank
	}

	return g, nil
}

// PixelSeries returns one pixel's series view.
func (g *Grid) PixelSeries(pixel int) Series {
	return Series{Dates: g.Dates, Values: g.Values[pixel], Ranks: g.Ranks[pixel]}
}

// GridMetrics holds per-pixel season metrics for one season-year. Pixels
// whose series never produced a coherent season are absent from ByPixel.
type GridMetrics struct {
	Meta       types.SubsetMeta
	SeasonYear int
	ByPixel    map[int]SeasonMetrics
	// Skipped counts pixels that produced no metrics (flat, cloudy, or
	// threshold never reached).
	Skipped int
}

// ComputeGrid runs the full pipeline for every pixel of a season-year.
// Pixels are independent, so the work fans out on a worker pool; workers <=
// 1 keeps it serial, which is also the fallback when the pool cannot be
// built.
func ComputeGrid(g *Grid, seasonYear int, latitude float64, params Params, workers int) (*GridMetrics, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	out := &GridMetrics{Meta: g.Meta, SeasonYear: seasonYear, ByPixel: make(map[int]SeasonMetrics)}

	compute := func(pixel int) (SeasonMetrics, error) {
		series := g.PixelSeries(pixel)
		processed, err := ProcessSeries(series, params)
		if err != nil {
			return SeasonMetrics{}, err
		}
		return ComputeSeason(series, processed, seasonYear, latitude, params)
	}

	if workers <= 1 {
		for p := range g.Values {
			m, err := compute(p)
			if err != nil {
				out.Skipped++
				continue
			}
			out.ByPixel[p] = m
		}
		return out, nil
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return ComputeGrid(g, seasonYear, latitude, params, 1)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	var mu sync.Mutex
	for p := range g.Values {
		pixel := p
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			m, err := compute(pixel)
			mu.Lock()
			if err != nil {
				out.Skipped++
			} else {
				out.ByPixel[pixel] = m
			}
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			out.Skipped++
			mu.Unlock()
		}
	}
	wg.Wait()

	return out, nil
}

// SOSMap renders the per-pixel SOS day of one threshold as a row-major
// [row][col] matrix, NaN where a pixel has no metrics. This is the
// in-memory equivalent of the per-pixel season maps built from subset
// rasters.
func (gm *GridMetrics) SOSMap(threshold float64) [][]float64 {
	key := CrossingKey(threshold)
	rows := make([][]float64, gm.Meta.NRows)
	for r := 0; r < gm.Meta.NRows; r++ {
		row := make([]float64, gm.Meta.NCols)
		for c := 0; c < gm.Meta.NCols; c++ {
			row[c] = math.NaN()
			pixel := r*gm.Meta.NCols + c
			if m, ok := gm.ByPixel[pixel]; ok {
				if cr, ok := m.Crossings[key]; ok {
					row[c] = cr.SOSDay
				}
			}
		}
		rows[r] = row
	}
	return rows
}
