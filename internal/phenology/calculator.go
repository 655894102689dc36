package phenology

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/khufkens/greenwave/internal/database"
	"github.com/khufkens/greenwave/internal/types"
	"go.uber.org/zap"
)

// Calculator loads vegetation-index series from the database, runs the
// phenology pipeline, and caches the results for the API layer. One
// Calculator serves all sites; it is safe for concurrent use.
type Calculator struct {
	db      *database.Client
	logger  *zap.SugaredLogger
	params  Params
	workers int

	mu    sync.RWMutex
	cache map[string][]SeasonMetrics
}

// NewCalculator creates a Calculator. workers bounds the per-pixel grid
// fan-out; site-level series are cheap and always computed inline.
func NewCalculator(db *database.Client, logger *zap.SugaredLogger, params Params, workers int) (*Calculator, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid phenology parameters: %w", err)
	}
	if workers < 1 {
		workers = 1
	}
	return &Calculator{
		db:      db,
		logger:  logger,
		params:  params,
		workers: workers,
		cache:   make(map[string][]SeasonMetrics),
	}, nil
}

// Params returns the pipeline parameters the calculator runs with.
func (c *Calculator) Params() Params {
	return c.params
}

func cacheKey(siteName, band string) string {
	return siteName + "|" + band
}

// loadSamples pulls every stored sample for a site and band, oldest first.
func (c *Calculator) loadSamples(ctx context.Context, siteName, band string) ([]types.Sample, error) {
	var samples []types.Sample
	err := c.db.DB.WithContext(ctx).
		Where("sitename = ? AND band = ?", siteName, band).
		Order("time ASC, pixelindex ASC").
		Find(&samples).Error
	if err != nil {
		return nil, fmt.Errorf("error querying samples for %s/%s: %w", siteName, band, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples stored for %s/%s", siteName, band)
	}
	return samples, nil
}

// LoadSiteSeries returns the series of the center pixel of a site's subset,
// the series used for site-level metrics.
func (c *Calculator) LoadSiteSeries(ctx context.Context, siteName, band string) (Series, types.SubsetMeta, error) {
	samples, err := c.loadSamples(ctx, siteName, band)
	if err != nil {
		return Series{}, types.SubsetMeta{}, err
	}

	meta := samples[len(samples)-1].Meta()
	center := (meta.NRows/2)*meta.NCols + meta.NCols/2

	var s Series
	for i := range samples {
		if samples[i].PixelIndex != center {
			continue
		}
		s.Dates = append(s.Dates, samples[i].Time.UTC())
		s.Values = append(s.Values, samples[i].Value)
		s.Ranks = append(s.Ranks, samples[i].QCRank)
	}
	if s.Len() == 0 {
		return Series{}, meta, fmt.Errorf("no samples for center pixel %d of %s/%s", center, siteName, band)
	}
	return s, meta, nil
}

// ComputeSite runs the pipeline over a site's center-pixel series and
// returns metrics for every season-year with enough data. Seasons that are
// too flat, too cloudy, or never reach a threshold are skipped with a debug
// log rather than failing the whole site.
func (c *Calculator) ComputeSite(ctx context.Context, siteName string, latitude float64, band string) ([]SeasonMetrics, error) {
	series, meta, err := c.LoadSiteSeries(ctx, siteName, band)
	if err != nil {
		return nil, err
	}

	processed, err := ProcessSeries(series, c.params)
	if err != nil {
		return nil, fmt.Errorf("processing %s/%s: %w", siteName, band, err)
	}

	var out []SeasonMetrics
	for _, year := range SeasonYears(series.Dates, latitude) {
		m, err := ComputeSeason(series, processed, year, latitude, c.params)
		if err != nil {
			c.logger.Debugf("skipping %s/%s season %d: %v", siteName, band, year, err)
			continue
		}
		m.SiteName = siteName
		m.Product = meta.Product
		m.Band = band
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no season of %s/%s produced metrics", siteName, band)
	}
	return out, nil
}

// ComputeSiteGrid runs the per-pixel pipeline for one season-year of a
// site's subset.
func (c *Calculator) ComputeSiteGrid(ctx context.Context, siteName string, latitude float64, band string, seasonYear int) (*GridMetrics, error) {
	samples, err := c.loadSamples(ctx, siteName, band)
	if err != nil {
		return nil, err
	}

	grid, err := AssembleGrid(samples[len(samples)-1].Meta(), samples)
	if err != nil {
		return nil, fmt.Errorf("assembling grid for %s/%s: %w", siteName, band, err)
	}

	return ComputeGrid(grid, seasonYear, latitude, c.params, c.workers)
}

// RefreshSite recomputes and caches a site/band's metrics.
func (c *Calculator) RefreshSite(ctx context.Context, siteName string, latitude float64, band string) ([]SeasonMetrics, error) {
	metrics, err := c.ComputeSite(ctx, siteName, latitude, band)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[cacheKey(siteName, band)] = metrics
	c.mu.Unlock()
	return metrics, nil
}

// CachedMetrics returns the cached metrics for a site/band, newest
// computation wins. ok is false when the site has not been computed yet.
func (c *Calculator) CachedMetrics(siteName, band string) ([]SeasonMetrics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.cache[cacheKey(siteName, band)]
	return m, ok
}

// CachedSeason returns one cached season-year for a site/band.
func (c *Calculator) CachedSeason(siteName, band string, seasonYear int) (SeasonMetrics, bool) {
	metrics, ok := c.CachedMetrics(siteName, band)
	if !ok {
		return SeasonMetrics{}, false
	}
	for _, m := range metrics {
		if m.SeasonYear == seasonYear {
			return m, true
		}
	}
	return SeasonMetrics{}, false
}

// HasRecentSamples reports whether any sample newer than the lookback
// exists, the signal the cache controller waits on before its first
// recompute.
func (c *Calculator) HasRecentSamples(ctx context.Context, lookback time.Duration) bool {
	var count int64
	err := c.db.DB.WithContext(ctx).
		Model(&types.Sample{}).
		Where("time > ?", time.Now().UTC().Add(-lookback)).
		Count(&count).Error
	if err != nil {
		c.logger.Warnf("error checking for recent samples: %v", err)
		return false
	}
	return count > 0
}
