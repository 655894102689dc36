// Package phenocache provides a dedicated controller for periodic phenology
// recomputation. It runs independently of the REST server: season metrics are
// recomputed from stored samples on an interval and persisted to the
// database, so API reads never pay the pipeline cost.
package phenocache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/khufkens/greenwave/internal/database"
	"github.com/khufkens/greenwave/internal/phenology"
	"github.com/khufkens/greenwave/pkg/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultInterval = 6 * time.Hour
	defaultWorkers  = 4

	// dataLookback is how far back the controller looks for samples before
	// declaring data available; roughly three 16-day composite periods.
	dataLookback = 45 * 24 * time.Hour

	// sitePixelIndex keys site-level rows (center-pixel series) in the
	// season_metrics table. Per-pixel rows use the subset's row-major index.
	sitePixelIndex = -1
)

var (
	refreshMu sync.Mutex
	refreshCh chan struct{}
)

// RequestRefresh asks the running phenocache controller to recompute outside
// its schedule. It reports false when no controller is running.
func RequestRefresh() bool {
	refreshMu.Lock()
	defer refreshMu.Unlock()
	if refreshCh == nil {
		return false
	}
	select {
	case refreshCh <- struct{}{}:
	default:
		// A refresh is already pending.
	}
	return true
}

func registerRefreshChannel(ch chan struct{}) {
	refreshMu.Lock()
	defer refreshMu.Unlock()
	refreshCh = ch
}

// Controller manages the phenology cache refresh lifecycle
type Controller struct {
	ctx            context.Context
	wg             *sync.WaitGroup
	configProvider config.ConfigProvider
	config         config.PhenoCacheData
	logger         *zap.SugaredLogger
	dbClient       *database.Client
	baseParams     phenology.Params
	interval       time.Duration
	workers        int
	refresh        chan struct{}
	stopChan       chan struct{}
}

// NewController creates a new phenology cache controller
func NewController(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, pc config.PhenoCacheData, logger *zap.SugaredLogger) (*Controller, error) {
	cfgData, err := configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfgData.Storage.TimescaleDB == nil || cfgData.Storage.TimescaleDB.ConnectionString == "" {
		return nil, fmt.Errorf("phenocache controller requires a timescaledb storage backend")
	}

	interval := defaultInterval
	if pc.Interval != "" {
		parsed, err := time.ParseDuration(pc.Interval)
		if err != nil {
			logger.Warnf("invalid phenocache interval %q, using default %v", pc.Interval, defaultInterval)
		} else {
			interval = parsed
		}
	}

	workers := pc.Workers
	if workers < 1 {
		workers = defaultWorkers
	}

	baseParams := mergeParams(phenology.DefaultParams(), config.PhenologyData{
		Window:           pc.Window,
		PolyOrder:        pc.PolyOrder,
		Thresholds:       pc.Thresholds,
		MaxGapComposites: pc.MaxGapComposites,
		MinAmplitude:     pc.MinAmplitude,
		MaxQCRank:        pc.MaxQCRank,
		MinGoodFraction:  pc.MinGoodFraction,
	})
	if err := baseParams.Validate(); err != nil {
		return nil, fmt.Errorf("invalid phenocache parameters: %w", err)
	}

	dbClient := database.NewClient(cfgData.Storage.TimescaleDB.ConnectionString, logger)
	if err := dbClient.Connect(); err != nil {
		return nil, fmt.Errorf("phenocache controller could not connect to database: %w", err)
	}
	if err := dbClient.DB.AutoMigrate(&database.SeasonMetricsRecord{}); err != nil {
		return nil, fmt.Errorf("could not migrate season metrics table: %w", err)
	}

	return &Controller{
		ctx:            ctx,
		wg:             wg,
		configProvider: configProvider,
		config:         pc,
		logger:         logger,
		dbClient:       dbClient,
		baseParams:     baseParams,
		interval:       interval,
		workers:        workers,
		refresh:        make(chan struct{}, 1),
		stopChan:       make(chan struct{}),
	}, nil
}

// StartController begins the phenology cache refresh loop
func (c *Controller) StartController() error {
	c.logger.Infof("Starting phenology cache controller (interval %v, %d workers)", c.interval, c.workers)
	registerRefreshChannel(c.refresh)

	c.wg.Add(1)
	go c.run()

	return nil
}

// Stop gracefully stops the controller
func (c *Controller) Stop() error {
	c.logger.Info("Stopping phenology cache controller...")
	registerRefreshChannel(nil)
	close(c.stopChan)
	return nil
}

func (c *Controller) run() {
	defer c.wg.Done()

	// Wait for samples to start arriving before the first recompute.
	probe, err := phenology.NewCalculator(c.dbClient, c.logger, c.baseParams, 1)
	if err != nil {
		c.logger.Errorf("phenology cache refresh job could not start: %v", err)
		return
	}

	c.logger.Info("Phenology cache refresh job waiting for stored samples")
	for {
		if probe.HasRecentSamples(c.ctx, dataLookback) {
			c.logger.Info("Samples available - starting phenology cache refresh job")
			break
		}
		select {
		case <-c.ctx.Done():
			c.logger.Info("Phenology cache refresh job stopped before data became available")
			return
		case <-c.stopChan:
			c.logger.Info("Phenology cache refresh job stopped before data became available")
			return
		case <-time.After(30 * time.Second):
		}
	}

	c.refreshAll()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Info("Phenology cache refresh job stopped (context cancelled)")
			return
		case <-c.stopChan:
			c.logger.Info("Phenology cache refresh job stopped (stop requested)")
			return
		case <-ticker.C:
			c.refreshAll()
		case <-c.refresh:
			c.logger.Info("Phenology cache refresh requested via management API")
			c.refreshAll()
		}
	}
}

// refreshAll recomputes season metrics for every configured site and band.
// The configuration is reloaded each pass so dynamically added sites are
// picked up without a restart.
func (c *Controller) refreshAll() {
	cfgData, err := c.configProvider.LoadConfig()
	if err != nil {
		c.logger.Errorf("phenology cache refresh could not load configuration: %v", err)
		return
	}

	start := time.Now()
	sitesRefreshed := 0
	rowsWritten := 0

	for i := range cfgData.Sites {
		site := &cfgData.Sites[i]

		bands := bandsForSite(site)
		if len(bands) == 0 {
			c.logger.Debugf("site %s declares no bands, skipping phenology refresh", site.Name)
			continue
		}

		params := mergeSiteParams(c.baseParams, site.Phenology)
		if err := params.Validate(); err != nil {
			c.logger.Errorf("site %s has invalid phenology overrides: %v", site.Name, err)
			continue
		}

		calc, err := phenology.NewCalculator(c.dbClient, c.logger, params, c.workersFor(site))
		if err != nil {
			c.logger.Errorf("could not build calculator for site %s: %v", site.Name, err)
			continue
		}

		siteHadRows := false
		for _, band := range bands {
			n, err := c.refreshSiteBand(calc, site, band)
			if err != nil {
				c.logger.Warnf("phenology refresh for %s/%s failed: %v", site.Name, band, err)
				continue
			}
			rowsWritten += n
			siteHadRows = siteHadRows || n > 0
		}
		if siteHadRows {
			sitesRefreshed++
		}
	}

	c.logger.Infof("Phenology cache refresh complete: %d sites, %d rows in %v",
		sitesRefreshed, rowsWritten, time.Since(start).Round(time.Millisecond))
}

// refreshSiteBand persists site-level metrics for every season-year, then the
// per-pixel metrics of the most recent season.
func (c *Controller) refreshSiteBand(calc *phenology.Calculator, site *config.SiteData, band string) (int, error) {
	metrics, err := calc.ComputeSite(c.ctx, site.Name, site.Latitude, band)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range metrics {
		rec, err := recordFromMetrics(m, sitePixelIndex)
		if err != nil {
			return count, err
		}
		if err := c.upsertRecord(rec); err != nil {
			return count, err
		}
		count++
	}

	latest := metrics[len(metrics)-1].SeasonYear
	gm, err := calc.ComputeSiteGrid(c.ctx, site.Name, site.Latitude, band, latest)
	if err != nil {
		c.logger.Debugf("no per-pixel metrics for %s/%s season %d: %v", site.Name, band, latest, err)
		return count, nil
	}

	for pixel, m := range gm.ByPixel {
		m.SiteName = site.Name
		m.Product = gm.Meta.Product
		m.Band = band
		rec, err := recordFromMetrics(m, pixel)
		if err != nil {
			return count, err
		}
		if err := c.upsertRecord(rec); err != nil {
			return count, err
		}
		count++
	}

	c.logger.Debugf("refreshed %s/%s: %d season rows, %d pixels in season %d (%d skipped)",
		site.Name, band, len(metrics), len(gm.ByPixel), latest, gm.Skipped)
	return count, nil
}

// upsertRecord creates or replaces the row identified by the season key
// (site, band, pixel, season-year).
func (c *Controller) upsertRecord(rec database.SeasonMetricsRecord) error {
	var existing database.SeasonMetricsRecord
	err := c.dbClient.DB.WithContext(c.ctx).
		Where("site_name = ? AND band = ? AND pixel_index = ? AND season_year = ?",
			rec.SiteName, rec.Band, rec.PixelIndex, rec.SeasonYear).
		First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.dbClient.DB.WithContext(c.ctx).Create(&rec).Error
	case err != nil:
		return err
	default:
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		return c.dbClient.DB.WithContext(c.ctx).Save(&rec).Error
	}
}

func recordFromMetrics(m phenology.SeasonMetrics, pixel int) (database.SeasonMetricsRecord, error) {
	rec := database.SeasonMetricsRecord{
		SiteName:       m.SiteName,
		Product:        m.Product,
		Band:           m.Band,
		PixelIndex:     pixel,
		SeasonYear:     m.SeasonYear,
		SeasonStart:    m.SeasonStart,
		GoodFraction:   m.GoodFraction,
		Amplitude:      m.Amplitude,
		MinValue:       m.MinValue,
		PeakValue:      m.PeakValue,
		PeakDay:        m.PeakDay,
		DaylengthAtSOS: m.DaylengthAtSOS,
	}
	if err := rec.Crossings.Set(m.Crossings); err != nil {
		return rec, fmt.Errorf("could not encode crossings for %s/%s season %d: %w",
			m.SiteName, m.Band, m.SeasonYear, err)
	}
	return rec, nil
}

func (c *Controller) workersFor(site *config.SiteData) int {
	if site.Phenology != nil && site.Phenology.Workers > 0 {
		return site.Phenology.Workers
	}
	return c.workers
}

// bandsForSite resolves which bands a site computes phenology for. PhenoCam
// sites always carry a green chromatic coordinate series.
func bandsForSite(site *config.SiteData) []string {
	if len(site.Bands) > 0 {
		return site.Bands
	}
	if site.Type == config.SiteTypePhenoCam {
		return []string{"GCC"}
	}
	return nil
}

// mergeParams overlays non-zero configuration values onto base parameters.
func mergeParams(base phenology.Params, o config.PhenologyData) phenology.Params {
	if o.Window > 0 {
		base.Window = o.Window
	}
	if o.PolyOrder > 0 {
		base.PolyOrder = o.PolyOrder
	}
	if len(o.Thresholds) > 0 {
		base.Thresholds = o.Thresholds
	}
	if o.MaxGapComposites > 0 {
		base.MaxGapComposites = o.MaxGapComposites
	}
	if o.MinAmplitude > 0 {
		base.MinAmplitude = o.MinAmplitude
	}
	if o.MaxQCRank > 0 {
		base.MaxQCRank = o.MaxQCRank
	}
	if o.MinGoodFraction > 0 {
		base.MinGoodFraction = o.MinGoodFraction
	}
	return base
}

func mergeSiteParams(base phenology.Params, o *config.PhenologyData) phenology.Params {
	if o == nil {
		return base
	}
	return mergeParams(base, *o)
}
