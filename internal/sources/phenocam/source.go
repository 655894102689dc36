// Package phenocam polls the PhenoCam network's 3-day ROI summary files
// and turns green chromatic coordinate rows into samples. Cameras are
// single-point sites; every sample lands on pixel 0 of a 1x1 grid.
package phenocam

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/khufkens/greenwave/internal/database"
	"github.com/khufkens/greenwave/internal/sources"
	"github.com/khufkens/greenwave/internal/types"
	"github.com/khufkens/greenwave/pkg/config"
	"github.com/khufkens/greenwave/pkg/products"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// DefaultBaseURL is the PhenoCam network archive.
const DefaultBaseURL = "https://phenocam.nau.edu"

const defaultPollInterval = 12 * time.Hour

// Source polls one camera site's roistats file
type Source struct {
	ctx               context.Context
	cancel            context.CancelFunc
	wg                *sync.WaitGroup
	config            config.SiteData
	SampleDistributor chan types.Sample
	logger            *zap.SugaredLogger
	baseURL           string
	httpCfg           sources.HTTPClientConfig
	circuit           *gobreaker.CircuitBreaker
	pollInterval      time.Duration
	dbClient          *database.Client
	lastSent          time.Time
}

// NewSource creates a new PhenoCam source instance
func NewSource(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, siteName string, distributor chan types.Sample, logger *zap.SugaredLogger) (sources.Source, error) {
	site, err := sources.LoadSiteConfig(configProvider, siteName)
	if err != nil {
		return nil, err
	}
	if site.ROI == "" {
		return nil, fmt.Errorf("site [%s] must define an roi", siteName)
	}

	pollInterval := defaultPollInterval
	if site.PollInterval != "" {
		pollInterval, err = time.ParseDuration(site.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("site [%s] poll-interval: %w", siteName, err)
		}
	}

	sourceCtx, cancel := context.WithCancel(ctx)

	s := &Source{
		ctx:               sourceCtx,
		cancel:            cancel,
		wg:                wg,
		config:            *site,
		SampleDistributor: distributor,
		logger:            logger.Named("phenocam").With("site", siteName),
		baseURL:           DefaultBaseURL,
		httpCfg: sources.HTTPClientConfig{
			Client: &http.Client{Timeout: 60 * time.Second},
			Backoff: sources.BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     10 * time.Second,
			},
		},
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "phenocam-" + siteName,
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		}),
		pollInterval: pollInterval,
	}

	cfgData, err := configProvider.LoadConfig()
	if err == nil && cfgData.Storage.TimescaleDB != nil && cfgData.Storage.TimescaleDB.ConnectionString != "" {
		dbc := database.NewClient(cfgData.Storage.TimescaleDB.ConnectionString, s.logger)
		if err := dbc.Connect(); err != nil {
			s.logger.Warnf("could not connect to database for incremental polling: %v", err)
		} else {
			s.dbClient = dbc
		}
	}

	return s, nil
}

// SiteName returns the name of the site this source collects
func (s *Source) SiteName() string {
	return s.config.Name
}

// StartSource launches the poll loop
func (s *Source) StartSource() error {
	s.logger.Infow("Starting PhenoCam source",
		"roi", s.config.ROI,
		"interval", s.pollInterval)

	s.wg.Add(1)
	go s.pollLoop()

	return nil
}

// StopSource stops the poll loop
func (s *Source) StopSource() error {
	s.logger.Info("Stopping PhenoCam source")
	s.cancel()
	return nil
}

func (s *Source) pollLoop() {
	defer s.wg.Done()

	// Initial poll immediately
	s.poll()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("Poll loop stopped")
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

// roistatsURL composes the archive path of the site's 3-day summary file.
// ROI is the veg-type and ROI id joined the way the archive names files,
// e.g. "DB_1000".
func (s *Source) roistatsURL() string {
	return fmt.Sprintf("%s/data/archive/%s/ROI/%s_%s_3day.csv",
		s.baseURL, s.config.Name, s.config.Name, s.config.ROI)
}

func (s *Source) poll() {
	runID := uuid.New().String()[:8]

	rows, err := s.fetchROIStats()
	if err != nil {
		s.logger.Errorf("poll run %s: %v", runID, err)
		return
	}

	since := s.lastStored()
	sent := 0
	for _, row := range rows {
		if !row.Date.After(since) {
			continue
		}

		sample := s.convertRow(row, runID)
		select {
		case s.SampleDistributor <- sample:
			sent++
			if row.Date.After(s.lastSent) {
				s.lastSent = row.Date
			}
		case <-s.ctx.Done():
			return
		}
	}

	s.logger.Infof("poll run %s: sent %d new samples of %d rows", runID, sent, len(rows))
}

func (s *Source) fetchROIStats() ([]ROIStatsRow, error) {
	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, s.roistatsURL(), nil)
	}

	resp, err := sources.DoRequestWithResilience(s.ctx, s.httpCfg, s.circuit, buildRequest)
	if err != nil {
		return nil, fmt.Errorf("roistats request failed: %w", err)
	}
	defer resp.Body.Close()

	return ParseROIStats(resp.Body)
}

// lastStored returns the newest sample date already seen, preferring the
// database over the in-process watermark so restarts stay incremental.
func (s *Source) lastStored() time.Time {
	since := s.lastSent
	if s.dbClient == nil {
		return since
	}

	latest, err := s.dbClient.LatestSampleTime(s.config.Name)
	if err != nil {
		s.logger.Warnf("could not read latest stored sample: %v", err)
		return since
	}
	if latest.After(since) {
		return latest
	}
	return since
}

func (s *Source) convertRow(row ROIStatsRow, runID string) types.Sample {
	return types.Sample{
		Time:         row.Date,
		SiteName:     s.config.Name,
		Source:       config.SiteTypePhenoCam,
		Product:      "PHENOCAM_GCC",
		Band:         "GCC",
		PixelIndex:   0,
		Value:        row.GCC90,
		RawValue:     row.GCC90,
		QCRank:       products.GCCRank(row.SnowFlag, row.OutlierFlag),
		CompositeDOY: row.DOY,
		SubsetRows:   1,
		SubsetCols:   1,
		RunID:        runID,
	}
}
