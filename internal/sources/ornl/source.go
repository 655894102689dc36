// Package ornl collects satellite vegetation index subsets from the ORNL
// DAAC archive. One source owns one site: it schedules a daily fetch,
// backfills history on first start, and turns every pixel of every
// composite into samples on the distributor.
package ornl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/khufkens/greenwave/internal/database"
	"github.com/khufkens/greenwave/internal/sources"
	"github.com/khufkens/greenwave/internal/types"
	"github.com/khufkens/greenwave/pkg/config"
	"github.com/khufkens/greenwave/pkg/products"
	"go.uber.org/zap"
)

const (
	defaultFetchTime     = "03:00"
	defaultBackfillYears = 3
)

// Source holds one site's subset collection state
type Source struct {
	ctx               context.Context
	cancel            context.CancelFunc
	wg                *sync.WaitGroup
	config            config.SiteData
	product           products.Product
	SampleDistributor chan types.Sample
	logger            *zap.SugaredLogger
	client            *Client
	dbClient          *database.Client
	scheduler         *gocron.Scheduler
}

// NewSource creates a new ORNL subset source instance
func NewSource(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, siteName string, distributor chan types.Sample, logger *zap.SugaredLogger) (sources.Source, error) {
	site, err := sources.LoadSiteConfig(configProvider, siteName)
	if err != nil {
		return nil, err
	}

	product, err := products.Lookup(site.Product)
	if err != nil {
		return nil, fmt.Errorf("site [%s]: %w", siteName, err)
	}
	if len(site.Bands) == 0 {
		return nil, fmt.Errorf("site [%s] must list at least one band", siteName)
	}
	for _, name := range site.Bands {
		if _, err := product.Band(name); err != nil {
			return nil, fmt.Errorf("site [%s]: %w", siteName, err)
		}
	}

	sourceCtx, cancel := context.WithCancel(ctx)

	s := &Source{
		ctx:               sourceCtx,
		cancel:            cancel,
		wg:                wg,
		config:            *site,
		product:           product,
		SampleDistributor: distributor,
		logger:            logger.Named("ornl").With("site", siteName),
		client:            NewClient(""),
	}

	// Database access is only for incremental fetch; without it every run
	// re-collects the whole backfill window.
	cfgData, err := configProvider.LoadConfig()
	if err == nil && cfgData.Storage.TimescaleDB != nil && cfgData.Storage.TimescaleDB.ConnectionString != "" {
		dbc := database.NewClient(cfgData.Storage.TimescaleDB.ConnectionString, s.logger)
		if err := dbc.Connect(); err != nil {
			s.logger.Warnf("could not connect to database for incremental fetch: %v", err)
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

// StartSource schedules the daily fetch and launches a catch-up run
func (s *Source) StartSource() error {
	fetchTime := s.config.FetchTime
	if fetchTime == "" {
		fetchTime = defaultFetchTime
	}

	s.logger.Infow("Starting ORNL subset source",
		"product", s.config.Product,
		"bands", s.config.Bands,
		"fetch_time", fetchTime)

	s.scheduler = gocron.NewScheduler(time.UTC)
	if _, err := s.scheduler.Every(1).Day().At(fetchTime).Do(s.runFetch); err != nil {
		return fmt.Errorf("could not schedule daily fetch for site [%s]: %v", s.config.Name, err)
	}
	s.scheduler.StartAsync()

	// Catch-up run so a fresh site starts backfilling immediately instead
	// of waiting for the daily slot.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runFetch()
	}()

	return nil
}

// Refetch launches an out-of-schedule fetch run. The run is incremental
// like the scheduled ones, so triggering it repeatedly is harmless.
func (s *Source) Refetch() error {
	if s.ctx.Err() != nil {
		return fmt.Errorf("source for site %s is stopped", s.config.Name)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runFetch()
	}()
	return nil
}

// StopSource stops the scheduler and cancels any fetch in flight
func (s *Source) StopSource() error {
	s.logger.Info("Stopping ORNL subset source")
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.cancel()
	return nil
}

// runFetch collects every composite newer than what storage already holds
// and sends the resulting samples to the distributor.
func (s *Source) runFetch() {
	if s.ctx.Err() != nil {
		return
	}

	runID := uuid.New().String()[:8]
	start := s.fetchStart()

	s.logger.Infof("fetch run %s: collecting %s composites after %s", runID, s.config.Product, start.Format("2006-01-02"))

	dates, err := s.client.Dates(s.ctx, s.config.Product, s.config.Latitude, s.config.Longitude)
	if err != nil {
		s.logger.Errorf("fetch run %s: %v", runID, err)
		return
	}

	pending := filterDatesAfter(dates, start)
	if len(pending) == 0 {
		s.logger.Infof("fetch run %s: already up to date", runID)
		return
	}

	sent := 0
	for _, chunk := range chunkDates(pending) {
		n, err := s.fetchChunk(chunk, runID)
		sent += n
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Errorf("fetch run %s: chunk %s..%s failed: %v",
				runID, chunk[0].ModisDate, chunk[len(chunk)-1].ModisDate, err)
		}
	}

	s.logger.Infof("fetch run %s: sent %d samples across %d composites", runID, sent, len(pending))
}

// fetchStart returns the exclusive lower bound for this run: the newest
// stored sample when the database is reachable, the backfill horizon
// otherwise.
func (s *Source) fetchStart() time.Time {
	backfill := s.config.BackfillYears
	if backfill <= 0 {
		backfill = defaultBackfillYears
	}
	horizon := time.Now().UTC().AddDate(-backfill, 0, 0)

	if s.dbClient == nil {
		return horizon
	}

	latest, err := s.dbClient.LatestSampleTime(s.config.Name)
	if err != nil {
		s.logger.Warnf("could not read latest stored sample, backfilling %d years: %v", backfill, err)
		return horizon
	}
	if latest.IsZero() || latest.Before(horizon) {
		return horizon
	}
	return latest
}

// fetchChunk fetches the quality layer once, then every configured band,
// for one archive-sized window of composite dates.
func (s *Source) fetchChunk(chunk []CompositeDate, runID string) (int, error) {
	qcByDate, err := s.fetchQCRanks(chunk)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, shortName := range s.config.Bands {
		band, err := s.product.Band(shortName)
		if err != nil {
			return sent, err
		}

		resp, err := s.client.Subset(s.ctx, SubsetRequest{
			Product:      s.config.Product,
			Band:         band.Name,
			Latitude:     s.config.Latitude,
			Longitude:    s.config.Longitude,
			StartDate:    chunk[0].ModisDate,
			EndDate:      chunk[len(chunk)-1].ModisDate,
			KmAboveBelow: s.config.KmAboveBelow,
			KmLeftRight:  s.config.KmLeftRight,
		})
		if err != nil {
			return sent, err
		}

		samples, err := s.convertSubset(resp, shortName, band, qcByDate, runID)
		if err != nil {
			return sent, err
		}

		for i := range samples {
			select {
			case s.SampleDistributor <- samples[i]:
				sent++
			case <-s.ctx.Done():
				return sent, s.ctx.Err()
			}
		}
	}

	return sent, nil
}

// fetchQCRanks fetches the product's quality layer for a chunk and decodes
// it into per-date, per-pixel ranks. Products without a QC band return nil.
func (s *Source) fetchQCRanks(chunk []CompositeDate) (map[string][]int, error) {
	if s.product.QCBand == "" {
		return nil, nil
	}

	resp, err := s.client.Subset(s.ctx, SubsetRequest{
		Product:      s.config.Product,
		Band:         s.product.QCBand,
		Latitude:     s.config.Latitude,
		Longitude:    s.config.Longitude,
		StartDate:    chunk[0].ModisDate,
		EndDate:      chunk[len(chunk)-1].ModisDate,
		KmAboveBelow: s.config.KmAboveBelow,
		KmLeftRight:  s.config.KmLeftRight,
	})
	if err != nil {
		return nil, err
	}

	ranks := make(map[string][]int, len(resp.Subset))
	for _, slice := range resp.Subset {
		rs := make([]int, len(slice.Data))
		for i, raw := range slice.Data {
			rs[i] = s.product.DecodeQC(raw)
		}
		ranks[slice.ModisDate] = rs
	}
	return ranks, nil
}

// convertSubset turns one band's subset response into samples. Fill and
// out-of-range pixels keep their raw value but store value 0 at the worst
// quality rank so the pipeline treats them as gaps.
func (s *Source) convertSubset(resp *SubsetResponse, shortName string, band products.Band, qcByDate map[string][]int, runID string) ([]types.Sample, error) {
	xll, yll, cellsize, err := resp.ParseGeometry()
	if err != nil {
		return nil, err
	}

	samples := make([]types.Sample, 0, len(resp.Subset)*resp.NRows*resp.NCols)
	for _, slice := range resp.Subset {
		date, err := products.ParseModisDate(slice.ModisDate)
		if err != nil {
			return nil, err
		}

		qc := qcByDate[slice.ModisDate]
		for i, raw := range slice.Data {
			value, ok := band.ScaleValue(raw)
			rank := products.RankGood
			if len(qc) == len(slice.Data) {
				rank = qc[i]
			}
			if !ok {
				value = 0
				rank = products.RankBad
			}

			samples = append(samples, types.Sample{
				Time:         date,
				SiteName:     s.config.Name,
				Source:       config.SiteTypeORNL,
				Product:      s.config.Product,
				Band:         shortName,
				PixelIndex:   i,
				Value:        value,
				RawValue:     raw,
				QCRank:       rank,
				CompositeDOY: date.YearDay(),
				Tile:         slice.Tile,
				ProcDate:     slice.ProcDate,
				SubsetRows:   resp.NRows,
				SubsetCols:   resp.NCols,
				CellsizeM:    cellsize,
				XLLCorner:    xll,
				YLLCorner:    yll,
				RunID:        runID,
			})
		}
	}

	return samples, nil
}

// filterDatesAfter keeps archive dates strictly newer than start.
func filterDatesAfter(dates []CompositeDate, start time.Time) []CompositeDate {
	var out []CompositeDate
	for _, d := range dates {
		t, err := products.ParseModisDate(d.ModisDate)
		if err != nil {
			continue
		}
		if t.After(start) {
			out = append(out, d)
		}
	}
	return out
}
