package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/khufkens/greenwave/internal/storage"
	"github.com/khufkens/greenwave/internal/storage/stream"
	"github.com/khufkens/greenwave/internal/storage/timescaledb"
	"github.com/khufkens/greenwave/internal/types"
	"github.com/khufkens/greenwave/pkg/config"
)

// StorageManager holds our active storage backends
type StorageManager struct {
	Engines           []StorageEngine
	SampleDistributor chan types.Sample
}

// StorageEngine holds a backend storage engine's interface as well as
// a channel for passing samples to the engine
type StorageEngine struct {
	Engine storage.StorageEngineInterface
	C      chan<- types.Sample
}

// NewStorageManager creates a StorageManager object, populated with all configured StorageEngines
func NewStorageManager(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider) (*StorageManager, error) {
	cfgData, err := configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %v", err)
	}

	s := StorageManager{}

	// Initialize our channel for passing samples to the sample distributor
	s.SampleDistributor = make(chan types.Sample, 20)

	// Start our sample distributor to distribute received samples to storage
	// backends
	wg.Add(1)
	go s.startSampleDistributor(ctx, wg)

	// Check the configuration for various supported storage backends
	// and enable them if found

	if cfgData.Storage.TimescaleDB != nil && cfgData.Storage.TimescaleDB.ConnectionString != "" {
		err = s.AddEngine(ctx, wg, "timescaledb", configProvider)
		if err != nil {
			return &s, fmt.Errorf("could not add TimescaleDB storage backend: %v", err)
		}
	}

	if cfgData.Storage.Stream != nil && cfgData.Storage.Stream.Port != 0 {
		err = s.AddEngine(ctx, wg, "stream", configProvider)
		if err != nil {
			return &s, fmt.Errorf("could not add stream storage backend: %v", err)
		}
	}

	return &s, nil
}

// GetSampleDistributor returns the sample distributor channel
func (s *StorageManager) GetSampleDistributor() chan types.Sample {
	return s.SampleDistributor
}

// AddEngine adds a new StorageEngine of name engineName to our Storage object
func (s *StorageManager) AddEngine(ctx context.Context, wg *sync.WaitGroup, engineName string, configProvider config.ConfigProvider) error {
	var err error

	switch engineName {
	case "timescaledb":
		se := StorageEngine{}
		se.Engine, err = timescaledb.New(ctx, configProvider)
		if err != nil {
			return err
		}
		se.C = se.Engine.StartStorageEngine(ctx, wg)
		s.Engines = append(s.Engines, se)
	case "stream":
		se := StorageEngine{}
		se.Engine, err = stream.New(ctx, configProvider)
		if err != nil {
			return err
		}
		se.C = se.Engine.StartStorageEngine(ctx, wg)
		s.Engines = append(s.Engines, se)
	default:
		return fmt.Errorf("unknown storage engine: %s", engineName)
	}

	return nil
}

// startSampleDistributor receives samples from sources and fans them out to the
// various storage backends
func (s *StorageManager) startSampleDistributor(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case sample := <-s.SampleDistributor:
			// With no storage engines configured, samples are discarded.
			for _, e := range s.Engines {
				e.C <- sample
			}
		case <-ctx.Done():
			return
		}
	}
}
