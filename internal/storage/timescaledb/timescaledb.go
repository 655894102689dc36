// Package timescaledb provides the TimescaleDB storage backend for
// vegetation index samples.
package timescaledb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/khufkens/greenwave/internal/database"
	"github.com/khufkens/greenwave/internal/log"
	"github.com/khufkens/greenwave/internal/storage"
	"github.com/khufkens/greenwave/internal/types"
	"github.com/khufkens/greenwave/pkg/config"
	"gorm.io/gorm"
)

// Storage holds the configuration for a TimescaleDB storage backend
type Storage struct {
	TimescaleDBConn *gorm.DB
}

// StartStorageEngine creates a goroutine loop to receive samples and send
// them off to TimescaleDB
func (t *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.Sample {
	log.Info("starting TimescaleDB storage engine...")
	sampleChan := make(chan types.Sample, 10)
	wg.Add(1)
	go storage.ProcessSamples(ctx, wg, sampleChan, t.StoreSample, "TimescaleDB")
	return sampleChan
}

// StoreSample stores a vegetation index sample in TimescaleDB
func (t *Storage) StoreSample(s types.Sample) error {
	err := t.TimescaleDBConn.Create(&s).Error
	if err != nil {
		return fmt.Errorf("could not store sample: %w", err)
	}
	return nil
}

// New sets up a new TimescaleDB storage backend
func New(ctx context.Context, configProvider config.ConfigProvider) (*Storage, error) {
	storageConfig, err := configProvider.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading storage configuration: %w", err)
	}
	if storageConfig.TimescaleDB == nil || storageConfig.TimescaleDB.ConnectionString == "" {
		return nil, fmt.Errorf("TimescaleDB storage configuration is missing")
	}

	t := Storage{}
	t.TimescaleDBConn, err = database.CreateConnection(storageConfig.TimescaleDB.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("unable to create a TimescaleDB connection: %w", err)
	}

	bootstrap := []struct {
		what string
		sql  string
	}{
		{"samples table", createTableSQL},
		{"TimescaleDB extension", createExtensionSQL},
		{"hypertable", createHypertableSQL},
		{"indexes", createIndexesSQL},
		{"latest-sample view (drop)", dropLatestViewSQL},
		{"latest-sample view", createLatestViewSQL},
	}

	for _, step := range bootstrap {
		log.Infof("creating %s...", step.what)
		if err := t.TimescaleDBConn.WithContext(ctx).Exec(step.sql).Error; err != nil {
			return nil, fmt.Errorf("could not create %s: %w", step.what, err)
		}
	}

	storage.StartHealthMonitor(ctx, "timescaledb", &t, 60*time.Second)

	return &t, nil
}
