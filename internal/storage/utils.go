package storage

import (
	"context"
	"sync"
	"time"

	"github.com/khufkens/greenwave/internal/log"
	"github.com/khufkens/greenwave/internal/types"
)

// HealthChecker is implemented by storage backends that can report their
// own health.
type HealthChecker interface {
	CheckHealth() HealthData
}

// StartHealthMonitor runs periodic health checks for a storage backend and
// publishes the results to the global health manager.
func StartHealthMonitor(ctx context.Context, storageType string, checker HealthChecker, interval time.Duration) {
	go func() {
		updateHealth := func() {
			health := checker.CheckHealth()
			GlobalHealthManager.UpdateHealth(storageType, health)
			log.Debugf("updated %s health status: %s", storageType, health.Status)
		}

		updateHealth()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				updateHealth()
			case <-ctx.Done():
				log.Infof("stopping %s health monitor", storageType)
				return
			}
		}
	}()
}

// ProcessSamples provides a standard pattern for draining a sample channel
// into a backend. Callers must wg.Add(1) before launching it.
func ProcessSamples(ctx context.Context, wg *sync.WaitGroup, sampleChan <-chan types.Sample, processor func(types.Sample) error, name string) {
	defer wg.Done()

	for {
		select {
		case s := <-sampleChan:
			if err := processor(s); err != nil {
				log.Errorf("%s sample processor error: %v", name, err)
			}
		case <-ctx.Done():
			log.Infof("cancellation request received. Cancelling %s sample processor", name)
			return
		}
	}
}

// CreateHealthData assembles a health report.
func CreateHealthData(status, message string, err error) HealthData {
	health := HealthData{
		LastCheck: time.Now(),
		Status:    status,
		Message:   message,
	}
	if err != nil {
		health.Error = err.Error()
	}
	return health
}
