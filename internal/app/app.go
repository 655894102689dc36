package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/khufkens/greenwave/internal/interfaces"
	"github.com/khufkens/greenwave/internal/log"
	"github.com/khufkens/greenwave/internal/managers"
	"github.com/khufkens/greenwave/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger

	mu                sync.RWMutex
	storageManager    *managers.StorageManager
	sourceManager     interfaces.SourceManager
	controllerManager managers.ControllerManager
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Initialize the storage manager
	storageManager, err := managers.NewStorageManager(ctx, &wg, a.configProvider)
	if err != nil {
		return err
	}

	// Initialize the source manager
	sm, err := managers.NewSourceManager(ctx, &wg, a.configProvider, storageManager.SampleDistributor, a.logger)
	if err != nil {
		return err
	}
	if err := sm.StartSources(); err != nil {
		return err
	}

	// Initialize the controller manager
	cm, err := managers.NewControllerManager(ctx, &wg, a.configProvider, a.logger, a)
	if err != nil {
		return err
	}
	err = cm.StartControllers()
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.storageManager = storageManager
	a.sourceManager = sm
	a.controllerManager = cm
	a.mu.Unlock()

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}

// ReloadConfiguration re-reads the configuration source and reconciles the
// running sources against it.
func (a *App) ReloadConfiguration(ctx context.Context) error {
	a.mu.RLock()
	sm := a.sourceManager
	a.mu.RUnlock()

	if sm == nil {
		return fmt.Errorf("application not fully started")
	}

	log.Info("reloading configuration...")
	if _, err := a.configProvider.LoadConfig(); err != nil {
		return fmt.Errorf("could not reload configuration: %w", err)
	}
	return sm.ReloadSourcesConfig()
}

// AddController creates and starts a controller dynamically
func (a *App) AddController(controllerConfig *config.ControllerData) error {
	a.mu.RLock()
	cm := a.controllerManager
	a.mu.RUnlock()

	if cm == nil {
		return fmt.Errorf("application not fully started")
	}
	return cm.AddController(controllerConfig)
}

// RemoveController stops and removes a controller dynamically
func (a *App) RemoveController(controllerType string) error {
	a.mu.RLock()
	cm := a.controllerManager
	a.mu.RUnlock()

	if cm == nil {
		return fmt.Errorf("application not fully started")
	}
	return cm.RemoveController(controllerType)
}

// AddSource creates and starts an acquisition source dynamically
func (a *App) AddSource(siteName string) error {
	a.mu.RLock()
	sm := a.sourceManager
	a.mu.RUnlock()

	if sm == nil {
		return fmt.Errorf("application not fully started")
	}
	return sm.AddSource(siteName)
}

// RemoveSource stops and removes an acquisition source dynamically
func (a *App) RemoveSource(siteName string) error {
	a.mu.RLock()
	sm := a.sourceManager
	a.mu.RUnlock()

	if sm == nil {
		return fmt.Errorf("application not fully started")
	}
	return sm.RemoveSource(siteName)
}

// RefetchSite triggers an out-of-schedule fetch run for one site. Only
// sources that poll a remote archive support this.
func (a *App) RefetchSite(siteName string) error {
	a.mu.RLock()
	sm := a.sourceManager
	a.mu.RUnlock()

	if sm == nil {
		return fmt.Errorf("application not fully started")
	}

	source := sm.GetSource(siteName)
	if source == nil {
		return fmt.Errorf("no running source for site %s", siteName)
	}

	refetcher, ok := source.(interfaces.Refetcher)
	if !ok {
		return fmt.Errorf("source for site %s does not support manual refetch", siteName)
	}
	return refetcher.Refetch()
}
