package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/khufkens/greenwave/internal/interfaces"
	"github.com/khufkens/greenwave/internal/log"
	"github.com/khufkens/greenwave/internal/sources"
	"github.com/khufkens/greenwave/internal/sources/fieldstream"
	"github.com/khufkens/greenwave/internal/sources/ornl"
	"github.com/khufkens/greenwave/internal/sources/phenocam"
	"github.com/khufkens/greenwave/internal/types"
	"github.com/khufkens/greenwave/pkg/config"
	"go.uber.org/zap"
)

// NewSourceManager creates a SourceManager object, populated with all configured acquisition sources
func NewSourceManager(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, distributor chan types.Sample, logger *zap.SugaredLogger) (interfaces.SourceManager, error) {
	cfgData, err := configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %v", err)
	}

	sm := &sourceManager{
		ctx:            ctx,
		wg:             wg,
		configProvider: configProvider,
		distributor:    distributor,
		logger:         logger,
		sources:        make(map[string]sources.Source),
	}

	for _, siteConfig := range cfgData.Sites {
		source, err := createSourceFromConfig(ctx, wg, configProvider, siteConfig.Name, distributor, logger)
		if err != nil {
			return nil, fmt.Errorf("error creating source [%s]: %w", siteConfig.Name, err)
		}
		sm.sources[siteConfig.Name] = source
	}

	return sm, nil
}

type sourceManager struct {
	ctx            context.Context
	wg             *sync.WaitGroup
	configProvider config.ConfigProvider
	distributor    chan types.Sample
	logger         *zap.SugaredLogger
	sources        map[string]sources.Source
	mu             sync.RWMutex
}

func (m *sourceManager) StartSources() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, source := range m.sources {
		m.logger.Infof("Starting source [%v]...", name)
		if err := source.StartSource(); err != nil {
			return fmt.Errorf("failed to start source [%s]: %w", name, err)
		}
	}
	return nil
}

// AddSource adds a new acquisition source dynamically
func (m *sourceManager) AddSource(siteName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sources[siteName]; exists {
		return fmt.Errorf("source %s already exists", siteName)
	}

	source, err := createSourceFromConfig(m.ctx, m.wg, m.configProvider, siteName, m.distributor, m.logger)
	if err != nil {
		return fmt.Errorf("error creating source [%s]: %w", siteName, err)
	}

	m.sources[siteName] = source

	if err := source.StartSource(); err != nil {
		delete(m.sources, siteName)
		return fmt.Errorf("failed to start source [%s]: %w", siteName, err)
	}

	m.logger.Infof("Added and started source: %s", siteName)
	return nil
}

// RemoveSource removes an acquisition source dynamically
func (m *sourceManager) RemoveSource(siteName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, exists := m.sources[siteName]
	if !exists {
		return fmt.Errorf("source %s not found", siteName)
	}

	if err := source.StopSource(); err != nil {
		m.logger.Errorf("Error stopping source %s: %v", siteName, err)
		// Continue with removal even if stop failed
	}

	delete(m.sources, siteName)

	m.logger.Infof("Removed and stopped source: %s", siteName)
	return nil
}

// ReloadSourcesConfig reloads source configuration dynamically
func (m *sourceManager) ReloadSourcesConfig() error {
	cfgData, err := m.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("could not load configuration: %v", err)
	}

	shouldBeActive := make(map[string]bool)
	for _, siteConfig := range cfgData.Sites {
		shouldBeActive[siteConfig.Name] = true
	}

	m.mu.RLock()
	current := make([]string, 0, len(m.sources))
	for name := range m.sources {
		current = append(current, name)
	}
	m.mu.RUnlock()

	// Remove sources that should no longer be active
	for _, name := range current {
		if !shouldBeActive[name] {
			if err := m.RemoveSource(name); err != nil {
				m.logger.Errorf("Failed to remove source %s: %v", name, err)
			}
		}
	}

	// Add sources that should be active but aren't
	for name := range shouldBeActive {
		if m.GetSource(name) == nil {
			if err := m.AddSource(name); err != nil {
				m.logger.Errorf("Failed to add source %s: %v", name, err)
			}
		}
	}

	return nil
}

// GetSource retrieves an acquisition source by site name.
// Returns nil if the source does not exist.
// This method is safe for concurrent use.
func (m *sourceManager) GetSource(siteName string) sources.Source {
	m.mu.RLock()
	defer m.mu.RUnlock()

	source, exists := m.sources[siteName]
	if !exists {
		return nil
	}
	return source
}

// createSourceFromConfig creates the appropriate acquisition source based on site type
func createSourceFromConfig(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, siteName string, distributor chan types.Sample, logger *zap.SugaredLogger) (sources.Source, error) {
	site, err := configProvider.GetSite(siteName)
	if err != nil {
		return nil, fmt.Errorf("site [%s] not found in configuration: %w", siteName, err)
	}

	switch site.Type {
	case config.SiteTypeORNL:
		log.Infof("Initializing ORNL subset source [%v]", siteName)
		return ornl.NewSource(ctx, wg, configProvider, siteName, distributor, logger)
	case config.SiteTypePhenoCam:
		log.Infof("Initializing PhenoCam source [%v]", siteName)
		return phenocam.NewSource(ctx, wg, configProvider, siteName, distributor, logger)
	case config.SiteTypeFieldStream:
		log.Infof("Initializing field stream source [%v]", siteName)
		return fieldstream.NewSource(ctx, wg, configProvider, siteName, distributor, logger)
	default:
		return nil, fmt.Errorf("unknown source type: %s", site.Type)
	}
}
