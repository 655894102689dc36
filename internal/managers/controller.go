package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/khufkens/greenwave/internal/controllers/management"
	"github.com/khufkens/greenwave/internal/controllers/phenocache"
	"github.com/khufkens/greenwave/internal/controllers/restserver"
	"github.com/khufkens/greenwave/internal/interfaces"
	"github.com/khufkens/greenwave/pkg/config"
	"go.uber.org/zap"
)

// ControllerManager interface for the controller manager
type ControllerManager interface {
	StartControllers() error
	AddController(controllerConfig *config.ControllerData) error
	RemoveController(controllerType string) error
}

// Controller is an interface that provides standard methods for various controller backends
type Controller interface {
	StartController() error
}

// StoppableController is implemented by controllers that can be shut down
// individually while the application keeps running.
type StoppableController interface {
	Stop() error
}

// NewControllerManager creates a new controller manager
func NewControllerManager(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, logger *zap.SugaredLogger, app interfaces.AppReloader) (ControllerManager, error) {
	cfgData, err := configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %v", err)
	}

	cm := &controllerManager{
		ctx:            ctx,
		wg:             wg,
		configProvider: configProvider,
		logger:         logger,
		app:            app,
		controllers:    make(map[string]Controller),
	}

	// Create controllers based on configuration
	for _, con := range cfgData.Controllers {
		controller, err := cm.createController(con)
		if err != nil {
			return nil, fmt.Errorf("error creating controller: %v", err)
		}
		cm.controllers[con.Type] = controller
	}

	return cm, nil
}

type controllerManager struct {
	ctx            context.Context
	wg             *sync.WaitGroup
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
	app            interfaces.AppReloader
	controllers    map[string]Controller
	mu             sync.RWMutex
}

func (c *controllerManager) StartControllers() error {
	c.logger.Info("Starting controller manager...")

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, controller := range c.controllers {
		err := controller.StartController()
		if err != nil {
			return fmt.Errorf("error starting controller: %v", err)
		}
	}

	c.logger.Infof("Started %d controllers successfully", len(c.controllers))
	return nil
}

// AddController creates and starts a controller dynamically
func (c *controllerManager) AddController(controllerConfig *config.ControllerData) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.controllers[controllerConfig.Type]; exists {
		return fmt.Errorf("controller %s already running", controllerConfig.Type)
	}

	controller, err := c.createController(*controllerConfig)
	if err != nil {
		return fmt.Errorf("error creating controller: %v", err)
	}
	if err := controller.StartController(); err != nil {
		return fmt.Errorf("error starting controller: %v", err)
	}

	c.controllers[controllerConfig.Type] = controller
	c.logger.Infof("Added and started controller: %s", controllerConfig.Type)
	return nil
}

// RemoveController stops and removes a controller dynamically
func (c *controllerManager) RemoveController(controllerType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	controller, exists := c.controllers[controllerType]
	if !exists {
		return fmt.Errorf("controller %s not found", controllerType)
	}

	stoppable, ok := controller.(StoppableController)
	if !ok {
		return fmt.Errorf("controller %s cannot be stopped at runtime; restart required", controllerType)
	}
	if err := stoppable.Stop(); err != nil {
		c.logger.Errorf("Error stopping controller %s: %v", controllerType, err)
	}

	delete(c.controllers, controllerType)
	c.logger.Infof("Removed and stopped controller: %s", controllerType)
	return nil
}

// createController creates a controller based on the controller configuration
func (cm *controllerManager) createController(cc config.ControllerData) (Controller, error) {
	switch cc.Type {
	case "restserver", "rest":
		if cc.RESTServer == nil {
			return nil, fmt.Errorf("rest controller requires a rest configuration section")
		}
		return restserver.NewController(cm.ctx, cm.wg, cm.configProvider, *cc.RESTServer, cm.logger)
	case "phenocache":
		if cc.PhenoCache == nil {
			return nil, fmt.Errorf("phenocache controller requires a phenocache configuration section")
		}
		return phenocache.NewController(cm.ctx, cm.wg, cm.configProvider, *cc.PhenoCache, cm.logger)
	case "management":
		if cc.ManagementAPI == nil {
			return nil, fmt.Errorf("management controller requires a management configuration section")
		}
		return management.NewController(cm.ctx, cm.wg, cm.configProvider, *cc.ManagementAPI, cm.logger, cm.app)
	default:
		return nil, fmt.Errorf("unknown controller type: %s", cc.Type)
	}
}
