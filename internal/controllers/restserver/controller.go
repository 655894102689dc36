// Package restserver serves the public read API: configured sites, stored
// sample series, subset grids, season metrics, and the product catalog.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/khufkens/greenwave/internal/database"
	"github.com/khufkens/greenwave/internal/log"
	"github.com/khufkens/greenwave/pkg/config"
	"go.uber.org/zap"
)

// Controller represents the REST server controller
type Controller struct {
	ctx            context.Context
	wg             *sync.WaitGroup
	configProvider config.ConfigProvider
	restConfig     config.RESTServerData
	Server         http.Server
	DB             *database.Client
	DBEnabled      bool
	Sites          []config.SiteData
	logger         *zap.SugaredLogger
	handlers       *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, rc config.RESTServerData, logger *zap.SugaredLogger) (*Controller, error) {
	ctrl := &Controller{
		ctx:            ctx,
		wg:             wg,
		configProvider: configProvider,
		restConfig:     rc,
		logger:         logger,
	}

	// Load configuration
	cfgData, err := configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %v", err)
	}

	ctrl.Sites = cfgData.Sites
	if len(ctrl.Sites) == 0 {
		logger.Warn("no sites configured; the REST API will serve an empty site list")
	}

	// If a listen address was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		logger.Info("rest.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}

	if rc.Port == 0 {
		logger.Info("rest.port not provided; defaulting to 8080")
		rc.Port = 8080
	}
	ctrl.restConfig = rc

	// If a TimescaleDB database was configured, set up a DB handle so that
	// the handlers can retrieve data
	if cfgData.Storage.TimescaleDB != nil && cfgData.Storage.TimescaleDB.ConnectionString != "" {
		ctrl.DB = database.NewClient(cfgData.Storage.TimescaleDB.ConnectionString, logger)
		if err := ctrl.DB.Connect(); err != nil {
			return nil, fmt.Errorf("REST server could not connect to database: %v", err)
		}
		ctrl.DBEnabled = true
	}

	// Create handlers
	ctrl.handlers = NewHandlers(ctrl)

	// Set up router
	router := ctrl.setupRouter()
	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = handlers.CompressHandler(
		handlers.CORS(
			handlers.AllowedOrigins([]string{"*"}),
			handlers.AllowedMethods([]string{"GET", "OPTIONS"}),
			handlers.AllowedHeaders([]string{"Content-Type"}),
		)(router))

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	log.Info("Starting REST server controller...")
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")
		c.Server.Shutdown(context.Background())
	}()

	return nil
}

// Stop shuts down the REST server without stopping the application
func (c *Controller) Stop() error {
	return c.Server.Shutdown(context.Background())
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", c.handlers.GetHealth)
	router.HandleFunc("/api/products", c.handlers.GetProducts)
	router.HandleFunc("/api/sites", c.handlers.GetSites)
	router.HandleFunc("/api/sites/{site}/series", c.handlers.GetSiteSeries)
	router.HandleFunc("/api/sites/{site}/grid", c.handlers.GetSiteGrid)
	router.HandleFunc("/api/sites/{site}/phenology", c.handlers.GetSitePhenology)

	// Status page and static assets
	router.HandleFunc("/", c.handlers.ServeIndex)
	router.PathPrefix("/").Handler(http.FileServer(http.FS(GetAssets())))

	return router
}

// siteConfig returns the configuration of a site by name, nil when the
// site is not configured.
func (c *Controller) siteConfig(name string) *config.SiteData {
	for i := range c.Sites {
		if c.Sites[i].Name == name {
			return &c.Sites[i]
		}
	}
	return nil
}
