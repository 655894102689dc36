// Package management serves the token-authenticated admin API: config
// inspection, site management, manual refetch, and phenology recompute.
package management

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/khufkens/greenwave/internal/interfaces"
	"github.com/khufkens/greenwave/internal/log"
	"github.com/khufkens/greenwave/pkg/config"
	"go.uber.org/zap"
)

// Controller represents the management API controller
type Controller struct {
	ctx              context.Context
	wg               *sync.WaitGroup
	configProvider   config.ConfigProvider
	managementConfig config.ManagementAPIData
	Server           http.Server
	logger           *zap.SugaredLogger
	handlers         *Handlers
	app              interfaces.AppReloader
	startedAt        time.Time
}

// NewController creates a new management API controller
func NewController(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, mc config.ManagementAPIData, logger *zap.SugaredLogger, app interfaces.AppReloader) (*Controller, error) {
	ctrl := &Controller{
		ctx:            ctx,
		wg:             wg,
		configProvider: configProvider,
		logger:         logger,
		app:            app,
		startedAt:      time.Now(),
	}

	ctrl.managementConfig = mc

	// Set default values
	if ctrl.managementConfig.Port == 0 {
		logger.Info("management API port not specified; defaulting to 8081")
		ctrl.managementConfig.Port = 8081
	}

	if ctrl.managementConfig.ListenAddr == "" {
		logger.Info("management API listen-addr not provided; defaulting to 127.0.0.1 (localhost only)")
		ctrl.managementConfig.ListenAddr = "127.0.0.1"
	}

	if mc.AuthToken == "" {
		// No token configured; generate one and persist it when the
		// provider allows writes, so the token survives restarts.
		newToken := generateAuthToken()
		ctrl.managementConfig.AuthToken = newToken

		if !configProvider.IsReadOnly() {
			err := configProvider.UpdateController("management", &config.ControllerData{
				Type: "management",
				ManagementAPI: &config.ManagementAPIData{
					Cert:       mc.Cert,
					Key:        mc.Key,
					Port:       ctrl.managementConfig.Port,
					ListenAddr: ctrl.managementConfig.ListenAddr,
					AuthToken:  newToken,
					EnableCORS: mc.EnableCORS,
				},
			})
			if err != nil {
				logger.Errorf("Failed to save auth token to config: %v", err)
			}
		}

		logger.Infof("Generated management API token: %s", newToken)
		logger.Info("Use this token as a Bearer token for management API requests")
	}

	// Create handlers
	ctrl.handlers = NewHandlers(ctrl)

	// Set up router
	router := ctrl.setupRouter()
	ctrl.Server.Addr = fmt.Sprintf("%v:%v", ctrl.managementConfig.ListenAddr, ctrl.managementConfig.Port)
	ctrl.Server.Handler = router

	return ctrl, nil
}

// StartController starts the management API server
func (c *Controller) StartController() error {
	log.Info("Starting management API controller...")
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		c.logger.Infof("Management API server starting on %s", c.Server.Addr)

		var err error
		if c.managementConfig.Cert != "" && c.managementConfig.Key != "" {
			err = c.Server.ListenAndServeTLS(c.managementConfig.Cert, c.managementConfig.Key)
		} else {
			err = c.Server.ListenAndServe()
		}

		if err != http.ErrServerClosed {
			log.Errorf("Management API server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the management API server...")
		c.Server.Shutdown(context.Background())
	}()

	return nil
}

// Stop shuts down the management API server without stopping the application
func (c *Controller) Stop() error {
	return c.Server.Shutdown(context.Background())
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()

	router.Use(c.loggingMiddleware)
	if c.managementConfig.EnableCORS {
		router.Use(c.corsMiddleware)
	}

	api := router.PathPrefix("/api").Subrouter()
	api.Use(c.authMiddleware)

	api.HandleFunc("/status", c.handlers.GetStatus).Methods("GET")
	api.HandleFunc("/config", c.handlers.GetConfig).Methods("GET")
	api.HandleFunc("/config/reload", c.handlers.ReloadConfig).Methods("POST")

	api.HandleFunc("/sites", c.handlers.GetSites).Methods("GET")
	api.HandleFunc("/sites", c.handlers.CreateSite).Methods("POST")
	api.HandleFunc("/sites/{site}", c.handlers.GetSite).Methods("GET")
	api.HandleFunc("/sites/{site}", c.handlers.UpdateSite).Methods("PUT")
	api.HandleFunc("/sites/{site}", c.handlers.DeleteSite).Methods("DELETE")
	api.HandleFunc("/sites/{site}/refetch", c.handlers.RefetchSite).Methods("POST")

	api.HandleFunc("/phenology/recompute", c.handlers.RecomputePhenology).Methods("POST")

	api.HandleFunc("/health/storage", c.handlers.GetStorageHealth).Methods("GET")

	return router
}

// loggingMiddleware logs all requests
func (c *Controller) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		c.logger.Infof("%s %s %s %v", r.Method, r.RequestURI, r.RemoteAddr, time.Since(start))
	})
}

// corsMiddleware adds CORS headers
func (c *Controller) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates the bearer token
func (c *Controller) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expected := "Bearer " + c.managementConfig.AuthToken
		got := r.Header.Get("Authorization")

		if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1 {
			next.ServeHTTP(w, r)
			return
		}

		c.logger.Debugf("Auth failed for %s", r.URL.Path)
		http.Error(w, "Authentication required", http.StatusUnauthorized)
	})
}
