package management

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/khufkens/greenwave/internal/constants"
	"github.com/khufkens/greenwave/internal/controllers/phenocache"
	"github.com/khufkens/greenwave/internal/storage"
	"github.com/khufkens/greenwave/pkg/config"
)

// Handlers contains the HTTP handlers for the management API
type Handlers struct {
	controller *Controller
}

// NewHandlers creates a new Handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
	}
}

// sendJSON sends a JSON response
func (h *Handlers) sendJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// sendJSONWithStatus sends a JSON response with a specific status code
func (h *Handlers) sendJSONWithStatus(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response in JSON format
func (h *Handlers) sendError(w http.ResponseWriter, statusCode int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := map[string]interface{}{
		"error":     message,
		"status":    statusCode,
		"timestamp": time.Now().Unix(),
	}

	if err != nil {
		errorResponse["details"] = err.Error()
	}

	json.NewEncoder(w).Encode(errorResponse)
}

// GetStatus reports uptime, version, and storage backend health
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, map[string]interface{}{
		"status":         "ok",
		"version":        constants.Version,
		"uptime_seconds": int64(time.Since(h.controller.startedAt).Seconds()),
		"timestamp":      time.Now().Unix(),
		"storage_health": storage.GlobalHealthManager.GetAllHealth(),
	})
}

// GetConfig returns the current configuration
func (h *Handlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	configData, err := h.controller.configProvider.LoadConfig()
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to load configuration", err)
		return
	}

	h.sendJSON(w, map[string]interface{}{
		"config":           configData,
		"read_only":        h.controller.configProvider.IsReadOnly(),
		"site_count":       len(configData.Sites),
		"controller_count": len(configData.Controllers),
		"timestamp":        time.Now().Unix(),
	})
}

// ReloadConfig re-reads configuration and reconciles running sources
func (h *Handlers) ReloadConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.app.ReloadConfiguration(r.Context()); err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to reload configuration", err)
		return
	}

	h.sendJSON(w, map[string]interface{}{
		"success": true,
		"message": "Configuration reloaded",
	})
}

// GetSites returns all configured sites
func (h *Handlers) GetSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.controller.configProvider.GetSites()
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to load sites", err)
		return
	}

	h.sendJSON(w, sites)
}

// GetSite returns one configured site
func (h *Handlers) GetSite(w http.ResponseWriter, r *http.Request) {
	site, err := h.controller.configProvider.GetSite(mux.Vars(r)["site"])
	if err != nil {
		h.sendError(w, http.StatusNotFound, "Site not found", err)
		return
	}

	h.sendJSON(w, site)
}

// CreateSite adds a new site to the configuration and starts its source
func (h *Handlers) CreateSite(w http.ResponseWriter, r *http.Request) {
	if h.controller.configProvider.IsReadOnly() {
		h.sendError(w, http.StatusForbidden, "Configuration backend is read-only", nil)
		return
	}

	var site config.SiteData
	if err := json.NewDecoder(r.Body).Decode(&site); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid JSON payload", err)
		return
	}

	if err := site.Validate(); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid site configuration", err)
		return
	}

	if err := h.controller.configProvider.AddSite(&site); err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to save site", err)
		return
	}

	if err := h.controller.app.AddSource(site.Name); err != nil {
		h.controller.logger.Errorf("site %s saved but source failed to start: %v", site.Name, err)
		h.sendJSONWithStatus(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"warning": "site saved but source failed to start: " + err.Error(),
			"site":    site.Name,
		})
		return
	}

	h.sendJSONWithStatus(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"site":    site.Name,
	})
}

// UpdateSite modifies an existing site and restarts its source
func (h *Handlers) UpdateSite(w http.ResponseWriter, r *http.Request) {
	if h.controller.configProvider.IsReadOnly() {
		h.sendError(w, http.StatusForbidden, "Configuration backend is read-only", nil)
		return
	}

	name := mux.Vars(r)["site"]

	var site config.SiteData
	if err := json.NewDecoder(r.Body).Decode(&site); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid JSON payload", err)
		return
	}
	if site.Name == "" {
		site.Name = name
	}

	if err := site.Validate(); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid site configuration", err)
		return
	}

	if err := h.controller.configProvider.UpdateSite(name, &site); err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to update site", err)
		return
	}

	// Restart the source so the new settings take effect.
	if err := h.controller.app.RemoveSource(name); err != nil {
		h.controller.logger.Warnf("could not stop source %s for restart: %v", name, err)
	}
	if err := h.controller.app.AddSource(site.Name); err != nil {
		h.controller.logger.Errorf("site %s updated but source failed to restart: %v", site.Name, err)
	}

	h.sendJSON(w, map[string]interface{}{
		"success": true,
		"site":    site.Name,
	})
}

// DeleteSite removes a site from the configuration and stops its source
func (h *Handlers) DeleteSite(w http.ResponseWriter, r *http.Request) {
	if h.controller.configProvider.IsReadOnly() {
		h.sendError(w, http.StatusForbidden, "Configuration backend is read-only", nil)
		return
	}

	name := mux.Vars(r)["site"]

	if err := h.controller.configProvider.DeleteSite(name); err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to delete site", err)
		return
	}

	if err := h.controller.app.RemoveSource(name); err != nil {
		h.controller.logger.Warnf("site %s deleted but source could not be stopped: %v", name, err)
	}

	h.sendJSON(w, map[string]interface{}{
		"success": true,
		"site":    name,
	})
}

// RefetchSite triggers an out-of-schedule fetch run for one site
func (h *Handlers) RefetchSite(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["site"]

	if err := h.controller.app.RefetchSite(name); err != nil {
		h.sendError(w, http.StatusBadRequest, "Refetch failed", err)
		return
	}

	h.sendJSONWithStatus(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"site":    name,
		"message": "Fetch run started",
	})
}

// RecomputePhenology asks the phenocache controller to recompute season
// metrics outside its schedule
func (h *Handlers) RecomputePhenology(w http.ResponseWriter, r *http.Request) {
	if !phenocache.RequestRefresh() {
		h.sendError(w, http.StatusServiceUnavailable, "No phenocache controller is running", nil)
		return
	}

	h.sendJSONWithStatus(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"message": "Phenology recompute started",
	})
}

// GetStorageHealth returns the latest health report per storage backend
func (h *Handlers) GetStorageHealth(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, storage.GlobalHealthManager.GetAllHealth())
}
