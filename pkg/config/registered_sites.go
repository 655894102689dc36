package config

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RegisteredSiteData describes a field site that announced itself through
// the management API rather than being written into the static config. The
// source manager treats these as virtual fieldstream sites.
type RegisteredSiteData struct {
	SiteID    string   `json:"site_id"`
	SiteName  string   `json:"site_name"`
	Hostname  string   `json:"hostname"`
	Port      string   `json:"port"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Product   string   `json:"product,omitempty"`
	Bands     []string `json:"bands,omitempty"`

	RegisteredAt time.Time `json:"registered_at"`
	LastSeen     time.Time `json:"last_seen"`
}

// SiteRegistrar is implemented by providers that can track self-registered
// sites. The YAML provider does not.
type SiteRegistrar interface {
	RegisterSite(reg *RegisteredSiteData) (string, error)
	GetRegisteredSites() ([]RegisteredSiteData, error)
	GetRegisteredSite(siteID string) (*RegisteredSiteData, error)
	TouchRegisteredSite(siteID string) error
	DeleteRegisteredSite(siteID string) error
}

// RegisterSite registers a new field site or refreshes an existing one
func (s *SQLiteProvider) RegisterSite(reg *RegisteredSiteData) (string, error) {
	if reg.SiteID == "" {
		reg.SiteID = uuid.New().String()
	}

	query := `
		INSERT OR REPLACE INTO registered_sites (
			site_id, site_name, hostname, port, latitude, longitude,
			product, bands, last_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`

	_, err := s.db.Exec(query,
		reg.SiteID, reg.SiteName, reg.Hostname, reg.Port,
		reg.Latitude, reg.Longitude,
		nullString(reg.Product), nullString(strings.Join(reg.Bands, ",")),
	)
	if err != nil {
		return "", fmt.Errorf("failed to register site: %w", err)
	}

	return reg.SiteID, nil
}

// GetRegisteredSites returns all self-registered sites
func (s *SQLiteProvider) GetRegisteredSites() ([]RegisteredSiteData, error) {
	query := `
		SELECT site_id, site_name, hostname, port, latitude, longitude,
		       product, bands, registered_at, last_seen
		FROM registered_sites
		ORDER BY site_name
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query registered sites: %w", err)
	}
	defer rows.Close()

	var sites []RegisteredSiteData
	for rows.Next() {
		var site RegisteredSiteData
		var product, bands sql.NullString
		err := rows.Scan(
			&site.SiteID, &site.SiteName, &site.Hostname, &site.Port,
			&site.Latitude, &site.Longitude,
			&product, &bands, &site.RegisteredAt, &site.LastSeen,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registered site: %w", err)
		}
		site.Product = product.String
		if bands.Valid && bands.String != "" {
			site.Bands = strings.Split(bands.String, ",")
		}
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

// GetRegisteredSite retrieves a specific registered site by ID
func (s *SQLiteProvider) GetRegisteredSite(siteID string) (*RegisteredSiteData, error) {
	query := `
		SELECT site_id, site_name, hostname, port, latitude, longitude,
		       product, bands, registered_at, last_seen
		FROM registered_sites
		WHERE site_id = ?
	`

	var site RegisteredSiteData
	var product, bands sql.NullString
	err := s.db.QueryRow(query, siteID).Scan(
		&site.SiteID, &site.SiteName, &site.Hostname, &site.Port,
		&site.Latitude, &site.Longitude,
		&product, &bands, &site.RegisteredAt, &site.LastSeen,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("registered site not found: %s", siteID)
		}
		return nil, fmt.Errorf("failed to query registered site: %w", err)
	}
	site.Product = product.String
	if bands.Valid && bands.String != "" {
		site.Bands = strings.Split(bands.String, ",")
	}

	return &site, nil
}

// TouchRegisteredSite updates the last seen timestamp for a registered site
func (s *SQLiteProvider) TouchRegisteredSite(siteID string) error {
	result, err := s.db.Exec(
		"UPDATE registered_sites SET last_seen = CURRENT_TIMESTAMP WHERE site_id = ?", siteID)
	if err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("registered site not found: %s", siteID)
	}

	return nil
}

// DeleteRegisteredSite removes a registered site
func (s *SQLiteProvider) DeleteRegisteredSite(siteID string) error {
	result, err := s.db.Exec("DELETE FROM registered_sites WHERE site_id = ?", siteID)
	if err != nil {
		return fmt.Errorf("failed to delete registered site: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("registered site not found: %s", siteID)
	}

	return nil
}

// RegisteredSiteProvider wraps a ConfigProvider to surface self-registered
// field sites as virtual fieldstream sites alongside the configured ones.
type RegisteredSiteProvider struct {
	provider ConfigProvider
	db       *sql.DB
}

// NewRegisteredSiteProvider creates a provider that includes registered sites
func NewRegisteredSiteProvider(provider ConfigProvider, db *sql.DB) *RegisteredSiteProvider {
	return &RegisteredSiteProvider{
		provider: provider,
		db:       db,
	}
}

// GetSites returns both configured sites and registered sites as virtual sites
func (r *RegisteredSiteProvider) GetSites() ([]SiteData, error) {
	sites, err := r.provider.GetSites()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`
		SELECT site_name, hostname, port, latitude, longitude, product, bands
		FROM registered_sites
	`)
	if err != nil {
		// Table may not exist on older config databases.
		return sites, nil
	}
	defer rows.Close()

	for rows.Next() {
		var name, hostname, port string
		var lat, lon float64
		var product, bands sql.NullString

		if err := rows.Scan(&name, &hostname, &port, &lat, &lon, &product, &bands); err != nil {
			continue
		}

		site := SiteData{
			Name:      name,
			Type:      SiteTypeFieldStream,
			Latitude:  lat,
			Longitude: lon,
			Product:   product.String,
			Hostname:  hostname,
			Port:      port,
		}
		if bands.Valid && bands.String != "" {
			site.Bands = strings.Split(bands.String, ",")
		}
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

// GetSite retrieves a site by name, checking registered sites as well
func (r *RegisteredSiteProvider) GetSite(name string) (*SiteData, error) {
	site, err := r.provider.GetSite(name)
	if err == nil {
		return site, nil
	}

	sites, err := r.GetSites()
	if err != nil {
		return nil, err
	}
	for i := range sites {
		if sites[i].Name == name {
			return &sites[i], nil
		}
	}

	return nil, fmt.Errorf("site %s not found", name)
}

// LoadConfig delegates to wrapped provider and merges registered sites
func (r *RegisteredSiteProvider) LoadConfig() (*ConfigData, error) {
	config, err := r.provider.LoadConfig()
	if err != nil {
		return nil, err
	}

	sites, err := r.GetSites()
	if err != nil {
		return config, nil
	}
	config.Sites = sites

	return config, nil
}

// All modification methods delegate to the wrapped provider (registered
// sites are managed through the SiteRegistrar interface)

func (r *RegisteredSiteProvider) AddSite(site *SiteData) error {
	return r.provider.AddSite(site)
}

func (r *RegisteredSiteProvider) UpdateSite(name string, site *SiteData) error {
	return r.provider.UpdateSite(name, site)
}

func (r *RegisteredSiteProvider) DeleteSite(name string) error {
	return r.provider.DeleteSite(name)
}

func (r *RegisteredSiteProvider) GetStorageConfig() (*StorageData, error) {
	return r.provider.GetStorageConfig()
}

func (r *RegisteredSiteProvider) GetControllers() ([]ControllerData, error) {
	return r.provider.GetControllers()
}

func (r *RegisteredSiteProvider) GetController(controllerType string) (*ControllerData, error) {
	return r.provider.GetController(controllerType)
}

func (r *RegisteredSiteProvider) AddStorageConfig(storageType string, cfg interface{}) error {
	return r.provider.AddStorageConfig(storageType, cfg)
}

func (r *RegisteredSiteProvider) UpdateStorageConfig(storageType string, cfg interface{}) error {
	return r.provider.UpdateStorageConfig(storageType, cfg)
}

func (r *RegisteredSiteProvider) DeleteStorageConfig(storageType string) error {
	return r.provider.DeleteStorageConfig(storageType)
}

func (r *RegisteredSiteProvider) AddController(controller *ControllerData) error {
	return r.provider.AddController(controller)
}

func (r *RegisteredSiteProvider) UpdateController(controllerType string, controller *ControllerData) error {
	return r.provider.UpdateController(controllerType, controller)
}

func (r *RegisteredSiteProvider) DeleteController(controllerType string) error {
	return r.provider.DeleteController(controllerType)
}

func (r *RegisteredSiteProvider) IsReadOnly() bool {
	return r.provider.IsReadOnly()
}

func (r *RegisteredSiteProvider) Close() error {
	return r.provider.Close()
}
