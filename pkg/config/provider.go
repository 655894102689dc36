package config

// Site types understood by the source manager.
const (
	SiteTypeORNL        = "ornl"
	SiteTypePhenoCam    = "phenocam"
	SiteTypeFieldStream = "fieldstream"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetSites() ([]SiteData, error)
	GetSite(name string) (*SiteData, error)
	GetStorageConfig() (*StorageData, error)
	GetControllers() ([]ControllerData, error)
	GetController(controllerType string) (*ControllerData, error)

	// Site management
	AddSite(site *SiteData) error
	UpdateSite(name string, site *SiteData) error
	DeleteSite(name string) error

	// Storage management
	AddStorageConfig(storageType string, cfg interface{}) error
	UpdateStorageConfig(storageType string, cfg interface{}) error
	DeleteStorageConfig(storageType string) error

	// Controller management
	AddController(controller *ControllerData) error
	UpdateController(controllerType string, controller *ControllerData) error
	DeleteController(controllerType string) error

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Sites       []SiteData       `json:"sites"`
	Storage     StorageData      `json:"storage,omitempty"`
	Controllers []ControllerData `json:"controllers,omitempty"`
}

// SiteData holds the configuration of one observation site. Which fields
// matter depends on Type: ornl sites describe a subset request against the
// archive, phenocam sites name a camera ROI, fieldstream sites point at a
// TCP host serving samples.
type SiteData struct {
	Name      string  `json:"name"`
	Type      string  `json:"type,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// Subset acquisition (ornl sites). BackfillYears bounds how far back the
	// first fetch reaches when the database holds nothing for the site.
	Product       string   `json:"product,omitempty"`
	Bands         []string `json:"bands,omitempty"`
	KmAboveBelow  int      `json:"km_above_below,omitempty"`
	KmLeftRight   int      `json:"km_left_right,omitempty"`
	FetchTime     string   `json:"fetch_time,omitempty"`
	BackfillYears int      `json:"backfill_years,omitempty"`

	// Camera time series (phenocam sites). PollInterval is a Go duration
	// string, e.g. "12h".
	ROI          string `json:"roi,omitempty"`
	PollInterval string `json:"poll_interval,omitempty"`

	// Live sample stream (fieldstream sites).
	Hostname string `json:"hostname,omitempty"`
	Port     string `json:"port,omitempty"`

	// Per-site pipeline overrides; nil means the built-in defaults.
	Phenology *PhenologyData `json:"phenology,omitempty"`
}

// PhenologyData holds per-site overrides for the season pipeline.
type PhenologyData struct {
	Window           int       `json:"window,omitempty"`
	PolyOrder        int       `json:"poly_order,omitempty"`
	Thresholds       []float64 `json:"thresholds,omitempty"`
	MaxGapComposites int       `json:"max_gap_composites,omitempty"`
	MinAmplitude     float64   `json:"min_amplitude,omitempty"`
	MaxQCRank        int       `json:"max_qc_rank,omitempty"`
	MinGoodFraction  float64   `json:"min_good_fraction,omitempty"`
	Workers          int       `json:"workers,omitempty"`
}

// StorageData holds the configuration for various storage backends
type StorageData struct {
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty"`
	Stream      *StreamData      `json:"stream,omitempty"`
}

// Storage backend configuration structs
type TimescaleDBData struct {
	ConnectionString string `json:"connection_string"`
}

// StreamData configures the TCP sample stream listener.
type StreamData struct {
	Cert         string `json:"cert,omitempty"`
	Key          string `json:"key,omitempty"`
	ListenAddr   string `json:"listen_addr,omitempty"`
	Port         int    `json:"port,omitempty"`
	PullFromSite string `json:"pull_from_site,omitempty"`
}

// ControllerData holds the configuration for various controller backends
type ControllerData struct {
	Type          string             `json:"type,omitempty"`
	RESTServer    *RESTServerData    `json:"rest,omitempty"`
	PhenoCache    *PhenoCacheData    `json:"phenocache,omitempty"`
	ManagementAPI *ManagementAPIData `json:"management,omitempty"`
}

// RESTServerData configures the public REST API and status page.
type RESTServerData struct {
	Cert        string `json:"cert,omitempty"`
	Key         string `json:"key,omitempty"`
	Port        int    `json:"port,omitempty"`
	ListenAddr  string `json:"listen_addr,omitempty"`
	PageTitle   string `json:"page_title,omitempty"`
	DefaultSite string `json:"default_site,omitempty"`
	AboutHTML   string `json:"about_html,omitempty"`
}

// PhenoCacheData configures the periodic season metric recompute. The
// pipeline fields set the process-wide defaults; SiteData.Phenology
// overrides them per site.
type PhenoCacheData struct {
	// Interval is a Go duration string, e.g. "6h".
	Interval string `json:"interval,omitempty"`
	Workers  int    `json:"workers,omitempty"`

	Window           int       `json:"window,omitempty"`
	PolyOrder        int       `json:"poly_order,omitempty"`
	Thresholds       []float64 `json:"thresholds,omitempty"`
	MaxGapComposites int       `json:"max_gap_composites,omitempty"`
	MinAmplitude     float64   `json:"min_amplitude,omitempty"`
	MaxQCRank        int       `json:"max_qc_rank,omitempty"`
	MinGoodFraction  float64   `json:"min_good_fraction,omitempty"`
}

type ManagementAPIData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	Port       int    `json:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
	AuthToken  string `json:"auth_token,omitempty"`
	EnableCORS bool   `json:"enable_cors,omitempty"`
}
