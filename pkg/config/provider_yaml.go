package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		Sites       []SiteYAML       `yaml:"sites"`
		Storage     StorageYAML      `yaml:"storage,omitempty"`
		Controllers []ControllerYAML `yaml:"controllers,omitempty"`
	}

	err = yaml.Unmarshal(cfgFile, &yamlConfig)
	if err != nil {
		return nil, err
	}

	// Convert to our internal format
	config := &ConfigData{
		Sites:       make([]SiteData, len(yamlConfig.Sites)),
		Controllers: make([]ControllerData, len(yamlConfig.Controllers)),
	}

	for i, site := range yamlConfig.Sites {
		config.Sites[i] = SiteData{
			Name:          site.Name,
			Type:          site.Type,
			Latitude:      site.Latitude,
			Longitude:     site.Longitude,
			Product:       site.Product,
			Bands:         site.Bands,
			KmAboveBelow:  site.KmAboveBelow,
			KmLeftRight:   site.KmLeftRight,
			FetchTime:     site.FetchTime,
			BackfillYears: site.BackfillYears,
			ROI:           site.ROI,
			PollInterval:  site.PollInterval,
			Hostname:      site.Hostname,
			Port:          site.Port,
		}
		if site.Phenology != nil {
			config.Sites[i].Phenology = &PhenologyData{
				Window:           site.Phenology.Window,
				PolyOrder:        site.Phenology.PolyOrder,
				Thresholds:       site.Phenology.Thresholds,
				MaxGapComposites: site.Phenology.MaxGapComposites,
				MinAmplitude:     site.Phenology.MinAmplitude,
				MaxQCRank:        site.Phenology.MaxQCRank,
				MinGoodFraction:  site.Phenology.MinGoodFraction,
				Workers:          site.Phenology.Workers,
			}
		}
	}

	config.Storage = StorageData{}
	if yamlConfig.Storage.TimescaleDB != nil {
		config.Storage.TimescaleDB = &TimescaleDBData{
			ConnectionString: yamlConfig.Storage.TimescaleDB.ConnectionString,
		}
	}
	if yamlConfig.Storage.Stream != nil {
		config.Storage.Stream = &StreamData{
			Cert:         yamlConfig.Storage.Stream.Cert,
			Key:          yamlConfig.Storage.Stream.Key,
			ListenAddr:   yamlConfig.Storage.Stream.ListenAddr,
			Port:         yamlConfig.Storage.Stream.Port,
			PullFromSite: yamlConfig.Storage.Stream.PullFromSite,
		}
	}

	for i, controller := range yamlConfig.Controllers {
		config.Controllers[i] = ControllerData{
			Type: controller.Type,
		}

		if controller.RESTServer != nil {
			config.Controllers[i].RESTServer = &RESTServerData{
				Cert:        controller.RESTServer.Cert,
				Key:         controller.RESTServer.Key,
				Port:        controller.RESTServer.Port,
				ListenAddr:  controller.RESTServer.ListenAddr,
				PageTitle:   controller.RESTServer.PageTitle,
				DefaultSite: controller.RESTServer.DefaultSite,
				AboutHTML:   controller.RESTServer.AboutHTML,
			}
		}

		if controller.PhenoCache != nil {
			config.Controllers[i].PhenoCache = &PhenoCacheData{
				Interval:         controller.PhenoCache.Interval,
				Workers:          controller.PhenoCache.Workers,
				Window:           controller.PhenoCache.Window,
				PolyOrder:        controller.PhenoCache.PolyOrder,
				Thresholds:       controller.PhenoCache.Thresholds,
				MaxGapComposites: controller.PhenoCache.MaxGapComposites,
				MinAmplitude:     controller.PhenoCache.MinAmplitude,
				MaxQCRank:        controller.PhenoCache.MaxQCRank,
				MinGoodFraction:  controller.PhenoCache.MinGoodFraction,
			}
		}

		if controller.ManagementAPI != nil {
			config.Controllers[i].ManagementAPI = &ManagementAPIData{
				Cert:       controller.ManagementAPI.Cert,
				Key:        controller.ManagementAPI.Key,
				Port:       controller.ManagementAPI.Port,
				ListenAddr: controller.ManagementAPI.ListenAddr,
				AuthToken:  controller.ManagementAPI.AuthToken,
				EnableCORS: controller.ManagementAPI.EnableCORS,
			}
		}
	}

	y.config = config
	return config, nil
}

// GetSites returns site configurations
func (y *YAMLProvider) GetSites() ([]SiteData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return y.config.Sites, nil
}

// GetSite returns one site configuration by name
func (y *YAMLProvider) GetSite(name string) (*SiteData, error) {
	sites, err := y.GetSites()
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

// GetStorageConfig returns storage configuration
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Storage, nil
}

// GetControllers returns controller configurations
func (y *YAMLProvider) GetControllers() ([]ControllerData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return y.config.Controllers, nil
}

// GetController returns one controller configuration by type
func (y *YAMLProvider) GetController(controllerType string) (*ControllerData, error) {
	controllers, err := y.GetControllers()
	if err != nil {
		return nil, err
	}
	for i := range controllers {
		if controllers[i].Type == controllerType {
			return &controllers[i], nil
		}
	}
	return nil, fmt.Errorf("controller %s not found", controllerType)
}

// errYAMLReadOnly is returned by every mutation method; YAML configurations
// are edited on disk, not through the API.
func errYAMLReadOnly() error {
	return fmt.Errorf("YAML configuration is read-only; convert to SQLite to manage it through the API")
}

func (y *YAMLProvider) AddSite(site *SiteData) error                 { return errYAMLReadOnly() }
func (y *YAMLProvider) UpdateSite(name string, site *SiteData) error { return errYAMLReadOnly() }
func (y *YAMLProvider) DeleteSite(name string) error                 { return errYAMLReadOnly() }

func (y *YAMLProvider) AddStorageConfig(storageType string, cfg interface{}) error {
	return errYAMLReadOnly()
}
func (y *YAMLProvider) UpdateStorageConfig(storageType string, cfg interface{}) error {
	return errYAMLReadOnly()
}
func (y *YAMLProvider) DeleteStorageConfig(storageType string) error { return errYAMLReadOnly() }

func (y *YAMLProvider) AddController(controller *ControllerData) error { return errYAMLReadOnly() }
func (y *YAMLProvider) UpdateController(controllerType string, controller *ControllerData) error {
	return errYAMLReadOnly()
}
func (y *YAMLProvider) DeleteController(controllerType string) error { return errYAMLReadOnly() }

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with proper YAML tags for parsing the on-disk format
type SiteYAML struct {
	Name          string         `yaml:"name"`
	Type          string         `yaml:"type,omitempty"`
	Latitude      float64        `yaml:"latitude"`
	Longitude     float64        `yaml:"longitude"`
	Product       string         `yaml:"product,omitempty"`
	Bands         []string       `yaml:"bands,omitempty"`
	KmAboveBelow  int            `yaml:"km-above-below,omitempty"`
	KmLeftRight   int            `yaml:"km-left-right,omitempty"`
	FetchTime     string         `yaml:"fetch-time,omitempty"`
	BackfillYears int            `yaml:"backfill-years,omitempty"`
	ROI           string         `yaml:"roi,omitempty"`
	PollInterval  string         `yaml:"poll-interval,omitempty"`
	Hostname      string         `yaml:"hostname,omitempty"`
	Port          string         `yaml:"port,omitempty"`
	Phenology     *PhenologyYAML `yaml:"phenology,omitempty"`
}

type PhenologyYAML struct {
	Window           int       `yaml:"window,omitempty"`
	PolyOrder        int       `yaml:"poly-order,omitempty"`
	Thresholds       []float64 `yaml:"thresholds,omitempty"`
	MaxGapComposites int       `yaml:"max-gap-composites,omitempty"`
	MinAmplitude     float64   `yaml:"min-amplitude,omitempty"`
	MaxQCRank        int       `yaml:"max-qc-rank,omitempty"`
	MinGoodFraction  float64   `yaml:"min-good-fraction,omitempty"`
	Workers          int       `yaml:"workers,omitempty"`
}

type StorageYAML struct {
	TimescaleDB *TimescaleDBYAML `yaml:"timescaledb,omitempty"`
	Stream      *StreamYAML      `yaml:"stream,omitempty"`
}

type TimescaleDBYAML struct {
	ConnectionString string `yaml:"connection-string"`
}

type StreamYAML struct {
	Cert         string `yaml:"cert,omitempty"`
	Key          string `yaml:"key,omitempty"`
	ListenAddr   string `yaml:"listen-addr,omitempty"`
	Port         int    `yaml:"port,omitempty"`
	PullFromSite string `yaml:"pull-from-site,omitempty"`
}

type ControllerYAML struct {
	Type          string             `yaml:"type,omitempty"`
	RESTServer    *RESTServerYAML    `yaml:"rest,omitempty"`
	PhenoCache    *PhenoCacheYAML    `yaml:"phenocache,omitempty"`
	ManagementAPI *ManagementAPIYAML `yaml:"management,omitempty"`
}

type RESTServerYAML struct {
	Cert        string `yaml:"cert,omitempty"`
	Key         string `yaml:"key,omitempty"`
	Port        int    `yaml:"port,omitempty"`
	ListenAddr  string `yaml:"listen-addr,omitempty"`
	PageTitle   string `yaml:"page-title,omitempty"`
	DefaultSite string `yaml:"default-site,omitempty"`
	AboutHTML   string `yaml:"about-html,omitempty"`
}

type PhenoCacheYAML struct {
	Interval string `yaml:"interval,omitempty"`
	Workers  int    `yaml:"workers,omitempty"`

	Window           int       `yaml:"window,omitempty"`
	PolyOrder        int       `yaml:"poly-order,omitempty"`
	Thresholds       []float64 `yaml:"thresholds,omitempty"`
	MaxGapComposites int       `yaml:"max-gap-composites,omitempty"`
	MinAmplitude     float64   `yaml:"min-amplitude,omitempty"`
	MaxQCRank        int       `yaml:"max-qc-rank,omitempty"`
	MinGoodFraction  float64   `yaml:"min-good-fraction,omitempty"`
}

type ManagementAPIYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
	AuthToken  string `yaml:"auth-token,omitempty"`
	EnableCORS bool   `yaml:"enable-cors,omitempty"`
}
