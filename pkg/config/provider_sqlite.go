package config

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	sites, err := s.GetSites()
	if err != nil {
		return nil, fmt.Errorf("failed to load sites: %w", err)
	}
	config.Sites = sites

	storage, err := s.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	config.Storage = *storage

	controllers, err := s.GetControllers()
	if err != nil {
		return nil, fmt.Errorf("failed to load controllers: %w", err)
	}
	config.Controllers = controllers

	return config, nil
}

// GetSites returns site configurations from the database
func (s *SQLiteProvider) GetSites() ([]SiteData, error) {
	query := `
		SELECT name, type, latitude, longitude, product, bands,
		       km_above_below, km_left_right, fetch_time, backfill_years,
		       roi, poll_interval, hostname, port,
		       pheno_window, pheno_poly_order, pheno_thresholds,
		       pheno_max_gap, pheno_min_amplitude, pheno_max_qc_rank,
		       pheno_min_good_fraction, pheno_workers
		FROM sites
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
		ORDER BY name
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	var sites []SiteData
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site row: %w", err)
		}
		sites = append(sites, *site)
	}

	return sites, rows.Err()
}

// GetSite retrieves a specific site by name
func (s *SQLiteProvider) GetSite(name string) (*SiteData, error) {
	sites, err := s.GetSites()
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

// scanSite hydrates one SiteData from a sites row.
func scanSite(rows *sql.Rows) (*SiteData, error) {
	var site SiteData
	var product, bands, fetchTime, roi, pollInterval, hostname, port sql.NullString
	var kmAbove, kmLeft, backfillYears sql.NullInt64
	var phWindow, phPolyOrder, phMaxGap, phMaxQCRank, phWorkers sql.NullInt64
	var phThresholds sql.NullString
	var phMinAmplitude, phMinGoodFraction sql.NullFloat64

	err := rows.Scan(
		&site.Name, &site.Type, &site.Latitude, &site.Longitude,
		&product, &bands, &kmAbove, &kmLeft, &fetchTime, &backfillYears,
		&roi, &pollInterval, &hostname, &port,
		&phWindow, &phPolyOrder, &phThresholds,
		&phMaxGap, &phMinAmplitude, &phMaxQCRank,
		&phMinGoodFraction, &phWorkers,
	)
	if err != nil {
		return nil, err
	}

	site.Product = product.String
	site.FetchTime = fetchTime.String
	site.ROI = roi.String
	site.PollInterval = pollInterval.String
	site.Hostname = hostname.String
	site.Port = port.String
	if bands.Valid && bands.String != "" {
		site.Bands = strings.Split(bands.String, ",")
	}
	if kmAbove.Valid {
		site.KmAboveBelow = int(kmAbove.Int64)
	}
	if kmLeft.Valid {
		site.KmLeftRight = int(kmLeft.Int64)
	}
	if backfillYears.Valid {
		site.BackfillYears = int(backfillYears.Int64)
	}

	// A non-NULL window marks the presence of per-site overrides.
	if phWindow.Valid {
		thresholds, err := splitThresholds(phThresholds.String)
		if err != nil {
			return nil, err
		}
		site.Phenology = &PhenologyData{
			Window:           int(phWindow.Int64),
			PolyOrder:        int(phPolyOrder.Int64),
			Thresholds:       thresholds,
			MaxGapComposites: int(phMaxGap.Int64),
			MinAmplitude:     phMinAmplitude.Float64,
			MaxQCRank:        int(phMaxQCRank.Int64),
			MinGoodFraction:  phMinGoodFraction.Float64,
			Workers:          int(phWorkers.Int64),
		}
	}

	return &site, nil
}

// GetStorageConfig returns storage configuration from the database
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	query := `
		SELECT backend_type, enabled,
		       timescale_connection_string,
		       stream_cert, stream_key, stream_listen_addr, stream_port, stream_pull_from_site
		FROM storage_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default') AND enabled = 1
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query storage configs: %w", err)
	}
	defer rows.Close()

	storage := &StorageData{}

	for rows.Next() {
		var backendType string
		var enabled bool
		var timescaleConnectionString sql.NullString
		var streamCert, streamKey, streamListenAddr, streamPullFromSite sql.NullString
		var streamPort sql.NullInt64

		err := rows.Scan(
			&backendType, &enabled,
			&timescaleConnectionString,
			&streamCert, &streamKey, &streamListenAddr, &streamPort, &streamPullFromSite,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan storage config row: %w", err)
		}

		switch backendType {
		case "timescaledb":
			if timescaleConnectionString.Valid {
				storage.TimescaleDB = &TimescaleDBData{
					ConnectionString: timescaleConnectionString.String,
				}
			}
		case "stream":
			if streamPort.Valid {
				storage.Stream = &StreamData{
					Cert:         streamCert.String,
					Key:          streamKey.String,
					ListenAddr:   streamListenAddr.String,
					Port:         int(streamPort.Int64),
					PullFromSite: streamPullFromSite.String,
				}
			}
		}
	}

	return storage, rows.Err()
}

// GetControllers returns controller configurations from the database
func (s *SQLiteProvider) GetControllers() ([]ControllerData, error) {
	query := `
		SELECT controller_type, enabled,
		       rest_cert, rest_key, rest_port, rest_listen_addr,
		       rest_page_title, rest_default_site, rest_about_html,
		       cache_interval, cache_workers, cache_window, cache_poly_order,
		       cache_thresholds, cache_max_gap, cache_min_amplitude,
		       cache_max_qc_rank, cache_min_good_fraction,
		       management_cert, management_key, management_port, management_listen_addr,
		       management_auth_token, management_enable_cors
		FROM controller_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default') AND enabled = 1
		ORDER BY controller_type
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query controller configs: %w", err)
	}
	defer rows.Close()

	var controllers []ControllerData

	for rows.Next() {
		var controllerType string
		var enabled bool
		var restCert, restKey, restListenAddr, restPageTitle, restDefaultSite, restAboutHTML sql.NullString
		var restPort sql.NullInt64
		var cacheInterval, cacheThresholds sql.NullString
		var cacheWorkers, cacheWindow, cachePolyOrder, cacheMaxGap, cacheMaxQCRank sql.NullInt64
		var cacheMinAmplitude, cacheMinGoodFraction sql.NullFloat64
		var mgmtCert, mgmtKey, mgmtListenAddr, mgmtAuthToken sql.NullString
		var mgmtPort sql.NullInt64
		var mgmtEnableCORS sql.NullBool

		err := rows.Scan(
			&controllerType, &enabled,
			&restCert, &restKey, &restPort, &restListenAddr,
			&restPageTitle, &restDefaultSite, &restAboutHTML,
			&cacheInterval, &cacheWorkers, &cacheWindow, &cachePolyOrder,
			&cacheThresholds, &cacheMaxGap, &cacheMinAmplitude,
			&cacheMaxQCRank, &cacheMinGoodFraction,
			&mgmtCert, &mgmtKey, &mgmtPort, &mgmtListenAddr,
			&mgmtAuthToken, &mgmtEnableCORS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan controller config row: %w", err)
		}

		controller := ControllerData{
			Type: controllerType,
		}

		switch controllerType {
		case "rest":
			controller.RESTServer = &RESTServerData{
				Cert:        restCert.String,
				Key:         restKey.String,
				Port:        int(restPort.Int64),
				ListenAddr:  restListenAddr.String,
				PageTitle:   restPageTitle.String,
				DefaultSite: restDefaultSite.String,
				AboutHTML:   restAboutHTML.String,
			}
		case "phenocache":
			thresholds, err := splitThresholds(cacheThresholds.String)
			if err != nil {
				return nil, err
			}
			controller.PhenoCache = &PhenoCacheData{
				Interval:         cacheInterval.String,
				Workers:          int(cacheWorkers.Int64),
				Window:           int(cacheWindow.Int64),
				PolyOrder:        int(cachePolyOrder.Int64),
				Thresholds:       thresholds,
				MaxGapComposites: int(cacheMaxGap.Int64),
				MinAmplitude:     cacheMinAmplitude.Float64,
				MaxQCRank:        int(cacheMaxQCRank.Int64),
				MinGoodFraction:  cacheMinGoodFraction.Float64,
			}
		case "management":
			if mgmtPort.Valid {
				controller.ManagementAPI = &ManagementAPIData{
					Cert:       mgmtCert.String,
					Key:        mgmtKey.String,
					Port:       int(mgmtPort.Int64),
					ListenAddr: mgmtListenAddr.String,
					AuthToken:  mgmtAuthToken.String,
					EnableCORS: mgmtEnableCORS.Bool,
				}
			}
		}

		controllers = append(controllers, controller)
	}

	return controllers, rows.Err()
}

// GetController retrieves a specific controller by type
func (s *SQLiteProvider) GetController(controllerType string) (*ControllerData, error) {
	controllers, err := s.GetControllers()
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

// IsReadOnly returns false since SQLite configuration can be modified
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying handle for providers layered on this one.
func (s *SQLiteProvider) DB() *sql.DB {
	return s.db
}

// Write methods for configuration management

// SaveConfig saves complete configuration to the database
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getOrCreateConfigID(tx)
	if err != nil {
		return fmt.Errorf("failed to get config ID: %w", err)
	}
	if _, err := tx.Exec("UPDATE configs SET updated_at = datetime('now') WHERE id = ?", configID); err != nil {
		return fmt.Errorf("failed to touch config: %w", err)
	}

	if err := s.clearExistingConfig(tx, configID); err != nil {
		return fmt.Errorf("failed to clear existing config: %w", err)
	}

	for _, site := range configData.Sites {
		if err := s.insertSite(tx, configID, &site); err != nil {
			return fmt.Errorf("failed to insert site %s: %w", site.Name, err)
		}
	}

	if err := s.insertStorageConfigs(tx, configID, &configData.Storage); err != nil {
		return fmt.Errorf("failed to insert storage configs: %w", err)
	}

	for _, controller := range configData.Controllers {
		if err := s.insertController(tx, configID, &controller); err != nil {
			return fmt.Errorf("failed to insert controller %s: %w", controller.Type, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteProvider) insertConfig(tx *sql.Tx, name string) (int64, error) {
	query := `INSERT INTO configs (name, created_at, updated_at) VALUES (?, datetime('now'), datetime('now'))`
	result, err := tx.Exec(query, name)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteProvider) clearExistingConfig(tx *sql.Tx, configID int64) error {
	queries := []string{
		"DELETE FROM sites WHERE config_id = ?",
		"DELETE FROM storage_configs WHERE config_id = ?",
		"DELETE FROM controller_configs WHERE config_id = ?",
	}

	for _, query := range queries {
		if _, err := tx.Exec(query, configID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteProvider) insertSite(tx *sql.Tx, configID int64, site *SiteData) error {
	query := `
		INSERT INTO sites (
			config_id, name, type, latitude, longitude, product, bands,
			km_above_below, km_left_right, fetch_time, backfill_years,
			roi, poll_interval, hostname, port,
			pheno_window, pheno_poly_order, pheno_thresholds,
			pheno_max_gap, pheno_min_amplitude, pheno_max_qc_rank,
			pheno_min_good_fraction, pheno_workers
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var phWindow, phPolyOrder, phMaxGap, phMaxQCRank, phWorkers sql.NullInt64
	var phThresholds sql.NullString
	var phMinAmplitude, phMinGoodFraction sql.NullFloat64
	if p := site.Phenology; p != nil {
		phWindow = sql.NullInt64{Int64: int64(p.Window), Valid: true}
		phPolyOrder = sql.NullInt64{Int64: int64(p.PolyOrder), Valid: true}
		phThresholds = sql.NullString{String: joinThresholds(p.Thresholds), Valid: true}
		phMaxGap = sql.NullInt64{Int64: int64(p.MaxGapComposites), Valid: true}
		phMinAmplitude = sql.NullFloat64{Float64: p.MinAmplitude, Valid: true}
		phMaxQCRank = sql.NullInt64{Int64: int64(p.MaxQCRank), Valid: true}
		phMinGoodFraction = sql.NullFloat64{Float64: p.MinGoodFraction, Valid: true}
		phWorkers = sql.NullInt64{Int64: int64(p.Workers), Valid: true}
	}

	_, err := tx.Exec(query,
		configID, site.Name, site.Type, site.Latitude, site.Longitude,
		nullString(site.Product), nullString(strings.Join(site.Bands, ",")),
		site.KmAboveBelow, site.KmLeftRight,
		nullString(site.FetchTime), site.BackfillYears,
		nullString(site.ROI), nullString(site.PollInterval),
		nullString(site.Hostname), nullString(site.Port),
		phWindow, phPolyOrder, phThresholds,
		phMaxGap, phMinAmplitude, phMaxQCRank,
		phMinGoodFraction, phWorkers,
	)
	return err
}

func (s *SQLiteProvider) insertStorageConfigs(tx *sql.Tx, configID int64, storage *StorageData) error {
	if storage.TimescaleDB != nil {
		if err := s.insertTimescaleDBConfig(tx, configID, storage.TimescaleDB); err != nil {
			return err
		}
	}

	if storage.Stream != nil {
		if err := s.insertStreamConfig(tx, configID, storage.Stream); err != nil {
			return err
		}
	}

	return nil
}

func (s *SQLiteProvider) insertTimescaleDBConfig(tx *sql.Tx, configID int64, timescale *TimescaleDBData) error {
	query := `
		INSERT INTO storage_configs (
			config_id, backend_type, enabled, timescale_connection_string
		) VALUES (?, 'timescaledb', 1, ?)
	`
	_, err := tx.Exec(query, configID, timescale.ConnectionString)
	return err
}

func (s *SQLiteProvider) insertStreamConfig(tx *sql.Tx, configID int64, stream *StreamData) error {
	query := `
		INSERT INTO storage_configs (
			config_id, backend_type, enabled,
			stream_cert, stream_key, stream_listen_addr, stream_port, stream_pull_from_site
		) VALUES (?, 'stream', 1, ?, ?, ?, ?, ?)
	`
	_, err := tx.Exec(query, configID,
		stream.Cert, stream.Key, stream.ListenAddr, stream.Port, stream.PullFromSite,
	)
	return err
}

func (s *SQLiteProvider) insertController(tx *sql.Tx, configID int64, controller *ControllerData) error {
	query := `
		INSERT INTO controller_configs (
			config_id, controller_type, enabled,
			rest_cert, rest_key, rest_port, rest_listen_addr,
			rest_page_title, rest_default_site, rest_about_html,
			cache_interval, cache_workers, cache_window, cache_poly_order,
			cache_thresholds, cache_max_gap, cache_min_amplitude,
			cache_max_qc_rank, cache_min_good_fraction,
			management_cert, management_key, management_port, management_listen_addr,
			management_auth_token, management_enable_cors
		) VALUES (?, ?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var restCert, restKey, restListenAddr, restPageTitle, restDefaultSite, restAboutHTML sql.NullString
	var restPort sql.NullInt64
	var cacheInterval, cacheThresholds sql.NullString
	var cacheWorkers, cacheWindow, cachePolyOrder, cacheMaxGap, cacheMaxQCRank sql.NullInt64
	var cacheMinAmplitude, cacheMinGoodFraction sql.NullFloat64
	var mgmtCert, mgmtKey, mgmtListenAddr, mgmtAuthToken sql.NullString
	var mgmtPort sql.NullInt64
	var mgmtEnableCORS sql.NullBool

	if controller.RESTServer != nil {
		restCert = nullString(controller.RESTServer.Cert)
		restKey = nullString(controller.RESTServer.Key)
		restPort = sql.NullInt64{Int64: int64(controller.RESTServer.Port), Valid: controller.RESTServer.Port != 0}
		restListenAddr = nullString(controller.RESTServer.ListenAddr)
		restPageTitle = nullString(controller.RESTServer.PageTitle)
		restDefaultSite = nullString(controller.RESTServer.DefaultSite)
		restAboutHTML = nullString(controller.RESTServer.AboutHTML)
	}

	if c := controller.PhenoCache; c != nil {
		cacheInterval = nullString(c.Interval)
		cacheWorkers = sql.NullInt64{Int64: int64(c.Workers), Valid: c.Workers != 0}
		cacheWindow = sql.NullInt64{Int64: int64(c.Window), Valid: c.Window != 0}
		cachePolyOrder = sql.NullInt64{Int64: int64(c.PolyOrder), Valid: c.PolyOrder != 0}
		cacheThresholds = nullString(joinThresholds(c.Thresholds))
		cacheMaxGap = sql.NullInt64{Int64: int64(c.MaxGapComposites), Valid: c.MaxGapComposites != 0}
		cacheMinAmplitude = sql.NullFloat64{Float64: c.MinAmplitude, Valid: c.MinAmplitude != 0}
		cacheMaxQCRank = sql.NullInt64{Int64: int64(c.MaxQCRank), Valid: c.MaxQCRank != 0}
		cacheMinGoodFraction = sql.NullFloat64{Float64: c.MinGoodFraction, Valid: c.MinGoodFraction != 0}
	}

	if controller.ManagementAPI != nil {
		mgmtCert = nullString(controller.ManagementAPI.Cert)
		mgmtKey = nullString(controller.ManagementAPI.Key)
		mgmtPort = sql.NullInt64{Int64: int64(controller.ManagementAPI.Port), Valid: controller.ManagementAPI.Port != 0}
		mgmtListenAddr = nullString(controller.ManagementAPI.ListenAddr)
		mgmtAuthToken = nullString(controller.ManagementAPI.AuthToken)
		mgmtEnableCORS = sql.NullBool{Bool: controller.ManagementAPI.EnableCORS, Valid: true}
	}

	_, err := tx.Exec(query, configID, controller.Type,
		restCert, restKey, restPort, restListenAddr,
		restPageTitle, restDefaultSite, restAboutHTML,
		cacheInterval, cacheWorkers, cacheWindow, cachePolyOrder,
		cacheThresholds, cacheMaxGap, cacheMinAmplitude,
		cacheMaxQCRank, cacheMinGoodFraction,
		mgmtCert, mgmtKey, mgmtPort, mgmtListenAddr,
		mgmtAuthToken, mgmtEnableCORS,
	)
	return err
}

// Individual site management methods

// AddSite adds a new site to the configuration
func (s *SQLiteProvider) AddSite(site *SiteData) error {
	if _, err := s.GetSite(site.Name); err == nil {
		return fmt.Errorf("site %s already exists", site.Name)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getOrCreateConfigID(tx)
	if err != nil {
		return fmt.Errorf("failed to get config ID: %w", err)
	}

	if err := s.insertSite(tx, configID, site); err != nil {
		return fmt.Errorf("failed to insert site: %w", err)
	}

	return tx.Commit()
}

// UpdateSite replaces an existing site's configuration
func (s *SQLiteProvider) UpdateSite(name string, site *SiteData) error {
	if _, err := s.GetSite(name); err != nil {
		return fmt.Errorf("site %s not found: %w", name, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getConfigID(tx)
	if err != nil {
		return fmt.Errorf("failed to get config ID: %w", err)
	}

	// Replace wholesale; per-column updates are not worth the bookkeeping
	// for a config-sized table.
	if _, err := tx.Exec("DELETE FROM sites WHERE config_id = ? AND name = ?", configID, name); err != nil {
		return fmt.Errorf("failed to delete existing site: %w", err)
	}
	if err := s.insertSite(tx, configID, site); err != nil {
		return fmt.Errorf("failed to insert updated site: %w", err)
	}

	return tx.Commit()
}

// DeleteSite removes a site from the configuration
func (s *SQLiteProvider) DeleteSite(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec("DELETE FROM sites WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete site: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("site %s not found", name)
	}

	return tx.Commit()
}

// Individual storage management methods

// AddStorageConfig adds a new storage configuration
func (s *SQLiteProvider) AddStorageConfig(storageType string, cfg interface{}) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getOrCreateConfigID(tx)
	if err != nil {
		return fmt.Errorf("failed to get config ID: %w", err)
	}

	var count int
	err = tx.QueryRow("SELECT COUNT(*) FROM storage_configs WHERE config_id = ? AND backend_type = ?",
		configID, storageType).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check existing storage config: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("storage config for %s already exists", storageType)
	}

	if err := s.insertStorageConfigByType(tx, configID, storageType, cfg); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateStorageConfig updates an existing storage configuration
func (s *SQLiteProvider) UpdateStorageConfig(storageType string, cfg interface{}) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getConfigID(tx)
	if err != nil {
		return fmt.Errorf("failed to get config ID: %w", err)
	}

	_, err = tx.Exec("DELETE FROM storage_configs WHERE config_id = ? AND backend_type = ?",
		configID, storageType)
	if err != nil {
		return fmt.Errorf("failed to delete existing storage config: %w", err)
	}

	if err := s.insertStorageConfigByType(tx, configID, storageType, cfg); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteProvider) insertStorageConfigByType(tx *sql.Tx, configID int64, storageType string, cfg interface{}) error {
	switch storageType {
	case "timescaledb":
		timescale, ok := cfg.(*TimescaleDBData)
		if !ok {
			return fmt.Errorf("invalid config type for TimescaleDB")
		}
		return s.insertTimescaleDBConfig(tx, configID, timescale)
	case "stream":
		stream, ok := cfg.(*StreamData)
		if !ok {
			return fmt.Errorf("invalid config type for stream")
		}
		return s.insertStreamConfig(tx, configID, stream)
	default:
		return fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// DeleteStorageConfig removes a storage configuration
func (s *SQLiteProvider) DeleteStorageConfig(storageType string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getConfigID(tx)
	if err != nil {
		return fmt.Errorf("failed to get config ID: %w", err)
	}

	result, err := tx.Exec("DELETE FROM storage_configs WHERE config_id = ? AND backend_type = ?",
		configID, storageType)
	if err != nil {
		return fmt.Errorf("failed to delete storage config: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("storage config for %s not found", storageType)
	}

	return tx.Commit()
}

// Individual controller management methods

// AddController adds a new controller to the configuration
func (s *SQLiteProvider) AddController(controller *ControllerData) error {
	if _, err := s.GetController(controller.Type); err == nil {
		return fmt.Errorf("controller %s already exists", controller.Type)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getOrCreateConfigID(tx)
	if err != nil {
		return fmt.Errorf("failed to get config ID: %w", err)
	}

	if err := s.insertController(tx, configID, controller); err != nil {
		return fmt.Errorf("failed to insert controller: %w", err)
	}

	return tx.Commit()
}

// UpdateController updates an existing controller
func (s *SQLiteProvider) UpdateController(controllerType string, controller *ControllerData) error {
	if _, err := s.GetController(controllerType); err != nil {
		return fmt.Errorf("controller %s not found: %w", controllerType, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getConfigID(tx)
	if err != nil {
		return fmt.Errorf("failed to get config ID: %w", err)
	}

	_, err = tx.Exec("DELETE FROM controller_configs WHERE config_id = ? AND controller_type = ?",
		configID, controllerType)
	if err != nil {
		return fmt.Errorf("failed to delete existing controller: %w", err)
	}

	if err := s.insertController(tx, configID, controller); err != nil {
		return fmt.Errorf("failed to insert updated controller: %w", err)
	}

	return tx.Commit()
}

// DeleteController removes a controller from the configuration
func (s *SQLiteProvider) DeleteController(controllerType string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getConfigID(tx)
	if err != nil {
		return fmt.Errorf("failed to get config ID: %w", err)
	}

	result, err := tx.Exec("DELETE FROM controller_configs WHERE config_id = ? AND controller_type = ?",
		configID, controllerType)
	if err != nil {
		return fmt.Errorf("failed to delete controller: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("controller %s not found", controllerType)
	}

	return tx.Commit()
}

// Helper methods

// getConfigID gets the existing config ID
func (s *SQLiteProvider) getConfigID(tx *sql.Tx) (int64, error) {
	var configID int64
	err := tx.QueryRow("SELECT id FROM configs ORDER BY id LIMIT 1").Scan(&configID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("no configuration found")
		}
		return 0, err
	}
	return configID, nil
}

// getOrCreateConfigID gets existing config ID or creates a new one
func (s *SQLiteProvider) getOrCreateConfigID(tx *sql.Tx) (int64, error) {
	configID, err := s.getConfigID(tx)
	if err != nil {
		configID, err = s.insertConfig(tx, "default")
		if err != nil {
			return 0, fmt.Errorf("failed to create default config: %w", err)
		}
	}
	return configID, nil
}

// Helper functions for handling nullable fields
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// joinThresholds encodes thresholds as a comma-separated column value.
func joinThresholds(thresholds []float64) string {
	parts := make([]string, len(thresholds))
	for i, t := range thresholds {
		parts[i] = strconv.FormatFloat(t, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func splitThresholds(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bad threshold %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}
