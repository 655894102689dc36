// Command config-convert turns a YAML configuration file into a SQLite
// configuration database usable by the management API.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/khufkens/greenwave/pkg/config"
	"github.com/khufkens/greenwave/pkg/migrate"
	_ "modernc.org/sqlite"
)

func main() {
	var (
		yamlFile      = flag.String("yaml", "", "Path to YAML configuration file (required)")
		sqliteFile    = flag.String("sqlite", "", "Path to SQLite database file (required)")
		migrationsDir = flag.String("migrations-dir", "", "Path to migrations directory (default: auto-detect)")
		force         = flag.Bool("force", false, "Overwrite existing SQLite database")
		dryRun        = flag.Bool("dry-run", false, "Show what would be done without executing")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *migrationsDir == "" {
		*migrationsDir = detectMigrationsDir()
	}

	if _, err := os.Stat(*yamlFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: YAML file does not exist: %s\n", *yamlFile)
		os.Exit(1)
	}

	if _, err := os.Stat(*migrationsDir); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: Migrations directory does not exist: %s\n", *migrationsDir)
		fmt.Fprintf(os.Stderr, "Use -migrations-dir to specify the correct path\n")
		os.Exit(1)
	}

	if _, err := os.Stat(*sqliteFile); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: SQLite file already exists: %s\n", *sqliteFile)
		fmt.Fprintf(os.Stderr, "Use -force to overwrite or choose a different filename\n")
		os.Exit(1)
	}

	fmt.Printf("Converting YAML configuration to SQLite...\n")
	fmt.Printf("  Source: %s\n", *yamlFile)
	fmt.Printf("  Target: %s\n", *sqliteFile)
	fmt.Printf("  Migrations: %s\n", *migrationsDir)

	if *dryRun {
		fmt.Println("DRY RUN - No changes will be made")
	}

	fmt.Printf("Loading YAML configuration...\n")
	yamlProvider := config.NewYAMLProvider(*yamlFile)
	configData, err := yamlProvider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML configuration: %v\n", err)
		os.Exit(1)
	}

	if err := configData.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: configuration is invalid: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("  Loaded %d sites, %d controllers\n", len(configData.Sites), len(configData.Controllers))

	if *dryRun {
		printConfigSummary(configData)
		fmt.Println("DRY RUN complete - no database created")
		return
	}

	if *force {
		if err := os.Remove(*sqliteFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error removing existing SQLite file: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Creating SQLite database...\n")
	if err := createSQLiteDatabase(*sqliteFile, *migrationsDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite database: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loading configuration into SQLite database...\n")
	if err := loadConfigIntoSQLite(*sqliteFile, configData); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration into SQLite: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Conversion completed successfully!\n")
	fmt.Printf("You can now use the SQLite backend with: -config-backend sqlite -config %s\n", *sqliteFile)
}

// detectMigrationsDir checks the usual install locations for the migration
// SQL shipped with greenwave.
func detectMigrationsDir() string {
	candidates := []string{
		"migrations/config",
		"/usr/share/greenwave/migrations/config",
		"/usr/local/share/greenwave/migrations/config",
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "migrations/config"
}

func createSQLiteDatabase(dbPath string, migrationsDir string) error {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	provider := migrate.NewFileProvider(migrationsDir, "schema_migrations")
	migrator := migrate.NewMigrator(db, provider)
	return migrator.MigrateUp()
}

func loadConfigIntoSQLite(dbPath string, configData *config.ConfigData) error {
	sqliteProvider, err := config.NewSQLiteProvider(dbPath)
	if err != nil {
		return fmt.Errorf("failed to create SQLite provider: %w", err)
	}
	defer sqliteProvider.Close()

	fmt.Printf("  Inserting %d sites...\n", len(configData.Sites))
	fmt.Printf("  Inserting storage configuration...\n")
	fmt.Printf("  Inserting %d controllers...\n", len(configData.Controllers))

	if err := sqliteProvider.SaveConfig(configData); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Printf("  Configuration successfully inserted into database\n")
	return nil
}

func printConfigSummary(configData *config.ConfigData) {
	fmt.Println("\nConfiguration Summary:")
	fmt.Printf("Sites (%d):\n", len(configData.Sites))
	for _, site := range configData.Sites {
		fmt.Printf("  - %s (%s) at %.4f, %.4f\n", site.Name, site.Type, site.Latitude, site.Longitude)
	}

	fmt.Printf("\nStorage Backends:\n")
	if configData.Storage.TimescaleDB != nil {
		fmt.Printf("  - TimescaleDB: %s\n", configData.Storage.TimescaleDB.ConnectionString)
	}
	if configData.Storage.Stream != nil {
		fmt.Printf("  - Stream: %s:%d\n", configData.Storage.Stream.ListenAddr, configData.Storage.Stream.Port)
	}

	fmt.Printf("\nControllers (%d):\n", len(configData.Controllers))
	for _, controller := range configData.Controllers {
		fmt.Printf("  - %s\n", controller.Type)
	}
}
