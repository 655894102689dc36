package migrate

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Migration files are named NNN_short_description.up.sql with a matching
// .down.sql for the rollback.
var migrationFileRe = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// FileProvider loads migrations from a directory of SQL files.
type FileProvider struct {
	dir            string
	migrationTable string
	dbDriver       string // "sqlite" or "postgres"
}

// NewFileProvider creates a provider for the default SQLite driver.
func NewFileProvider(dir string, migrationTable string) *FileProvider {
	return NewFileProviderWithDriver(dir, migrationTable, "sqlite")
}

// NewFileProviderWithDriver creates a provider for a specific database driver.
func NewFileProviderWithDriver(dir string, migrationTable string, dbDriver string) *FileProvider {
	if migrationTable == "" {
		migrationTable = "schema_migrations"
	}
	return &FileProvider{
		dir:            dir,
		migrationTable: migrationTable,
		dbDriver:       dbDriver,
	}
}

// GetMigrations reads every migration file under the directory.
func (fp *FileProvider) GetMigrations() ([]Migration, error) {
	byVersion := make(map[int]*Migration)

	err := filepath.WalkDir(fp.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		matches := migrationFileRe.FindStringSubmatch(d.Name())
		if matches == nil {
			return nil
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return fmt.Errorf("bad version in file %s: %w", d.Name(), err)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading migration file %s: %w", path, err)
		}

		mig := byVersion[version]
		if mig == nil {
			mig = &Migration{
				Version: version,
				Name:    strings.ReplaceAll(matches[2], "_", " "),
			}
			byVersion[version] = mig
		}
		if matches[3] == "up" {
			mig.Up = string(content)
		} else {
			mig.Down = string(content)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading migration directory %s: %w", fp.dir, err)
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		migrations = append(migrations, *mig)
	}
	return migrations, nil
}

// CreateMigrationTable creates the version tracking table if missing.
func (fp *FileProvider) CreateMigrationTable(db *sql.DB) error {
	timestampType := "DATETIME"
	if fp.dbDriver == "postgres" {
		timestampType = "TIMESTAMP"
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			applied_at %s DEFAULT CURRENT_TIMESTAMP
		)
	`, fp.migrationTable, timestampType)

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("creating migration table: %w", err)
	}
	return nil
}

// GetCurrentVersion returns the highest recorded migration version.
func (fp *FileProvider) GetCurrentVersion(db *sql.DB) (int, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", fp.migrationTable)

	var version int
	if err := db.QueryRow(query).Scan(&version); err != nil {
		return 0, fmt.Errorf("reading current version: %w", err)
	}
	return version, nil
}

// SetVersion records the given version. Version 0 clears the table.
func (fp *FileProvider) SetVersion(db DB, version int) error {
	var err error
	switch {
	case version == 0:
		_, err = db.Exec(fmt.Sprintf("DELETE FROM %s", fp.migrationTable))
	case fp.dbDriver == "postgres":
		query := fmt.Sprintf(`
			INSERT INTO %s (version, applied_at)
			VALUES ($1, CURRENT_TIMESTAMP)
			ON CONFLICT (version) DO UPDATE SET applied_at = CURRENT_TIMESTAMP
		`, fp.migrationTable)
		_, err = db.Exec(query, version)
	default:
		query := fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (version, applied_at)
			VALUES (?, CURRENT_TIMESTAMP)
		`, fp.migrationTable)
		_, err = db.Exec(query, version)
	}

	if err != nil {
		return fmt.Errorf("setting version: %w", err)
	}
	return nil
}
