package migrate

import (
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Migration is one schema change with its forward and rollback SQL.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// DB is the subset of database/sql shared by *sql.DB and *sql.Tx.
type DB interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// MigrationProvider loads migrations and tracks the applied version.
type MigrationProvider interface {
	GetMigrations() ([]Migration, error)
	GetCurrentVersion(db *sql.DB) (int, error)
	SetVersion(db DB, version int) error
	CreateMigrationTable(db *sql.DB) error
}

// Migrator applies migrations against a database.
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
}

func NewMigrator(db *sql.DB, provider MigrationProvider) *Migrator {
	return &Migrator{db: db, provider: provider}
}

// MigrateUp applies all pending migrations.
func (m *Migrator) MigrateUp() error {
	return m.MigrateTo(-1)
}

// MigrateTo migrates up or down until the schema is at targetVersion.
// A target of -1 means the latest known version.
func (m *Migrator) MigrateTo(targetVersion int) error {
	if err := m.provider.CreateMigrationTable(m.db); err != nil {
		return fmt.Errorf("creating migration table: %w", err)
	}

	current, err := m.provider.GetCurrentVersion(m.db)
	if err != nil {
		return fmt.Errorf("reading current version: %w", err)
	}

	migrations, err := m.sortedMigrations()
	if err != nil {
		return err
	}

	if targetVersion == -1 {
		if len(migrations) == 0 {
			return nil
		}
		targetVersion = migrations[len(migrations)-1].Version
	}

	if targetVersion < current {
		return m.MigrateDown(targetVersion)
	}

	for _, mig := range migrations {
		if mig.Version > current && mig.Version <= targetVersion {
			if err := m.apply(mig, true); err != nil {
				return fmt.Errorf("applying migration %d: %w", mig.Version, err)
			}
		}
	}
	return nil
}

// MigrateDown rolls the schema back to targetVersion.
func (m *Migrator) MigrateDown(targetVersion int) error {
	current, err := m.provider.GetCurrentVersion(m.db)
	if err != nil {
		return fmt.Errorf("reading current version: %w", err)
	}
	if targetVersion >= current {
		return fmt.Errorf("target version %d must be below current version %d", targetVersion, current)
	}

	migrations, err := m.sortedMigrations()
	if err != nil {
		return err
	}

	// Roll back newest-first.
	for i := len(migrations) - 1; i >= 0; i-- {
		mig := migrations[i]
		if mig.Version > targetVersion && mig.Version <= current {
			if err := m.apply(mig, false); err != nil {
				return fmt.Errorf("rolling back migration %d: %w", mig.Version, err)
			}
		}
	}
	return nil
}

// GetCurrentVersion returns the highest applied migration version.
func (m *Migrator) GetCurrentVersion() (int, error) {
	if err := m.provider.CreateMigrationTable(m.db); err != nil {
		return 0, fmt.Errorf("creating migration table: %w", err)
	}
	return m.provider.GetCurrentVersion(m.db)
}

// GetPendingMigrations lists migrations newer than the applied version.
func (m *Migrator) GetPendingMigrations() ([]Migration, error) {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return nil, err
	}

	migrations, err := m.sortedMigrations()
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, mig := range migrations {
		if mig.Version > current {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// SetVersion records a version without running any SQL. Use with caution.
func (m *Migrator) SetVersion(version int) error {
	return m.provider.SetVersion(m.db, version)
}

func (m *Migrator) sortedMigrations() ([]Migration, error) {
	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// apply runs one migration and its version bump in a single transaction.
func (m *Migrator) apply(mig Migration, up bool) error {
	stmt, direction := mig.Up, "up"
	newVersion := mig.Version
	if !up {
		stmt, direction = mig.Down, "down"
		newVersion = mig.Version - 1
	}
	if stmt == "" {
		return fmt.Errorf("migration %d has no %s SQL", mig.Version, direction)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("executing migration SQL: %w", err)
	}
	if err := m.provider.SetVersion(tx, newVersion); err != nil {
		return fmt.Errorf("recording version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}

	fmt.Printf("Applied migration %d (%s) %s at %s\n",
		mig.Version, mig.Name, direction, time.Now().Format(time.RFC3339))
	return nil
}
