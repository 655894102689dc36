package timescaledb

import (
	"errors"

	"github.com/khufkens/greenwave/internal/storage"
)

// CheckHealth verifies the database connection end to end.
func (t *Storage) CheckHealth() storage.HealthData {
	if t.TimescaleDBConn == nil {
		return storage.CreateHealthData("unhealthy", "No database connection", errors.New("TimescaleDB connection is nil"))
	}

	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return storage.CreateHealthData("unhealthy", "Failed to get underlying database connection", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return storage.CreateHealthData("unhealthy", "Database ping failed", err)
	}

	var result int
	if err := t.TimescaleDBConn.Raw("SELECT 1").Scan(&result).Error; err != nil {
		return storage.CreateHealthData("unhealthy", "Database query test failed", err)
	}

	return storage.CreateHealthData("healthy", "TimescaleDB operational - ping: OK, query test: OK", nil)
}
