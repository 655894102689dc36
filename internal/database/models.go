package database

import (
	"time"

	"github.com/jackc/pgtype"
	"gorm.io/gorm"
)

// SeasonMetricsRecord is one computed growing season for a site pixel and
// band. The phenocache controller refreshes these rows; the REST server
// reads them.
type SeasonMetricsRecord struct {
	gorm.Model

	SiteName   string `gorm:"uniqueIndex:idx_season_key,not null" json:"site_name"`
	Product    string `gorm:"not null" json:"product"`
	Band       string `gorm:"uniqueIndex:idx_season_key,not null" json:"band"`
	PixelIndex int    `gorm:"uniqueIndex:idx_season_key,not null" json:"pixel_index"`
	SeasonYear int    `gorm:"uniqueIndex:idx_season_key,not null" json:"season_year"`

	// SeasonStart anchors the day-of-season values inside Crossings.
	SeasonStart  time.Time `gorm:"not null" json:"season_start"`
	GoodFraction float64   `json:"good_fraction"`
	Amplitude    float64   `json:"amplitude"`
	MinValue     float64   `json:"min_value"`
	PeakValue    float64   `json:"peak_value"`
	PeakDay      float64   `json:"peak_day"`
	DaylengthAtSOS float64 `json:"daylength_at_sos_h"`

	// Crossings holds the per-threshold season dates keyed the way
	// phenology.CrossingKey renders them.
	Crossings pgtype.JSONB `gorm:"type:jsonb;default:'{}';not null" json:"crossings"`
}

// TableName implements the Tabler interface for the SeasonMetricsRecord struct
func (SeasonMetricsRecord) TableName() string {
	return "season_metrics"
}
