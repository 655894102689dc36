package database

import "time"

// SiteBandSummary is one row of the vi_samples_latest view: per site and
// band, when the newest composite arrived and what the center-of-grid
// value was.
type SiteBandSummary struct {
	SiteName    string    `gorm:"column:sitename" json:"site_name"`
	Product     string    `gorm:"column:product" json:"product"`
	Band        string    `gorm:"column:band" json:"band"`
	LatestTime  time.Time `gorm:"column:latest_time" json:"latest_time"`
	SampleCount int64     `gorm:"column:sample_count" json:"sample_count"`
	PixelCount  int64     `gorm:"column:pixel_count" json:"pixel_count"`
}

// TableName implements the Tabler interface for the SiteBandSummary struct
func (SiteBandSummary) TableName() string {
	return "vi_samples_latest"
}
