package types

import (
	"reflect"
	"time"
)

// Sample is one vegetation-index observation for one pixel of a site's
// subset. Sources convert whatever their upstream serves into this struct;
// everything downstream (storage engines, the phenology pipeline, the REST
// API) speaks Sample.
type Sample struct {
	// Time is the calendar date the composite period starts.
	Time     time.Time `gorm:"column:time" json:"time"`
	SiteName string    `gorm:"column:sitename" json:"site_name"`
	// Source identifies the acquiring source type (ornl, phenocam,
	// fieldstream).
	Source  string `gorm:"column:source" json:"source"`
	Product string `gorm:"column:product" json:"product"`
	// Band is the short band name from the product catalog (NDVI, EVI,
	// LAI, GCC).
	Band string `gorm:"column:band" json:"band"`
	// PixelIndex is the row-major position of the pixel within the site's
	// subset grid. Single-point sources always use pixel 0.
	PixelIndex int `gorm:"column:pixelindex" json:"pixel_index"`
	// Value is the scaled physical value. NaN never reaches storage; fill
	// and out-of-range pixels are stored with Value 0 and QCRank RankBad.
	Value float64 `gorm:"column:value" json:"value"`
	// RawValue is the unscaled integer value as served by the archive.
	RawValue float64 `gorm:"column:rawvalue" json:"raw_value"`
	// QCRank is the decoded quality rank, 0 best through 4 unusable.
	QCRank int `gorm:"column:qcrank" json:"qc_rank"`
	// CompositeDOY is the day-of-year the composite period starts.
	CompositeDOY int    `gorm:"column:compositedoy" json:"composite_doy"`
	Tile         string `gorm:"column:tile" json:"tile,omitempty"`
	ProcDate     string `gorm:"column:procdate" json:"proc_date,omitempty"`
	// Subset geometry travels denormalized on every row so a grid can be
	// rebuilt from samples alone. Single-point sources use a 1x1 grid.
	SubsetRows int     `gorm:"column:subsetrows" json:"subset_rows"`
	SubsetCols int     `gorm:"column:subsetcols" json:"subset_cols"`
	CellsizeM  float64 `gorm:"column:cellsizem" json:"cellsize_m,omitempty"`
	XLLCorner  float64 `gorm:"column:xllcorner" json:"xllcorner,omitempty"`
	YLLCorner  float64 `gorm:"column:yllcorner" json:"yllcorner,omitempty"`
	// RunID correlates all samples produced by one fetch run.
	RunID string `gorm:"column:runid" json:"run_id,omitempty"`
}

// Meta derives the subset geometry carried on the sample.
func (s *Sample) Meta() SubsetMeta {
	rows, cols := s.SubsetRows, s.SubsetCols
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	return SubsetMeta{
		SiteName:  s.SiteName,
		Product:   s.Product,
		Band:      s.Band,
		NRows:     rows,
		NCols:     cols,
		CellsizeM: s.CellsizeM,
		XLLCorner: s.XLLCorner,
		YLLCorner: s.YLLCorner,
	}
}

// ToMap converts a Sample into a map keyed by field name, for consumers
// that want dynamic access to the numeric fields.
func (s *Sample) ToMap() map[string]interface{} {
	m := make(map[string]interface{})

	v := reflect.ValueOf(*s)

	for i := 0; i < v.NumField(); i++ {
		switch v.Field(i).Kind() {
		case reflect.Float64:
			m[v.Type().Field(i).Name] = v.Field(i).Float()
		case reflect.Int:
			m[v.Type().Field(i).Name] = v.Field(i).Int()
		case reflect.String:
			m[v.Type().Field(i).Name] = v.Field(i).String()
		}
	}

	return m
}

// TableName implements the GORM Tabler interface for the Sample struct
func (Sample) TableName() string {
	return "vi_samples"
}

// SubsetMeta carries the grid geometry of a site's subset as reported by
// the archive: corner coordinates are in the product's sinusoidal
// projection, cellsize in meters.
type SubsetMeta struct {
	SiteName  string  `json:"site_name"`
	Product   string  `json:"product"`
	Band      string  `json:"band"`
	NRows     int     `json:"nrows"`
	NCols     int     `json:"ncols"`
	CellsizeM float64 `json:"cellsize_m"`
	XLLCorner float64 `json:"xllcorner"`
	YLLCorner float64 `json:"yllcorner"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Pixels returns the number of pixels in the subset grid.
func (m SubsetMeta) Pixels() int {
	return m.NRows * m.NCols
}

// RowCol converts a row-major pixel index to grid coordinates.
func (m SubsetMeta) RowCol(pixelIndex int) (row, col int) {
	if m.NCols <= 0 {
		return 0, 0
	}
	return pixelIndex / m.NCols, pixelIndex % m.NCols
}
