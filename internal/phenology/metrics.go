package phenology

import "time"

// SeasonMetrics holds the phenology metrics of one site/band/season-year.
type SeasonMetrics struct {
	SiteName   string `json:"site_name"`
	Product    string `json:"product"`
	Band       string `json:"band"`
	SeasonYear int    `json:"season_year"`
	// SeasonStart anchors the day-of-season values below to the calendar.
	SeasonStart time.Time `json:"season_start"`

	// Crossings is keyed by CrossingKey(threshold).
	Crossings map[string]SeasonCrossing `json:"crossings"`

	PeakDay   float64 `json:"peak_day"`
	PeakValue float64 `json:"peak_value"`
	MinValue  float64 `json:"min_value"`
	Amplitude float64 `json:"amplitude"`
	// GoodFraction is the share of composites that carried an
	// analysis-grade observation before screening.
	GoodFraction float64 `json:"good_fraction"`
	// DaylengthAtSOS is the photoperiod in hours on the SOS date of the
	// lowest threshold, 0 when no crossing was found.
	DaylengthAtSOS float64 `json:"daylength_at_sos_h"`
}

// SeasonCrossing is a Crossing resolved onto the calendar.
type SeasonCrossing struct {
	Threshold float64   `json:"threshold"`
	SOSDay    float64   `json:"sos_day"`
	SOSDate   time.Time `json:"sos_date"`
	EOSDay    float64   `json:"eos_day"`
	EOSDate   time.Time `json:"eos_date"`
	LOSDays   float64   `json:"los_days"`
}
