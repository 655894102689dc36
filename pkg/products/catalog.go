// Package products describes the satellite subset products greenwave can
// collect: band scaling, valid ranges, fill values, composite calendars, and
// quality-flag decoding, following the LP DAAC product user guides.
package products

import (
	"fmt"
	"math"
	"sort"
)

// Band describes a single data layer within a subset product.
type Band struct {
	// Name is the layer name as served by the subset API
	// (e.g. "250m_16_days_NDVI").
	Name string `json:"name"`
	// ScaleFactor converts raw integer values to physical units.
	ScaleFactor float64 `json:"scale_factor"`
	// ValidMin and ValidMax bound the raw (unscaled) value range.
	ValidMin float64 `json:"valid_min"`
	ValidMax float64 `json:"valid_max"`
	// FillValue is the raw value used for missing data.
	FillValue float64 `json:"fill_value"`
	Units     string  `json:"units"`
}

// Product describes one subset product.
type Product struct {
	ID         string `json:"id"`
	Platform   string `json:"platform"`
	Sensor     string `json:"sensor"`
	Descriptor string `json:"descriptor"`
	// CompositeDays is the length of a compositing period in days.
	CompositeDays int `json:"composite_days"`
	// CompositeStartDOY is the day-of-year of the first composite. Terra
	// products start on DOY 1; Aqua vegetation indices are phased 8 days
	// later and start on DOY 9.
	CompositeStartDOY int `json:"composite_start_doy"`
	// ResolutionM is the nominal pixel size in meters.
	ResolutionM int `json:"resolution_m"`
	// Bands maps short band names ("NDVI") to their layer descriptions.
	Bands map[string]Band `json:"bands"`
	// QCBand is the layer carrying per-pixel quality words, empty when the
	// product ships quality as row flags instead.
	QCBand string `json:"qc_band,omitempty"`
}

// catalog holds all products greenwave knows how to collect. Layer names,
// scale factors, ranges, and fill values follow the MOD13/MOD15/VNP13 user
// guides and the PhenoCam roistats file format.
var catalog = map[string]Product{
	"MOD13Q1": {
		ID:                "MOD13Q1",
		Platform:          "Terra",
		Sensor:            "MODIS",
		Descriptor:        "Vegetation Indices 16-Day L3 Global 250m",
		CompositeDays:     16,
		CompositeStartDOY: 1,
		ResolutionM:       250,
		Bands: map[string]Band{
			"NDVI": {Name: "250m_16_days_NDVI", ScaleFactor: 0.0001, ValidMin: -2000, ValidMax: 10000, FillValue: -3000, Units: "index"},
			"EVI":  {Name: "250m_16_days_EVI", ScaleFactor: 0.0001, ValidMin: -2000, ValidMax: 10000, FillValue: -3000, Units: "index"},
		},
		QCBand: "250m_16_days_VI_Quality",
	},
	"MYD13Q1": {
		ID:                "MYD13Q1",
		Platform:          "Aqua",
		Sensor:            "MODIS",
		Descriptor:        "Vegetation Indices 16-Day L3 Global 250m",
		CompositeDays:     16,
		CompositeStartDOY: 9,
		ResolutionM:       250,
		Bands: map[string]Band{
			"NDVI": {Name: "250m_16_days_NDVI", ScaleFactor: 0.0001, ValidMin: -2000, ValidMax: 10000, FillValue: -3000, Units: "index"},
			"EVI":  {Name: "250m_16_days_EVI", ScaleFactor: 0.0001, ValidMin: -2000, ValidMax: 10000, FillValue: -3000, Units: "index"},
		},
		QCBand: "250m_16_days_VI_Quality",
	},
	"MOD15A2H": {
		ID:                "MOD15A2H",
		Platform:          "Terra",
		Sensor:            "MODIS",
		Descriptor:        "Leaf Area Index/FPAR 8-Day L4 Global 500m",
		CompositeDays:     8,
		CompositeStartDOY: 1,
		ResolutionM:       500,
		Bands: map[string]Band{
			"LAI":  {Name: "Lai_500m", ScaleFactor: 0.1, ValidMin: 0, ValidMax: 100, FillValue: 255, Units: "m2/m2"},
			"FPAR": {Name: "Fpar_500m", ScaleFactor: 0.01, ValidMin: 0, ValidMax: 100, FillValue: 255, Units: "fraction"},
		},
		QCBand: "FparLai_QC",
	},
	"VNP13A1": {
		ID:                "VNP13A1",
		Platform:          "Suomi NPP",
		Sensor:            "VIIRS",
		Descriptor:        "Vegetation Indices 16-Day L3 Global 500m",
		CompositeDays:     16,
		CompositeStartDOY: 1,
		ResolutionM:       500,
		Bands: map[string]Band{
			"NDVI": {Name: "500_m_16_days_NDVI", ScaleFactor: 0.0001, ValidMin: -10000, ValidMax: 10000, FillValue: -15000, Units: "index"},
			"EVI":  {Name: "500_m_16_days_EVI2", ScaleFactor: 0.0001, ValidMin: -10000, ValidMax: 10000, FillValue: -15000, Units: "index"},
		},
		QCBand: "500_m_16_days_VI_Quality",
	},
	"PHENOCAM_GCC": {
		ID:                "PHENOCAM_GCC",
		Platform:          "PhenoCam",
		Sensor:            "RGB camera",
		Descriptor:        "Green Chromatic Coordinate 3-Day Summary",
		CompositeDays:     3,
		CompositeStartDOY: 1,
		ResolutionM:       0,
		Bands: map[string]Band{
			// Missing roistats rows carry NA in the file; -9999 is the
			// conventional PhenoCam sentinel and stays finite so the
			// catalog survives JSON encoding.
			"GCC": {Name: "gcc_90", ScaleFactor: 1.0, ValidMin: 0, ValidMax: 1, FillValue: -9999, Units: "fraction"},
		},
	},
}

// Lookup returns the product with the given ID.
func Lookup(id string) (Product, error) {
	p, ok := catalog[id]
	if !ok {
		return Product{}, fmt.Errorf("unknown product %q", id)
	}
	return p, nil
}

// IDs returns all catalog product IDs, sorted.
func IDs() []string {
	ids := make([]string, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns every product in the catalog, sorted by ID.
func All() []Product {
	out := make([]Product, 0, len(catalog))
	for _, id := range IDs() {
		out = append(out, catalog[id])
	}
	return out
}

// Band returns the band with the given short name ("NDVI", "LAI", ...).
func (p Product) Band(short string) (Band, error) {
	b, ok := p.Bands[short]
	if !ok {
		return Band{}, fmt.Errorf("product %s has no band %q", p.ID, short)
	}
	return b, nil
}

// BandNames returns the product's short band names, sorted.
func (p Product) BandNames() []string {
	names := make([]string, 0, len(p.Bands))
	for name := range p.Bands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CompositesPerYear returns how many composite periods the product produces
// in one calendar year.
func (p Product) CompositesPerYear() int {
	if p.CompositeDays <= 0 {
		return 0
	}
	n := 0
	for doy := p.CompositeStartDOY; doy <= 365; doy += p.CompositeDays {
		n++
	}
	return n
}

// ScaleValue converts a raw band value to physical units. The second return
// is false when the value is fill or outside the band's valid range; the
// scaled value is NaN in that case.
func (b Band) ScaleValue(raw float64) (float64, bool) {
	if !math.IsNaN(b.FillValue) && raw == b.FillValue {
		return math.NaN(), false
	}
	if math.IsNaN(raw) || raw < b.ValidMin || raw > b.ValidMax {
		return math.NaN(), false
	}
	return raw * b.ScaleFactor, true
}
