package phenocache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/khufkens/greenwave/internal/phenology"
	"github.com/khufkens/greenwave/pkg/config"
)

func TestMergeParams(t *testing.T) {
	base := phenology.DefaultParams()

	merged := mergeParams(base, config.PhenologyData{
		Window:     9,
		Thresholds: []float64{0.2, 0.5},
	})

	if merged.Window != 9 {
		t.Errorf("expected window override 9, got %d", merged.Window)
	}
	if merged.PolyOrder != base.PolyOrder {
		t.Errorf("expected poly order to keep default %d, got %d", base.PolyOrder, merged.PolyOrder)
	}
	if len(merged.Thresholds) != 2 || merged.Thresholds[0] != 0.2 {
		t.Errorf("expected threshold override, got %v", merged.Thresholds)
	}
	if merged.MaxGapComposites != base.MaxGapComposites {
		t.Errorf("expected gap limit to keep default %d, got %d", base.MaxGapComposites, merged.MaxGapComposites)
	}

	if got := mergeSiteParams(base, nil); got.Window != base.Window {
		t.Errorf("nil site overrides should keep base params, got window %d", got.Window)
	}
}

func TestBandsForSite(t *testing.T) {
	ornlSite := &config.SiteData{
		Name:  "harvard",
		Type:  config.SiteTypeORNL,
		Bands: []string{"NDVI", "EVI"},
	}
	if got := bandsForSite(ornlSite); len(got) != 2 || got[0] != "NDVI" {
		t.Errorf("expected configured bands, got %v", got)
	}

	camSite := &config.SiteData{Name: "bartlett", Type: config.SiteTypePhenoCam}
	if got := bandsForSite(camSite); len(got) != 1 || got[0] != "GCC" {
		t.Errorf("expected implicit GCC band for phenocam site, got %v", got)
	}

	bare := &config.SiteData{Name: "empty", Type: config.SiteTypeORNL}
	if got := bandsForSite(bare); got != nil {
		t.Errorf("expected no bands for bare ornl site, got %v", got)
	}
}

func TestRecordFromMetricsEncodesCrossings(t *testing.T) {
	m := phenology.SeasonMetrics{
		SiteName:    "harvard",
		Product:     "MOD13Q1",
		Band:        "NDVI",
		SeasonYear:  2023,
		SeasonStart: time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
		Amplitude:   0.42,
		Crossings: map[string]phenology.SeasonCrossing{
			phenology.CrossingKey(0.25): {Threshold: 0.25, SOSDay: 120.5, EOSDay: 290.25, LOSDays: 169.75},
		},
	}

	rec, err := recordFromMetrics(m, sitePixelIndex)
	if err != nil {
		t.Fatalf("recordFromMetrics returned error: %v", err)
	}

	if rec.PixelIndex != sitePixelIndex {
		t.Errorf("expected pixel index %d, got %d", sitePixelIndex, rec.PixelIndex)
	}
	if rec.SiteName != "harvard" || rec.SeasonYear != 2023 {
		t.Errorf("unexpected record identity: %s/%d", rec.SiteName, rec.SeasonYear)
	}

	var decoded map[string]phenology.SeasonCrossing
	if err := json.Unmarshal(rec.Crossings.Bytes, &decoded); err != nil {
		t.Fatalf("crossings column does not hold valid JSON: %v", err)
	}
	c, ok := decoded[phenology.CrossingKey(0.25)]
	if !ok {
		t.Fatalf("expected 0.25 crossing in encoded JSON, got %v", decoded)
	}
	if c.SOSDay != 120.5 || c.LOSDays != 169.75 {
		t.Errorf("crossing values did not survive encoding: %+v", c)
	}
}

func TestRequestRefresh(t *testing.T) {
	registerRefreshChannel(nil)
	if RequestRefresh() {
		t.Error("expected RequestRefresh to report false with no controller running")
	}

	ch := make(chan struct{}, 1)
	registerRefreshChannel(ch)
	defer registerRefreshChannel(nil)

	if !RequestRefresh() {
		t.Error("expected RequestRefresh to report true with a controller registered")
	}
	select {
	case <-ch:
	default:
		t.Error("expected a pending refresh request on the channel")
	}

	// A second request while one is pending must not block.
	if !RequestRefresh() {
		t.Error("expected RequestRefresh to report true when a refresh is already pending")
	}
}
