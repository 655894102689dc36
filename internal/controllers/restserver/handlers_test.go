package restserver

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/khufkens/greenwave/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandlers(sites []config.SiteData) *Handlers {
	return NewHandlers(&Controller{Sites: sites})
}

func TestParseFlexibleDate(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"A2023145", time.Date(2023, 5, 25, 0, 0, 0, 0, time.UTC), false},
		{"2023-05-25", time.Date(2023, 5, 25, 0, 0, 0, 0, time.UTC), false},
		{"2023-05-25T00:00:00Z", time.Date(2023, 5, 25, 0, 0, 0, 0, time.UTC), false},
		{"A2023999", time.Time{}, true},
		{"yesterday", time.Time{}, true},
		{"", time.Time{}, true},
	}

	for _, tc := range tests {
		got, err := parseFlexibleDate(tc.input)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.input)
			continue
		}
		require.NoError(t, err, "input %q", tc.input)
		assert.True(t, got.Equal(tc.want), "input %q: got %v, want %v", tc.input, got, tc.want)
	}
}

func TestParseTimeBoundsSpan(t *testing.T) {
	h := newTestHandlers(nil)

	req := httptest.NewRequest("GET", "/api/sites/harvard/series?span=720h", nil)
	start, end, err := h.parseTimeBounds(req)
	require.NoError(t, err)
	assert.InDelta(t, 720*time.Hour, end.Sub(start), float64(time.Second))

	// Span wins over explicit bounds when both are present.
	req = httptest.NewRequest("GET", "/api/sites/harvard/series?span=24h&start=2001-01-01", nil)
	start, end, err = h.parseTimeBounds(req)
	require.NoError(t, err)
	assert.InDelta(t, 24*time.Hour, end.Sub(start), float64(time.Second))
}

func TestParseTimeBoundsExplicit(t *testing.T) {
	h := newTestHandlers(nil)

	req := httptest.NewRequest("GET", "/series?start=2022-01-01&end=A2023145", nil)
	start, end, err := h.parseTimeBounds(req)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2023, 5, 25, 0, 0, 0, 0, time.UTC), end)
}

func TestParseTimeBoundsErrors(t *testing.T) {
	h := newTestHandlers(nil)

	tests := []struct {
		name  string
		query string
		want  error
	}{
		{"malformed span", "?span=fortnight", errInvalidSpan},
		{"negative span", "?span=-24h", errSpanTooLong},
		{"span over cap", "?span=96432h", errSpanTooLong},
		{"backwards range", "?start=2023-06-01&end=2023-01-01", errBackwardsRange},
		{"bad start date", "?start=notadate", errBadDate},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/series"+tc.query, nil)
			_, _, err := h.parseTimeBounds(req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParseTimeBoundsDefaultSpan(t *testing.T) {
	h := newTestHandlers(nil)

	req := httptest.NewRequest("GET", "/series", nil)
	start, end, err := h.parseTimeBounds(req)
	require.NoError(t, err)
	assert.InDelta(t, defaultSpan, end.Sub(start), float64(time.Second))
}

func TestGetProducts(t *testing.T) {
	h := newTestHandlers(nil)

	w := httptest.NewRecorder()
	h.GetProducts(w, httptest.NewRequest("GET", "/api/products", nil))

	require.Equal(t, 200, w.Code)
	var catalog []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &catalog))

	ids := make([]string, 0, len(catalog))
	for _, p := range catalog {
		ids = append(ids, p.ID)
	}
	assert.Contains(t, ids, "MOD13Q1")
	assert.Contains(t, ids, "VNP13A1")
}

func TestGetHealthWithoutStorage(t *testing.T) {
	h := newTestHandlers(nil)

	w := httptest.NewRecorder()
	h.GetHealth(w, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, 200, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.NotContains(t, resp, "database")
}

func TestGetSiteSeriesWithoutStorage(t *testing.T) {
	h := newTestHandlers([]config.SiteData{
		{Name: "harvard", Type: config.SiteTypeORNL, Latitude: 42.5378, Longitude: -72.1715},
	})
	router := mux.NewRouter()
	router.HandleFunc("/api/sites/{site}/series", h.GetSiteSeries)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/sites/harvard/series", nil))
	assert.Equal(t, 503, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/sites/nowhere/series", nil))
	assert.Equal(t, 503, w.Code)
}

func TestGetSiteSeriesUnknownSite(t *testing.T) {
	h := newTestHandlers([]config.SiteData{
		{Name: "harvard", Type: config.SiteTypeORNL},
	})
	h.controller.DBEnabled = true

	router := mux.NewRouter()
	router.HandleFunc("/api/sites/{site}/series", h.GetSiteSeries)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/sites/nowhere/series", nil))
	assert.Equal(t, 404, w.Code)
}

func TestGetSitePhenologyRejectsBadPixel(t *testing.T) {
	h := newTestHandlers([]config.SiteData{
		{Name: "harvard", Type: config.SiteTypeORNL},
	})
	h.controller.DBEnabled = true

	router := mux.NewRouter()
	router.HandleFunc("/api/sites/{site}/phenology", h.GetSitePhenology)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/sites/harvard/phenology?pixel=-3", nil))
	assert.Equal(t, 400, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "invalid pixel index", body["error"])
}

func TestSiteConfigLookup(t *testing.T) {
	c := &Controller{Sites: []config.SiteData{
		{Name: "harvard"},
		{Name: "niwot"},
	}}

	require.NotNil(t, c.siteConfig("niwot"))
	assert.Equal(t, "niwot", c.siteConfig("niwot").Name)
	assert.Nil(t, c.siteConfig("nowhere"))
}
