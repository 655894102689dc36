package restserver

import (
	"errors"
	htmltemplate "html/template"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/khufkens/greenwave/internal/constants"
	"github.com/khufkens/greenwave/internal/database"
	"github.com/khufkens/greenwave/internal/log"
	"github.com/khufkens/greenwave/internal/types"
	"github.com/khufkens/greenwave/pkg/config"
	"github.com/khufkens/greenwave/pkg/products"
	"github.com/khufkens/greenwave/pkg/responseformat"
)

var (
	errInvalidSpan    = errors.New("invalid span duration")
	errSpanTooLong    = errors.New("span exceeds maximum allowed duration of 10 years")
	errBackwardsRange = errors.New("end date precedes start date")
	errBadDate        = errors.New("invalid date: expected A2023145, 2023-05-25, or RFC3339")
	errBadPixel       = errors.New("pixel index out of range for subset")
	errNoSamples      = errors.New("no samples stored for that site and band")
)

// maxSpan caps series requests; subset archives reach back decades and an
// unbounded query can pull the whole hypertable.
const maxSpan = 10 * 365 * 24 * time.Hour

const defaultSpan = 2 * 365 * 24 * time.Hour

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// writeResponse sends a formatted response and logs encoding failures,
// which would otherwise leave the client with a truncated body and no
// trace on our side.
func (h *Handlers) writeResponse(w http.ResponseWriter, req *http.Request, data any) {
	if err := h.formatter.WriteResponse(w, req, data, map[string]string{}); err != nil {
		log.Errorf("error writing response for %s: %v", req.URL.Path, err)
	}
}

// ServeIndex renders the embedded status page
func (h *Handlers) ServeIndex(w http.ResponseWriter, req *http.Request) {
	raw, err := fs.ReadFile(GetAssets(), "index.html")
	if err != nil {
		log.Errorf("could not read status page: %v", err)
		http.Error(w, "status page not available", http.StatusInternalServerError)
		return
	}

	tmpl, err := htmltemplate.New("index").Parse(string(raw))
	if err != nil {
		log.Errorf("could not parse status page template: %v", err)
		http.Error(w, "status page not available", http.StatusInternalServerError)
		return
	}

	title := h.controller.restConfig.PageTitle
	if title == "" {
		title = "greenwave"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = tmpl.Execute(w, map[string]any{
		"PageTitle": title,
		"Version":   constants.Version,
		"Sites":     h.controller.Sites,
	})
	if err != nil {
		log.Errorf("error rendering status page: %v", err)
	}
}

// GetHealth reports liveness and, when storage is configured, whether the
// database answers a ping.
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"version":   constants.Version,
		"timestamp": time.Now().UTC(),
	}

	if h.controller.DBEnabled {
		if err := h.controller.DB.Ping(req.Context()); err != nil {
			resp["status"] = "degraded"
			resp["database"] = err.Error()
			h.writeResponse(w, req, resp)
			return
		}
		resp["database"] = "ok"
	}

	h.writeResponse(w, req, resp)
}

// GetProducts returns the supported product catalog
func (h *Handlers) GetProducts(w http.ResponseWriter, req *http.Request) {
	h.writeResponse(w, req, products.All())
}

// SiteStatus is one row of the /api/sites response.
type SiteStatus struct {
	config.SiteData
	Latest []database.SiteBandSummary `json:"latest,omitempty"`
}

// GetSites returns the configured sites with their latest stored composite
// per band.
func (h *Handlers) GetSites(w http.ResponseWriter, req *http.Request) {
	var summaries []database.SiteBandSummary
	if h.controller.DBEnabled {
		if err := h.controller.DB.DB.Find(&summaries).Error; err != nil {
			log.Errorf("error querying latest-sample view: %v", err)
		}
	}

	bySite := make(map[string][]database.SiteBandSummary)
	for _, s := range summaries {
		bySite[s.SiteName] = append(bySite[s.SiteName], s)
	}

	out := make([]SiteStatus, 0, len(h.controller.Sites))
	for _, site := range h.controller.Sites {
		out = append(out, SiteStatus{SiteData: site, Latest: bySite[site.Name]})
	}

	h.writeResponse(w, req, out)
}

// GetSiteSeries returns the stored sample series of one pixel of a site.
// Time bounds come from either ?span= (a Go duration reaching back from
// now) or ?start=/?end= (RFC3339 dates or archive A-dates).
func (h *Handlers) GetSiteSeries(w http.ResponseWriter, req *http.Request) {
	if !h.controller.DBEnabled {
		h.formatter.WriteError(w, req, http.StatusServiceUnavailable, "no storage backend configured")
		return
	}

	site := h.controller.siteConfig(mux.Vars(req)["site"])
	if site == nil {
		h.formatter.WriteError(w, req, http.StatusNotFound, "unknown site")
		return
	}

	band := req.URL.Query().Get("band")
	if band == "" {
		if len(site.Bands) > 0 {
			band = site.Bands[0]
		} else {
			h.formatter.WriteError(w, req, http.StatusBadRequest, "band parameter is required")
			return
		}
	}

	start, end, err := h.parseTimeBounds(req)
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, err.Error())
		return
	}

	pixel, meta, err := h.resolvePixel(req, site.Name, band)
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusNotFound, err.Error())
		return
	}

	var samples []types.Sample
	err = h.controller.DB.DB.
		Where("sitename = ?", site.Name).
		Where("band = ?", band).
		Where("pixelindex = ?", pixel).
		Where("time >= ? AND time <= ?", start, end).
		Order("time").
		Find(&samples).Error
	if err != nil {
		log.Errorf("error fetching series for site %s: %v", site.Name, err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, "error fetching series")
		return
	}

	h.writeResponse(w, req, map[string]any{
		"site":    site.Name,
		"band":    band,
		"pixel":   pixel,
		"meta":    meta,
		"samples": samples,
	})
}

// GetSiteGrid returns the full subset grid of one composite date. Pixels
// with no stored sample come back as null.
func (h *Handlers) GetSiteGrid(w http.ResponseWriter, req *http.Request) {
	if !h.controller.DBEnabled {
		h.formatter.WriteError(w, req, http.StatusServiceUnavailable, "no storage backend configured")
		return
	}

	site := h.controller.siteConfig(mux.Vars(req)["site"])
	if site == nil {
		h.formatter.WriteError(w, req, http.StatusNotFound, "unknown site")
		return
	}

	band := req.URL.Query().Get("band")
	if band == "" && len(site.Bands) > 0 {
		band = site.Bands[0]
	}

	dateStr := req.URL.Query().Get("date")
	if dateStr == "" {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "date parameter is required (A2023145 or 2023-05-25)")
		return
	}
	date, err := parseFlexibleDate(dateStr)
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, err.Error())
		return
	}

	var samples []types.Sample
	err = h.controller.DB.DB.
		Where("sitename = ?", site.Name).
		Where("band = ?", band).
		Where("time = ?", date).
		Order("pixelindex").
		Find(&samples).Error
	if err != nil {
		log.Errorf("error fetching grid for site %s: %v", site.Name, err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, "error fetching grid")
		return
	}
	if len(samples) == 0 {
		h.formatter.WriteError(w, req, http.StatusNotFound, "no samples stored for that composite date")
		return
	}

	meta := samples[0].Meta()
	values := make([][]*float64, meta.NRows)
	ranks := make([][]*int, meta.NRows)
	for r := range values {
		values[r] = make([]*float64, meta.NCols)
		ranks[r] = make([]*int, meta.NCols)
	}
	for i := range samples {
		row, col := meta.RowCol(samples[i].PixelIndex)
		if row < 0 || row >= meta.NRows || col < 0 || col >= meta.NCols {
			continue
		}
		values[row][col] = &samples[i].Value
		ranks[row][col] = &samples[i].QCRank
	}

	h.writeResponse(w, req, map[string]any{
		"site":     site.Name,
		"band":     band,
		"date":     date,
		"meta":     meta,
		"values":   values,
		"qc_ranks": ranks,
	})
}

// GetSitePhenology returns the cached season metrics of a site. Site-level
// rows are the default; ?pixel= selects one pixel's rows instead.
func (h *Handlers) GetSitePhenology(w http.ResponseWriter, req *http.Request) {
	if !h.controller.DBEnabled {
		h.formatter.WriteError(w, req, http.StatusServiceUnavailable, "no storage backend configured")
		return
	}

	site := h.controller.siteConfig(mux.Vars(req)["site"])
	if site == nil {
		h.formatter.WriteError(w, req, http.StatusNotFound, "unknown site")
		return
	}

	// Site-level season metrics are stored under pixel index -1.
	pixel := -1
	if p := req.URL.Query().Get("pixel"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 0 {
			h.formatter.WriteError(w, req, http.StatusBadRequest, "invalid pixel index")
			return
		}
		pixel = parsed
	}

	query := h.controller.DB.DB.
		Where("site_name = ?", site.Name).
		Where("pixel_index = ?", pixel)

	if band := req.URL.Query().Get("band"); band != "" {
		query = query.Where("band = ?", band)
	}
	if year := req.URL.Query().Get("year"); year != "" {
		parsed, err := strconv.Atoi(year)
		if err != nil {
			h.formatter.WriteError(w, req, http.StatusBadRequest, "invalid year")
			return
		}
		query = query.Where("season_year = ?", parsed)
	}

	var records []database.SeasonMetricsRecord
	if err := query.Order("band, season_year").Find(&records).Error; err != nil {
		log.Errorf("error fetching season metrics for site %s: %v", site.Name, err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, "error fetching season metrics")
		return
	}

	h.writeResponse(w, req, map[string]any{
		"site":    site.Name,
		"seasons": records,
	})
}

// parseTimeBounds resolves the series time window from the request: span
// wins when present, explicit start/end otherwise, a default span when
// neither is given.
func (h *Handlers) parseTimeBounds(req *http.Request) (time.Time, time.Time, error) {
	q := req.URL.Query()
	now := time.Now().UTC()

	if spanStr := q.Get("span"); spanStr != "" {
		span, err := time.ParseDuration(spanStr)
		if err != nil {
			return time.Time{}, time.Time{}, errInvalidSpan
		}
		if span <= 0 || span > maxSpan {
			return time.Time{}, time.Time{}, errSpanTooLong
		}
		return now.Add(-span), now, nil
	}

	start := now.Add(-defaultSpan)
	end := now
	var err error

	if s := q.Get("start"); s != "" {
		if start, err = parseFlexibleDate(s); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if e := q.Get("end"); e != "" {
		if end, err = parseFlexibleDate(e); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errBackwardsRange
	}
	return start, end, nil
}

// resolvePixel picks the grid pixel for a series request: an explicit
// ?pixel= index, the center of the subset otherwise.
func (h *Handlers) resolvePixel(req *http.Request, siteName, band string) (int, types.SubsetMeta, error) {
	var latest types.Sample
	err := h.controller.DB.DB.
		Where("sitename = ?", siteName).
		Where("band = ?", band).
		Order("time DESC").
		Limit(1).
		Find(&latest).Error
	if err != nil || latest.SiteName == "" {
		return 0, types.SubsetMeta{}, errNoSamples
	}

	meta := latest.Meta()
	if p := req.URL.Query().Get("pixel"); p != "" {
		pixel, err := strconv.Atoi(p)
		if err != nil || pixel < 0 || pixel >= meta.Pixels() {
			return 0, meta, errBadPixel
		}
		return pixel, meta, nil
	}
	return (meta.NRows/2)*meta.NCols + meta.NCols/2, meta, nil
}

// parseFlexibleDate accepts archive A-dates (A2023145), plain dates
// (2023-05-25), and full RFC3339 timestamps.
func parseFlexibleDate(s string) (time.Time, error) {
	if len(s) == 8 && s[0] == 'A' {
		return products.ParseModisDate(s)
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, errBadDate
}
