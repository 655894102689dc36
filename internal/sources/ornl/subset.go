package ornl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/khufkens/greenwave/internal/sources"
	"github.com/sony/gobreaker"
)

// DefaultBaseURL is the subset archive's REST service.
const DefaultBaseURL = "https://modis.ornl.gov/rst/api/v1"

// maxDatesPerRequest is the archive's hard cap on composite dates per
// subset call. Longer ranges are fetched in chunks.
const maxDatesPerRequest = 10

// Client talks to the subset archive's REST service.
type Client struct {
	baseURL string
	httpCfg sources.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewClient creates a subset archive client. An empty baseURL selects the
// production service.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ornl-subset",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		baseURL: baseURL,
		httpCfg: sources.HTTPClientConfig{
			// Large subsets can take the archive a while to cut.
			Client: &http.Client{Timeout: 120 * time.Second},
			Backoff: sources.BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     10 * time.Second,
			},
		},
		circuit: cb,
	}
}

// CompositeDate is one entry of the archive's date listing.
type CompositeDate struct {
	ModisDate    string `json:"modis_date"`
	CalendarDate string `json:"calendar_date"`
}

// Dates returns every composite date the archive holds for a product at a
// coordinate, oldest first.
func (c *Client) Dates(ctx context.Context, product string, lat, lon float64) ([]CompositeDate, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))

		u := fmt.Sprintf("%s/%s/dates?%s", c.baseURL, product, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := sources.DoRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return nil, fmt.Errorf("dates request for %s failed: %w", product, err)
	}
	defer resp.Body.Close()

	var payload struct {
		Dates []CompositeDate `json:"dates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("could not decode dates response: %v", err)
	}

	return payload.Dates, nil
}

// SubsetRequest names one band's subset over an inclusive composite date
// range. Band is the archive layer name, dates are in AYYYYDDD form.
type SubsetRequest struct {
	Product      string
	Band         string
	Latitude     float64
	Longitude    float64
	StartDate    string
	EndDate      string
	KmAboveBelow int
	KmLeftRight  int
}

// SubsetResponse mirrors the archive's subset payload. The archive serves
// grid geometry as strings; ParseGeometry converts them.
type SubsetResponse struct {
	XLLCorner string        `json:"xllcorner"`
	YLLCorner string        `json:"yllcorner"`
	Cellsize  string        `json:"cellsize"`
	NRows     int           `json:"nrows"`
	NCols     int           `json:"ncols"`
	Band      string        `json:"band"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Subset    []SubsetSlice `json:"subset"`
}

// SubsetSlice is one composite date's pixel values in row-major order.
type SubsetSlice struct {
	ModisDate    string    `json:"modis_date"`
	CalendarDate string    `json:"calendar_date"`
	Band         string    `json:"band"`
	Tile         string    `json:"tile"`
	ProcDate     string    `json:"proc_date"`
	Data         []float64 `json:"data"`
}

// ParseGeometry converts the string-typed grid geometry fields.
func (r *SubsetResponse) ParseGeometry() (xll, yll, cellsize float64, err error) {
	if r.XLLCorner != "" {
		if xll, err = strconv.ParseFloat(r.XLLCorner, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("invalid xllcorner %q: %v", r.XLLCorner, err)
		}
	}
	if r.YLLCorner != "" {
		if yll, err = strconv.ParseFloat(r.YLLCorner, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("invalid yllcorner %q: %v", r.YLLCorner, err)
		}
	}
	if r.Cellsize != "" {
		if cellsize, err = strconv.ParseFloat(r.Cellsize, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("invalid cellsize %q: %v", r.Cellsize, err)
		}
	}
	return xll, yll, cellsize, nil
}

// Subset fetches one band's subset. The request must not span more than
// maxDatesPerRequest composite dates.
func (c *Client) Subset(ctx context.Context, req SubsetRequest) (*SubsetResponse, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(req.Latitude, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(req.Longitude, 'f', -1, 64))
		values.Set("band", req.Band)
		values.Set("startDate", req.StartDate)
		values.Set("endDate", req.EndDate)
		values.Set("kmAboveBelow", strconv.Itoa(req.KmAboveBelow))
		values.Set("kmLeftRight", strconv.Itoa(req.KmLeftRight))

		u := fmt.Sprintf("%s/%s/subset?%s", c.baseURL, req.Product, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := sources.DoRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return nil, fmt.Errorf("subset request for %s/%s failed: %w", req.Product, req.Band, err)
	}
	defer resp.Body.Close()

	var payload SubsetResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("could not decode subset response: %v", err)
	}

	return &payload, nil
}

// chunkDates splits a date listing into archive-sized request windows.
func chunkDates(dates []CompositeDate) [][]CompositeDate {
	var chunks [][]CompositeDate
	for len(dates) > 0 {
		n := len(dates)
		if n > maxDatesPerRequest {
			n = maxDatesPerRequest
		}
		chunks = append(chunks, dates[:n])
		dates = dates[n:]
	}
	return chunks
}
