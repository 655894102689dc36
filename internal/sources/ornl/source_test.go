package ornl

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/khufkens/greenwave/internal/types"
	"github.com/khufkens/greenwave/pkg/config"
	"github.com/khufkens/greenwave/pkg/products"
	"go.uber.org/zap"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestChunkDates(t *testing.T) {
	makeDates := func(n int) []CompositeDate {
		dates := make([]CompositeDate, n)
		for i := range dates {
			dates[i] = CompositeDate{ModisDate: fmt.Sprintf("A2023%03d", i+1)}
		}
		return dates
	}

	tests := []struct {
		n    int
		want []int
	}{
		{0, nil},
		{7, []int{7}},
		{10, []int{10}},
		{23, []int{10, 10, 3}},
	}

	for _, tt := range tests {
		chunks := chunkDates(makeDates(tt.n))
		if len(chunks) != len(tt.want) {
			t.Errorf("chunkDates(%d) produced %d chunks, want %d", tt.n, len(chunks), len(tt.want))
			continue
		}
		for i, chunk := range chunks {
			if len(chunk) != tt.want[i] {
				t.Errorf("chunkDates(%d) chunk %d has %d dates, want %d", tt.n, i, len(chunk), tt.want[i])
			}
		}
	}
}

func TestFilterDatesAfter(t *testing.T) {
	dates := []CompositeDate{
		{ModisDate: "A2023129"},
		{ModisDate: "A2023145"},
		{ModisDate: "A2023161"},
		{ModisDate: "not-a-date"},
	}
	start, err := products.ParseModisDate("A2023145")
	if err != nil {
		t.Fatal(err)
	}

	got := filterDatesAfter(dates, start)
	if len(got) != 1 || got[0].ModisDate != "A2023161" {
		t.Errorf("filterDatesAfter = %v, want only A2023161", got)
	}
}

func testSource(t *testing.T, baseURL string) *Source {
	t.Helper()

	product, err := products.Lookup("MOD13Q1")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	client := NewClient(baseURL)
	// Keep retries fast under test.
	client.httpCfg.Backoff.InitialInterval = 2 * time.Millisecond

	return &Source{
		ctx:     ctx,
		cancel:  cancel,
		product: product,
		config: config.SiteData{
			Name:         "harvard",
			Type:         config.SiteTypeORNL,
			Latitude:     42.5378,
			Longitude:    -72.1715,
			Product:      "MOD13Q1",
			Bands:        []string{"NDVI"},
			KmAboveBelow: 1,
			KmLeftRight:  1,
		},
		SampleDistributor: make(chan types.Sample, 100),
		logger:            zap.NewNop().Sugar(),
		client:            client,
	}
}

func TestConvertSubset(t *testing.T) {
	s := testSource(t, "")
	band, err := s.product.Band("NDVI")
	if err != nil {
		t.Fatal(err)
	}

	resp := &SubsetResponse{
		XLLCorner: "-7599073.22",
		YLLCorner: "4715352.70",
		Cellsize:  "231.656358",
		NRows:     2,
		NCols:     2,
		Band:      band.Name,
		Subset: []SubsetSlice{
			{
				ModisDate:    "A2023145",
				CalendarDate: "2023-05-25",
				Tile:         "h12v04",
				ProcDate:     "2023162204100",
				Data:         []float64{4523, -3000, 8100, 2000},
			},
			{
				ModisDate:    "A2023161",
				CalendarDate: "2023-06-10",
				Tile:         "h12v04",
				ProcDate:     "2023178204100",
				Data:         []float64{5000, 5100, 5200, 5300},
			},
		},
	}
	qc := map[string][]int{
		"A2023145": {products.RankGood, products.RankSnow, products.RankMarginal, products.RankBad},
	}

	samples, err := s.convertSubset(resp, "NDVI", band, qc, "testrun1")
	if err != nil {
		t.Fatalf("convertSubset: %v", err)
	}
	if len(samples) != 8 {
		t.Fatalf("got %d samples, want 8", len(samples))
	}

	first := samples[0]
	if !first.Time.Equal(time.Date(2023, 5, 25, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Time = %v, want 2023-05-25", first.Time)
	}
	if first.CompositeDOY != 145 {
		t.Errorf("CompositeDOY = %d, want 145", first.CompositeDOY)
	}
	if !almostEqual(first.Value, 0.4523) || first.QCRank != products.RankGood {
		t.Errorf("pixel 0 = %v rank %d, want 0.4523 rank %d", first.Value, first.QCRank, products.RankGood)
	}
	if first.SiteName != "harvard" || first.Source != "ornl" || first.Band != "NDVI" {
		t.Errorf("identity = %s/%s/%s, want harvard/ornl/NDVI", first.SiteName, first.Source, first.Band)
	}
	if first.XLLCorner != -7599073.22 || first.YLLCorner != 4715352.70 || first.CellsizeM != 231.656358 {
		t.Errorf("geometry = %v/%v/%v not parsed from strings", first.XLLCorner, first.YLLCorner, first.CellsizeM)
	}
	if first.SubsetRows != 2 || first.SubsetCols != 2 {
		t.Errorf("grid = %dx%d, want 2x2", first.SubsetRows, first.SubsetCols)
	}
	if first.RunID != "testrun1" {
		t.Errorf("RunID = %q, want testrun1", first.RunID)
	}

	// Fill pixel stores value 0 at the worst rank even though the QC word
	// said snow.
	fill := samples[1]
	if fill.Value != 0 || fill.QCRank != products.RankBad {
		t.Errorf("fill pixel = %v rank %d, want 0 rank %d", fill.Value, fill.QCRank, products.RankBad)
	}
	if fill.RawValue != -3000 {
		t.Errorf("fill RawValue = %v, want -3000", fill.RawValue)
	}

	// Second date has no QC slice; valid pixels default to rank good.
	second := samples[4]
	if second.QCRank != products.RankGood {
		t.Errorf("unranked pixel rank = %d, want %d", second.QCRank, products.RankGood)
	}
	if second.PixelIndex != 0 {
		t.Errorf("pixel index restarts per date: got %d, want 0", second.PixelIndex)
	}
}

func TestConvertSubsetRejectsBadGeometry(t *testing.T) {
	s := testSource(t, "")
	band, err := s.product.Band("NDVI")
	if err != nil {
		t.Fatal(err)
	}

	resp := &SubsetResponse{XLLCorner: "not-a-number", NRows: 1, NCols: 1}
	if _, err := s.convertSubset(resp, "NDVI", band, nil, "run"); err == nil {
		t.Error("convertSubset accepted malformed geometry")
	}
}

const testDatesJSON = `{"dates": [
	{"modis_date": "A2023145", "calendar_date": "2023-05-25"},
	{"modis_date": "A2023161", "calendar_date": "2023-06-10"}
]}`

func testSubsetJSON(band string, data1, data2 string) string {
	return fmt.Sprintf(`{
		"xllcorner": "-7599073.22",
		"yllcorner": "4715352.70",
		"cellsize": "231.656358",
		"nrows": 2,
		"ncols": 2,
		"band": %q,
		"latitude": 42.5378,
		"longitude": -72.1715,
		"subset": [
			{"modis_date": "A2023145", "calendar_date": "2023-05-25", "band": %q, "tile": "h12v04", "proc_date": "2023162204100", "data": %s},
			{"modis_date": "A2023161", "calendar_date": "2023-06-10", "band": %q, "tile": "h12v04", "proc_date": "2023178204100", "data": %s}
		]
	}`, band, band, data1, band, data2)
}

func newTestArchive(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/MOD13Q1/dates", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testDatesJSON)
	})
	mux.HandleFunc("/MOD13Q1/subset", func(w http.ResponseWriter, r *http.Request) {
		band := r.URL.Query().Get("band")
		switch {
		case strings.Contains(band, "Quality"):
			fmt.Fprint(w, testSubsetJSON(band, "[0, 2, 1, 3]", "[0, 0, 0, 0]"))
		case strings.Contains(band, "NDVI"):
			fmt.Fprint(w, testSubsetJSON(band, "[4523, -3000, 8100, 2000]", "[5000, 5100, 5200, 5300]"))
		default:
			http.NotFound(w, r)
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClientDates(t *testing.T) {
	server := newTestArchive(t)
	client := NewClient(server.URL)

	dates, err := client.Dates(context.Background(), "MOD13Q1", 42.5378, -72.1715)
	if err != nil {
		t.Fatalf("Dates: %v", err)
	}
	if len(dates) != 2 || dates[0].ModisDate != "A2023145" || dates[1].CalendarDate != "2023-06-10" {
		t.Errorf("Dates = %v, want the two archive entries", dates)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "upstream hiccup", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, testDatesJSON)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.httpCfg.Backoff.InitialInterval = 2 * time.Millisecond

	dates, err := client.Dates(context.Background(), "MOD13Q1", 42.5378, -72.1715)
	if err != nil {
		t.Fatalf("Dates after retries: %v", err)
	}
	if len(dates) != 2 {
		t.Errorf("got %d dates, want 2", len(dates))
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("archive called %d times, want 3", got)
	}
}

func TestFetchChunkMergesQualityAndBands(t *testing.T) {
	server := newTestArchive(t)
	s := testSource(t, server.URL)

	chunk := []CompositeDate{
		{ModisDate: "A2023145", CalendarDate: "2023-05-25"},
		{ModisDate: "A2023161", CalendarDate: "2023-06-10"},
	}

	sent, err := s.fetchChunk(chunk, "run42")
	if err != nil {
		t.Fatalf("fetchChunk: %v", err)
	}
	if sent != 8 {
		t.Fatalf("sent %d samples, want 8", sent)
	}

	var samples []types.Sample
	for len(s.SampleDistributor) > 0 {
		samples = append(samples, <-s.SampleDistributor)
	}
	if len(samples) != 8 {
		t.Fatalf("distributor holds %d samples, want 8", len(samples))
	}

	// QC word 2 on pixel 1 of the first date decodes to the snow rank, and
	// the raw value is valid, so fill handling must not override it.
	px1 := samples[1]
	if px1.QCRank != products.RankBad {
		t.Errorf("fill pixel rank = %d, want %d", px1.QCRank, products.RankBad)
	}
	px2 := samples[2]
	if px2.QCRank != products.RankMarginal {
		t.Errorf("pixel 2 rank = %d, want %d", px2.QCRank, products.RankMarginal)
	}
	if !almostEqual(px2.Value, 0.81) {
		t.Errorf("pixel 2 value = %v, want 0.81", px2.Value)
	}
}
