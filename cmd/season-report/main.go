// season-report is an offline analysis tool: it loads a stored
// vegetation-index series straight from the database, runs the phenology
// pipeline at several smoothing windows, and reports per-season dates plus
// a long-term trend of season start.
package main

import (
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"gonum.org/v1/gonum/stat"

	"github.com/khufkens/greenwave/internal/phenology"
)

// SeasonRow is one season-year's report line for one smoothing window.
type SeasonRow struct {
	Window     int
	SeasonYear int
	SOSDay     float64
	SOSDate    time.Time
	EOSDay     float64
	EOSDate    time.Time
	LOSDays    float64
	PeakDay    float64
	PeakValue  float64
	Amplitude  float64
	Skipped    string
}

func main() {
	var (
		dbHost    = flag.String("db-host", "localhost", "Database host")
		dbPort    = flag.Int("db-port", 5432, "Database port")
		dbUser    = flag.String("db-user", "postgres", "Database user")
		dbPass    = flag.String("db-pass", "", "Database password")
		dbName    = flag.String("db-name", "greenwave", "Database name")
		site      = flag.String("site", "", "Site name (required)")
		band      = flag.String("band", "NDVI", "Band name")
		pixel     = flag.Int("pixel", -1, "Pixel index, -1 for the subset center")
		latitude  = flag.Float64("latitude", 45.0, "Site latitude, drives season-year assignment")
		windows   = flag.String("windows", "5,7,9", "Comma-separated Savitzky-Golay windows to compare")
		threshold = flag.Float64("threshold", 0.50, "Amplitude fraction the reported SOS/EOS dates use")
		csvOutput = flag.String("csv", "", "Optional CSV output file path")
	)
	flag.Parse()

	if *site == "" {
		fmt.Fprintf(os.Stderr, "Error: -site is required\n")
		os.Exit(1)
	}

	windowList, err := parseWindows(*windows)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		*dbHost, *dbPort, *dbUser, *dbPass, *dbName)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "Error pinging database: %v\n", err)
		os.Exit(1)
	}

	pixelIndex := *pixel
	if pixelIndex < 0 {
		pixelIndex, err = centerPixel(db, *site, *band)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resolving center pixel: %v\n", err)
			os.Exit(1)
		}
	}

	series, err := fetchSeries(db, *site, *band, pixelIndex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching series: %v\n", err)
		os.Exit(1)
	}
	if series.Len() < 23 {
		fmt.Fprintf(os.Stderr, "Error: only %d composites stored; need at least a year\n", series.Len())
		os.Exit(1)
	}

	fmt.Printf("Season Report\n")
	fmt.Printf("=============\n\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Site:       %s\n", *site)
	fmt.Printf("  Band:       %s\n", *band)
	fmt.Printf("  Pixel:      %d\n", pixelIndex)
	fmt.Printf("  Latitude:   %.4f\n", *latitude)
	fmt.Printf("  Threshold:  %.2f\n", *threshold)
	fmt.Printf("  Composites: %d (%s .. %s)\n\n", series.Len(),
		series.Dates[0].Format("2006-01-02"),
		series.Dates[series.Len()-1].Format("2006-01-02"))

	var allRows []SeasonRow
	for _, w := range windowList {
		rows, err := seasonsForWindow(series, w, *latitude, *threshold)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Window %d skipped: %v\n\n", w, err)
			continue
		}
		displayWindow(w, rows)
		allRows = append(allRows, rows...)
	}

	// The trend is computed at the middle window so a deliberately
	// over- or under-smoothed comparison run does not skew it.
	trendWindow := windowList[len(windowList)/2]
	years, sosDays := trendInput(allRows, trendWindow)
	if len(years) >= 3 {
		perDecade, r2 := sosTrend(years, sosDays)
		fmt.Printf("SOS trend (window %d, threshold %.2f):\n", trendWindow, *threshold)
		fmt.Printf("  %+.2f days/decade over %d seasons (R² = %.3f)\n\n", perDecade, len(years), r2)
	} else {
		fmt.Printf("SOS trend: not enough seasons with a crossing (%d)\n\n", len(years))
	}

	if *csvOutput != "" {
		if err := exportCSV(*csvOutput, allRows); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
		} else {
			fmt.Printf("Data exported to: %s\n", *csvOutput)
		}
	}
}

func parseWindows(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		w, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid window %q", p)
		}
		if w < 3 || w%2 == 0 {
			return nil, fmt.Errorf("window %d must be odd and >= 3", w)
		}
		out = append(out, w)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no windows given")
	}
	return out, nil
}

// centerPixel finds the center of the subset grid from the newest stored row.
func centerPixel(db *sql.DB, site, band string) (int, error) {
	var rows, cols int
	err := db.QueryRow(`
		SELECT subsetrows, subsetcols
		FROM vi_samples
		WHERE sitename = $1 AND band = $2
		ORDER BY time DESC
		LIMIT 1
	`, site, band).Scan(&rows, &cols)
	if err != nil {
		return 0, err
	}
	if rows < 1 || cols < 1 {
		return 0, nil
	}
	return (rows/2)*cols + cols/2, nil
}

func fetchSeries(db *sql.DB, site, band string, pixel int) (phenology.Series, error) {
	rows, err := db.Query(`
		SELECT time, value, qcrank
		FROM vi_samples
		WHERE sitename = $1 AND band = $2 AND pixelindex = $3
		ORDER BY time
	`, site, band, pixel)
	if err != nil {
		return phenology.Series{}, err
	}
	defer rows.Close()

	var s phenology.Series
	for rows.Next() {
		var t time.Time
		var v float64
		var rank int
		if err := rows.Scan(&t, &v, &rank); err != nil {
			return phenology.Series{}, err
		}
		s.Dates = append(s.Dates, t)
		s.Values = append(s.Values, v)
		s.Ranks = append(s.Ranks, rank)
	}
	return s, rows.Err()
}

func seasonsForWindow(series phenology.Series, window int, latitude, threshold float64) ([]SeasonRow, error) {
	params := phenology.DefaultParams()
	params.Window = window
	if params.PolyOrder >= window {
		params.PolyOrder = window - 2
	}
	params.Thresholds = []float64{threshold}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	processed, err := phenology.ProcessSeries(series, params)
	if err != nil {
		return nil, err
	}

	var out []SeasonRow
	for _, year := range phenology.SeasonYears(series.Dates, latitude) {
		row := SeasonRow{Window: window, SeasonYear: year}

		m, err := phenology.ComputeSeason(series, processed, year, latitude, params)
		if err != nil {
			row.Skipped = err.Error()
			out = append(out, row)
			continue
		}

		row.PeakDay = m.PeakDay
		row.PeakValue = m.PeakValue
		row.Amplitude = m.Amplitude

		if c, ok := m.Crossings[phenology.CrossingKey(threshold)]; ok {
			row.SOSDay = c.SOSDay
			row.SOSDate = c.SOSDate
			row.EOSDay = c.EOSDay
			row.EOSDate = c.EOSDate
			row.LOSDays = c.LOSDays
		} else {
			row.Skipped = "threshold never crossed"
		}
		out = append(out, row)
	}
	return out, nil
}

func displayWindow(window int, rows []SeasonRow) {
	fmt.Printf("Savitzky-Golay window %d:\n", window)
	fmt.Printf("  %-6s %-12s %-12s %6s %8s %8s %10s\n",
		"Year", "SOS", "EOS", "LOS", "PeakDay", "Peak", "Amplitude")

	for _, r := range rows {
		if r.Skipped != "" {
			fmt.Printf("  %-6d (skipped: %s)\n", r.SeasonYear, r.Skipped)
			continue
		}
		fmt.Printf("  %-6d %-12s %-12s %6.1f %8.1f %8.3f %10.3f\n",
			r.SeasonYear,
			r.SOSDate.Format("2006-01-02"),
			r.EOSDate.Format("2006-01-02"),
			r.LOSDays, r.PeakDay, r.PeakValue, r.Amplitude)
	}
	fmt.Println()
}

// trendInput collects (season-year, SOS day) pairs for one window,
// skipping seasons without a crossing.
func trendInput(rows []SeasonRow, window int) ([]float64, []float64) {
	var years, sos []float64
	for _, r := range rows {
		if r.Window != window || r.Skipped != "" {
			continue
		}
		years = append(years, float64(r.SeasonYear))
		sos = append(sos, r.SOSDay)
	}
	return years, sos
}

// sosTrend fits SOS day against season-year and reports the slope in days
// per decade together with the fit's R².
func sosTrend(years, sosDays []float64) (daysPerDecade, rSquared float64) {
	alpha, beta := stat.LinearRegression(years, sosDays, nil, false)
	rSquared = stat.RSquared(years, sosDays, nil, alpha, beta)
	if math.IsNaN(rSquared) {
		rSquared = 0
	}
	return beta * 10, rSquared
}

func exportCSV(path string, rows []SeasonRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{
		"window", "season_year", "sos_day", "sos_date", "eos_day", "eos_date",
		"los_days", "peak_day", "peak_value", "amplitude", "skipped",
	}); err != nil {
		return err
	}

	for _, r := range rows {
		sosDate, eosDate := "", ""
		if !r.SOSDate.IsZero() {
			sosDate = r.SOSDate.Format("2006-01-02")
		}
		if !r.EOSDate.IsZero() {
			eosDate = r.EOSDate.Format("2006-01-02")
		}
		record := []string{
			strconv.Itoa(r.Window),
			strconv.Itoa(r.SeasonYear),
			fmt.Sprintf("%.2f", r.SOSDay),
			sosDate,
			fmt.Sprintf("%.2f", r.EOSDay),
			eosDate,
			fmt.Sprintf("%.1f", r.LOSDays),
			fmt.Sprintf("%.1f", r.PeakDay),
			fmt.Sprintf("%.4f", r.PeakValue),
			fmt.Sprintf("%.4f", r.Amplitude),
			r.Skipped,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}
