package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/khufkens/greenwave/pkg/photoperiod"
)

func main() {
	var (
		latitude = flag.Float64("latitude", 45.0, "Latitude in decimal degrees, south negative")
		startStr = flag.String("start", "", "Start date (2006-01-02 format, defaults to Jan 1 of this year)")
		endStr   = flag.String("end", "", "End date (2006-01-02 format, defaults to Dec 31 of this year)")
		step     = flag.Int("step", 16, "Days between table rows")
	)
	flag.Parse()

	if *latitude < -90 || *latitude > 90 {
		fmt.Fprintf(os.Stderr, "Error: latitude must be in [-90, 90]\n")
		os.Exit(1)
	}
	if *step < 1 {
		fmt.Fprintf(os.Stderr, "Error: step must be at least 1 day\n")
		os.Exit(1)
	}

	year := time.Now().UTC().Year()
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)

	var err error
	if *startStr != "" {
		start, err = time.Parse("2006-01-02", *startStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing start date: %v\n", err)
			os.Exit(1)
		}
	}
	if *endStr != "" {
		end, err = time.Parse("2006-01-02", *endStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing end date: %v\n", err)
			os.Exit(1)
		}
	}
	if end.Before(start) {
		fmt.Fprintf(os.Stderr, "Error: end date precedes start date\n")
		os.Exit(1)
	}

	fmt.Printf("Daylength at latitude %.4f°\n\n", *latitude)
	fmt.Printf("%-12s %5s %12s %12s\n", "Date", "DOY", "Declination", "Daylength")

	for d := start; !d.After(end); d = d.AddDate(0, 0, *step) {
		decl := photoperiod.Declination(d)
		dl := photoperiod.Daylength(*latitude, d)

		hours := int(dl)
		minutes := int((dl - float64(hours)) * 60)
		fmt.Printf("%-12s %5d %11.2f° %9dh %02dm\n",
			d.Format("2006-01-02"), d.YearDay(), decl, hours, minutes)
	}
}
