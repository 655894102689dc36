package phenocam

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ROIStatsRow is one 3-day summary record from a roistats file. Rows whose
// gcc_90 column is NA carry no observation and are dropped by the parser.
type ROIStatsRow struct {
	Date        time.Time
	DOY         int
	ImageCount  int
	GCC90       float64
	SnowFlag    bool
	OutlierFlag bool
}

// ParseROIStats parses a PhenoCam roistats 3-day summary file. The files
// open with '#' metadata lines, then a CSV header naming the columns;
// column order varies between archive generations, so fields are located
// by name.
func ParseROIStats(r io.Reader) ([]ROIStatsRow, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("could not parse roistats file: %v", err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("roistats file has no header row")
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[name] = i
	}
	for _, required := range []string{"date", "doy", "gcc_90"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("roistats file missing %q column", required)
		}
	}

	var rows []ROIStatsRow
	for _, record := range records[1:] {
		gcc, ok := parseFloatField(record, col, "gcc_90")
		if !ok {
			continue
		}

		date, err := time.Parse("2006-01-02", field(record, col, "date"))
		if err != nil {
			return nil, fmt.Errorf("invalid roistats date %q: %v", field(record, col, "date"), err)
		}
		doy, err := strconv.Atoi(field(record, col, "doy"))
		if err != nil {
			return nil, fmt.Errorf("invalid roistats doy %q: %v", field(record, col, "doy"), err)
		}

		row := ROIStatsRow{
			Date:        date.UTC(),
			DOY:         doy,
			GCC90:       gcc,
			SnowFlag:    flagSet(record, col, "snow_flag"),
			OutlierFlag: flagSet(record, col, "outlierflag_gcc_90"),
		}
		if n, ok := parseFloatField(record, col, "image_count"); ok {
			row.ImageCount = int(n)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func field(record []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func parseFloatField(record []string, col map[string]int, name string) (float64, bool) {
	raw := field(record, col, name)
	if raw == "" || raw == "NA" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// flagSet treats "1" as set; "0", "NA", and absent columns are clear.
func flagSet(record []string, col map[string]int, name string) bool {
	return field(record, col, name) == "1"
}
