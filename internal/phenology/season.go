package phenology

import "time"

// Growing seasons in the northern hemisphere align with the calendar year.
// South of the equator a season straddles the new year, so seasons run
// July 1 through June 30 and are labeled by the year the season ends in
// (the January year).

// SeasonYearOf returns the season-year a date belongs to for a site at the
// given latitude.
func SeasonYearOf(t time.Time, latitude float64) int {
	t = t.UTC()
	if latitude >= 0 {
		return t.Year()
	}
	if t.Month() >= time.July {
		return t.Year() + 1
	}
	return t.Year()
}

// SeasonStart returns the first day of the given season-year.
func SeasonStart(seasonYear int, latitude float64) time.Time {
	if latitude >= 0 {
		return time.Date(seasonYear, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(seasonYear-1, 7, 1, 0, 0, 0, 0, time.UTC)
}

// SeasonDay returns the 1-based day-of-season for a date. For northern
// sites this is the ordinary day-of-year.
func SeasonDay(t time.Time, latitude float64) float64 {
	start := SeasonStart(SeasonYearOf(t, latitude), latitude)
	return t.UTC().Sub(start).Hours()/24.0 + 1
}

// SeasonDate converts a fractional day-of-season back to a calendar time.
func SeasonDate(seasonYear int, latitude float64, day float64) time.Time {
	start := SeasonStart(seasonYear, latitude)
	return start.Add(time.Duration((day - 1) * 24 * float64(time.Hour)))
}
