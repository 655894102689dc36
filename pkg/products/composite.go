package products

import (
	"fmt"
	"strconv"
	"time"
)

// ParseModisDate parses a composite date in the archive's AYYYYDDD form
// (e.g. "A2018001") into a UTC calendar date.
func ParseModisDate(s string) (time.Time, error) {
	if len(s) != 8 || s[0] != 'A' {
		return time.Time{}, fmt.Errorf("invalid composite date %q: want AYYYYDDD", s)
	}
	year, err := strconv.Atoi(s[1:5])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid composite date %q: %v", s, err)
	}
	doy, err := strconv.Atoi(s[5:8])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid composite date %q: %v", s, err)
	}
	if doy < 1 || doy > 366 {
		return time.Time{}, fmt.Errorf("invalid composite date %q: day-of-year %d out of range", s, doy)
	}
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy-1)
	if t.Year() != year {
		return time.Time{}, fmt.Errorf("invalid composite date %q: day-of-year %d not in year %d", s, doy, year)
	}
	return t, nil
}

// FormatModisDate renders a date in the archive's AYYYYDDD form.
func FormatModisDate(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("A%04d%03d", t.Year(), t.YearDay())
}

// CompositeDates returns the start dates of every composite period of the
// product within the given calendar year, in order. The final period of a
// year is truncated at the year boundary rather than spilling into the next
// year, matching how the archive cuts composites.
func (p Product) CompositeDates(year int) []time.Time {
	if p.CompositeDays <= 0 {
		return nil
	}
	var dates []time.Time
	for doy := p.CompositeStartDOY; doy <= 365; doy += p.CompositeDays {
		dates = append(dates, time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy-1))
	}
	return dates
}

// CompositeContaining returns the start date of the composite period that
// contains t.
func (p Product) CompositeContaining(t time.Time) time.Time {
	t = t.UTC()
	dates := p.CompositeDates(t.Year())
	if len(dates) == 0 {
		return time.Time{}
	}
	// Dates before the year's first composite belong to the previous
	// year's final period.
	if t.Before(dates[0]) {
		prev := p.CompositeDates(t.Year() - 1)
		return prev[len(prev)-1]
	}
	last := dates[0]
	for _, d := range dates[1:] {
		if d.After(t) {
			break
		}
		last = d
	}
	return last
}

// NextComposite returns the start date of the first composite period that
// begins strictly after t.
func (p Product) NextComposite(t time.Time) time.Time {
	t = t.UTC()
	for _, d := range p.CompositeDates(t.Year()) {
		if d.After(t) {
			return d
		}
	}
	next := p.CompositeDates(t.Year() + 1)
	if len(next) == 0 {
		return time.Time{}
	}
	return next[0]
}
