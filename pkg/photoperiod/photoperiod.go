// Package photoperiod computes solar declination and daylength for a
// latitude and date, using the low-precision solar position series from
// Meeus, Astronomical Algorithms, ch. 25. Accuracy is a few minutes of
// daylength, plenty for seasonality work.
package photoperiod

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func radToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }
func fixAngle(a float64) float64   { return a - 360.0*math.Floor(a/360.0) }

// Declination returns the solar declination in degrees at 12:00 UTC on the
// given date. Positive values mean the Sun is north of the celestial
// equator.
func Declination(date time.Time) float64 {
	t := time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, time.UTC)
	jd := julian.TimeToJD(t)
	T := (jd - 2451545.0) / 36525.0

	L0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))
	M := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))
	C := math.Sin(degToRad(M))*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(degToRad(2*M))*(0.019993-T*0.000101) +
		math.Sin(degToRad(3*M))*0.000289
	sunLong := L0 + C
	omega := 125.04 - 1934.136*T
	lambda := sunLong - 0.00569 - 0.00478*math.Sin(degToRad(omega))
	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60

	return radToDeg(math.Asin(math.Sin(degToRad(eps0)) * math.Sin(degToRad(lambda))))
}

// Daylength returns the hours between sunrise and sunset for the latitude
// and date. Polar day returns 24 and polar night returns 0.
func Daylength(latitude float64, date time.Time) float64 {
	declRad := degToRad(Declination(date))
	latRad := degToRad(latitude)

	// Hour angle at the horizon: cos(H) = -tan(lat) * tan(decl)
	cosH := -math.Tan(latRad) * math.Tan(declRad)
	if cosH <= -1.0 {
		return 24.0 // sun never sets
	}
	if cosH >= 1.0 {
		return 0.0 // sun never rises
	}

	haDeg := radToDeg(math.Acos(cosH))
	return 2.0 * haDeg / 15.0 // 15 degrees of hour angle per hour
}

// DaylengthAtDOY is Daylength keyed by year and day-of-year, the form the
// phenology metrics use.
func DaylengthAtDOY(latitude float64, year, doy int) float64 {
	date := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy-1)
	return Daylength(latitude, date)
}
