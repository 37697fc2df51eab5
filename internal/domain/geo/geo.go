package geo

import (
	"errors"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used for all distance math.
const EarthRadiusMeters = 6371000.0

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
	ErrInvalidSpeed     = errors.New("speed must be between 0 and 200 km/h")
	ErrInvalidHeading   = errors.New("heading must be between 0 and 360 degrees")
	ErrBadRange         = errors.New("search radius out of range")
)

// ValidateCoord checks longitude/latitude ranges.
func ValidateCoord(lng, lat float64) error {
	if lat < -90 || lat > 90 || math.IsNaN(lat) {
		return ErrInvalidLatitude
	}
	if lng < -180 || lng > 180 || math.IsNaN(lng) {
		return ErrInvalidLongitude
	}
	return nil
}

// ValidateSpeed checks the accepted speed range in km/h.
func ValidateSpeed(speedKmh float64) error {
	if speedKmh < 0 || speedKmh > 200 || math.IsNaN(speedKmh) {
		return ErrInvalidSpeed
	}
	return nil
}

// ValidateHeading checks the accepted heading range in degrees.
// 360 is accepted on input and normalized to 0 by callers.
func ValidateHeading(headingDeg float64) error {
	if headingDeg < 0 || headingDeg > 360 || math.IsNaN(headingDeg) {
		return ErrInvalidHeading
	}
	return nil
}

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(lng1, lat1, lng2, lat2 float64) float64 {
	a1 := lat1 * math.Pi / 180
	a2 := lat2 * math.Pi / 180
	da := (lat2 - lat1) * math.Pi / 180
	db := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(da/2)*math.Sin(da/2) +
		math.Cos(a1)*math.Cos(a2)*math.Sin(db/2)*math.Sin(db/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}
