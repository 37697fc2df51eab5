package bus

import (
	"errors"
	"strings"
	"time"

	"bus-track/internal/domain/geo"
)

// Bus is the canonical live record for a single vehicle. It is created on the
// first accepted driver event, mutated only by driver ingress and the
// staleness worker, and never deleted.
type Bus struct {
	BusID        string
	RouteID      string
	DriverID     string
	Online       bool
	Location     *Location // nil until the first accepted sample
	SpeedKmh     float64
	HeadingDeg   float64
	LastOnlineAt *time.Time // nil until the first transition to online
	LastUpdateAt time.Time
	Status       Status
}

// Location is a WGS84 point.
type Location struct {
	Lng float64
	Lat float64
}

var ErrEmptyBusID = errors.New("bus_id cannot be empty")

// Validate checks invariants of the Bus entity.
func (b *Bus) Validate() error {
	if strings.TrimSpace(b.BusID) == "" {
		return ErrEmptyBusID
	}
	if b.Location != nil {
		if err := geo.ValidateCoord(b.Location.Lng, b.Location.Lat); err != nil {
			return err
		}
	}
	if err := geo.ValidateSpeed(b.SpeedKmh); err != nil {
		return err
	}
	if b.HeadingDeg < 0 || b.HeadingDeg >= 360 {
		return geo.ErrInvalidHeading
	}
	if !b.Status.Valid() {
		return ErrInvalidStatus
	}
	if b.LastOnlineAt != nil && b.LastUpdateAt.Before(*b.LastOnlineAt) {
		return errors.New("last_update_at cannot be before last_online_at")
	}
	return nil
}

// DeriveStatus maps a sample's speed to the stored movement status.
func DeriveStatus(speedKmh float64) Status {
	if speedKmh > 0 {
		return StatusMoving
	}
	return StatusStopped
}

// NormalizeHeading folds 360 back to 0 so stored headings stay in [0,360).
func NormalizeHeading(headingDeg float64) float64 {
	if headingDeg >= 360 {
		return headingDeg - 360
	}
	return headingDeg
}
