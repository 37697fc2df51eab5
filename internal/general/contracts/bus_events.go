package contracts

import (
	"time"

	"bus-track/internal/domain/bus"
)

// BusSnapshot is the public wire form of a Bus record.
type BusSnapshot struct {
	BusID        string     `json:"bus_id"`
	RouteID      string     `json:"route_id"`
	DriverID     string     `json:"driver_id,omitempty"`
	Online       bool       `json:"online"`
	Location     *GeoPoint  `json:"location,omitempty"`
	SpeedKmh     float64    `json:"speed_kmh"`
	HeadingDeg   float64    `json:"heading_degrees"`
	LastOnlineAt *time.Time `json:"last_online_at,omitempty"`
	LastUpdateAt time.Time  `json:"last_update_at"`
	Status       string     `json:"status"`
}

// SnapshotFromBus converts the domain record into its wire form.
func SnapshotFromBus(b *bus.Bus) BusSnapshot {
	snap := BusSnapshot{
		BusID:        b.BusID,
		RouteID:      b.RouteID,
		DriverID:     b.DriverID,
		Online:       b.Online,
		SpeedKmh:     b.SpeedKmh,
		HeadingDeg:   b.HeadingDeg,
		LastOnlineAt: b.LastOnlineAt,
		LastUpdateAt: b.LastUpdateAt,
		Status:       b.Status.String(),
	}
	if b.Location != nil {
		snap.Location = &GeoPoint{Lng: b.Location.Lng, Lat: b.Location.Lat}
	}
	return snap
}

// BusChangedMessage is the change-stream event published on
// ExchangeBusStateFanout after every accepted Bus mutation.
// Events for the same bus_id are published in write order.
type BusChangedMessage struct {
	BusID      string      `json:"bus_id"`
	RouteID    string      `json:"route_id"`
	DriverID   string      `json:"driver_id,omitempty"`
	Kind       string      `json:"kind"` // ChangeKindStatus | ChangeKindUpdate | ChangeKindStale
	Reason     string      `json:"reason,omitempty"`
	Snapshot   BusSnapshot `json:"snapshot"`
	MutationAt time.Time   `json:"mutation_at"`
	Envelope
}

// ETANextStop describes the stop an ETA estimate targets.
type ETANextStop struct {
	StopID         string  `json:"stop_id"`
	Name           string  `json:"name"`
	DistanceMeters float64 `json:"distance_meters"`
	ETAMinutes     int     `json:"eta_minutes"`
}

// ETAUpdateMessage is published on ExchangeETAFanout by the ETA worker and
// delivered to bus:<id> and route:<id> subscribers. It never enters the
// bus-state change stream.
type ETAUpdateMessage struct {
	BusID            string      `json:"bus_id"`
	RouteID          string      `json:"route_id"`
	NextStop         ETANextStop `json:"next_stop"`
	RouteProgress    float64     `json:"route_progress"` // closest index / (stops-1), 0 when single stop
	EstimatedArrival time.Time   `json:"estimated_arrival"`
	Timestamp        time.Time   `json:"timestamp"`
	Envelope
}
