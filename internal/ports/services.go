package ports

import (
	"context"
	"time"

	"bus-track/internal/general/contracts"
)

// ----- DTOs for the Tracking Service -----

// ToggleInput is the validated input for driver:toggle.
type ToggleInput struct {
	DriverID string
	BusID    string
	Online   bool
}

// ToggleResult matches the driver:toggle:success acknowledgement.
type ToggleResult struct {
	BusID     string    `json:"bus_id"`
	RouteID   string    `json:"route_id"`
	Online    bool      `json:"online"`
	Timestamp time.Time `json:"timestamp"`
}

// MoveInput is the validated input for driver:move.
type MoveInput struct {
	DriverID   string
	BusID      string
	Lng        float64
	Lat        float64
	SpeedKmh   float64
	HeadingDeg float64
	ClientTs   time.Time
}

// MoveResult matches the driver:move:success acknowledgement. Accepted=false
// means the throttle silently dropped the sample (no ack, no error).
type MoveResult struct {
	Accepted  bool      `json:"-"`
	BusID     string    `json:"bus_id"`
	RouteID   string    `json:"route_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NearInput is the validated input for GET /buses/near.
type NearInput struct {
	Lng     float64
	Lat     float64
	RadiusM float64
}

// LastSeen describes how fresh a bus's last life sign is.
type LastSeen struct {
	Timestamp  time.Time `json:"timestamp"`
	MinutesAgo int       `json:"minutes_ago"`
	Status     string    `json:"status"` // very_recent | recent | moderate | old | unknown
}

// NearBus is one GET /buses/near result row.
type NearBus struct {
	contracts.BusSnapshot
	DistanceMeters float64  `json:"distance_meters"`
	LastSeen       LastSeen `json:"last_seen"`
}

// ListBusesInput narrows GET /buses.
type ListBusesInput struct {
	Online  *bool
	RouteID string
	Limit   int
}

// ----- Tracking Service Interface -----

// TrackingService exposes the boundary for the real-time tracking core.
type TrackingService interface {
	// VerifyDriver confirms the authenticated subject exists as a driver.
	VerifyDriver(ctx context.Context, driverID string) error

	// Toggle handles driver:toggle. On success the change stream performs the
	// external broadcast.
	Toggle(ctx context.Context, in ToggleInput) (ToggleResult, error)

	// Move handles driver:move. Throttled samples return Accepted=false and a
	// nil error.
	Move(ctx context.Context, in MoveInput) (MoveResult, error)

	// DisconnectDriver runs the best-effort offline demotion and throttle
	// eviction when a driver socket goes away.
	DisconnectDriver(ctx context.Context, driverID string)

	// Snapshot reads used by passenger ingress and the HTTP API.
	GetBus(ctx context.Context, busID string) (*contracts.BusSnapshot, error)
	ListOnlineOnRoute(ctx context.Context, routeID string) ([]contracts.BusSnapshot, error)
	ListBuses(ctx context.Context, in ListBusesInput) ([]contracts.BusSnapshot, error)
	Near(ctx context.Context, in NearInput) ([]NearBus, error)

	// RunBackgroundConsumers starts the change-stream and ETA-stream consumers
	// that feed the broadcaster.
	RunBackgroundConsumers(ctx context.Context)

	// RunWorkers starts the staleness and ETA worker loops. Run on one
	// instance only.
	RunWorkers(ctx context.Context)
}
