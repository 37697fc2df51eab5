package contracts

import (
	"encoding/json"
	"time"
)

// WSEnvelope is the minimal inbound message framing: {"type": "...", "data": {...}}.
type WSEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// WSBusStatus mirrors "bus:status" sent on subscribe and on online transitions.
type WSBusStatus struct {
	Type         string     `json:"type"` // EventBusStatus
	BusID        string     `json:"bus_id"`
	RouteID      string     `json:"route_id"`
	Online       bool       `json:"online"`
	Status       string     `json:"status"`
	Reason       string     `json:"reason,omitempty"`
	LastOnlineAt *time.Time `json:"last_online_at,omitempty"`
	LastUpdateAt time.Time  `json:"last_update_at"`
	Timestamp    time.Time  `json:"timestamp"`
}

// WSBusUpdate mirrors "bus:update" sent on every accepted sample.
type WSBusUpdate struct {
	Type         string    `json:"type"` // EventBusUpdate
	BusID        string    `json:"bus_id"`
	RouteID      string    `json:"route_id"`
	Location     GeoPoint  `json:"location"`
	SpeedKmh     float64   `json:"speed_kmh"`
	HeadingDeg   float64   `json:"heading_degrees"`
	LastUpdateAt time.Time `json:"last_update_at"`
	Timestamp    time.Time `json:"timestamp"`
}

// WSRouteBuses mirrors "route:buses" sent once on route subscribe.
type WSRouteBuses struct {
	Type      string        `json:"type"` // EventRouteBuses
	RouteID   string        `json:"route_id"`
	Buses     []BusSnapshot `json:"buses"`
	Timestamp time.Time     `json:"timestamp"`
}

// WSETAUpdate mirrors "eta:update" broadcasts.
type WSETAUpdate struct {
	Type             string      `json:"type"` // EventETAUpdate
	BusID            string      `json:"bus_id"`
	RouteID          string      `json:"route_id"`
	NextStop         ETANextStop `json:"next_stop"`
	RouteProgress    float64     `json:"route_progress"`
	EstimatedArrival time.Time   `json:"estimated_arrival"`
	Timestamp        time.Time   `json:"timestamp"`
}

// WSDriverAck acknowledges a driver:toggle or driver:move.
type WSDriverAck struct {
	Type      string    `json:"type"` // EventDriverToggleSuccess | EventDriverMoveSuccess
	BusID     string    `json:"bus_id"`
	Online    *bool     `json:"online,omitempty"` // toggle acks only
	Timestamp time.Time `json:"timestamp"`
}

// WSDriverError is the per-event error shape for driver sockets.
type WSDriverError struct {
	Type  string `json:"type"` // EventDriverToggleError | EventDriverMoveError
	BusID string `json:"bus_id,omitempty"`
	Error string `json:"error"` // one of the Code* constants
}
