package ports

import (
	"context"
	"errors"
	"time"

	"bus-track/internal/domain/assignment"
	"bus-track/internal/domain/bus"
	"bus-track/internal/domain/route"
	"bus-track/internal/domain/user"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("record not found")

// UnitOfWork runs a function within a database transaction.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// DriverRepository reads driver identity records. The core never writes them.
type DriverRepository interface {
	GetByID(ctx context.Context, driverID string) (*user.Driver, error)
}

// AssignmentRepository resolves shift assignments.
type AssignmentRepository interface {
	// FindActive returns assignments with the given driver and bus that are
	// active and whose shift window covers now, newest shift_start first.
	// More than one element means an operator scheduling conflict.
	FindActive(ctx context.Context, driverID, busID string, now time.Time) ([]assignment.Assignment, error)
}

// RouteRepository reads route geometry and stops.
type RouteRepository interface {
	GetByID(ctx context.Context, routeID string) (*route.Route, error)
}

// ToggleWrite is the store input for an online/offline transition.
type ToggleWrite struct {
	BusID    string
	RouteID  string
	DriverID string
	Online   bool
	Now      time.Time
}

// SampleWrite is the store input for an accepted location sample.
type SampleWrite struct {
	BusID      string
	RouteID    string
	DriverID   string
	Lng        float64
	Lat        float64
	SpeedKmh   float64
	HeadingDeg float64
	Now        time.Time
}

// BusListFilter narrows List reads.
type BusListFilter struct {
	Online  *bool
	RouteID string
	Limit   int
}

// BusRepository is the canonical bus-state store. Each write returns the
// snapshot the row held after the mutation.
type BusRepository interface {
	UpsertToggle(ctx context.Context, in ToggleWrite) (*bus.Bus, error)
	UpsertSample(ctx context.Context, in SampleWrite) (*bus.Bus, error)
	// MarkStale demotes a bus; idempotent. Returns the resulting snapshot and
	// whether the call actually transitioned the bus from online to offline.
	MarkStale(ctx context.Context, busID string, staleAt time.Time) (*bus.Bus, bool, error)
	Get(ctx context.Context, busID string) (*bus.Bus, error)
	ListOnlineByRoute(ctx context.Context, routeID string) ([]bus.Bus, error)
	ListOnline(ctx context.Context) ([]bus.Bus, error)
	// ListStaleCandidates returns online buses with last_update_at < cutoff.
	ListStaleCandidates(ctx context.Context, cutoff time.Time) ([]bus.Bus, error)
	List(ctx context.Context, f BusListFilter) ([]bus.Bus, error)
	// NearbyOnlineCandidates returns online buses within radiusM of the point,
	// using the spatial index. Exact distance and ordering are refined by the
	// caller.
	NearbyOnlineCandidates(ctx context.Context, lng, lat, radiusM float64, limit int) ([]bus.Bus, error)
}
