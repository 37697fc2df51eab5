package route

import (
	"errors"
	"strings"

	"bus-track/internal/domain/geo"
)

// Route is a named path with polyline geometry and ordered stops.
type Route struct {
	ID       string
	Name     string
	Polyline []Point // travel order, at least two points
	Stops    []Stop  // travel order
}

// Point is one vertex of the route polyline.
type Point struct {
	Lng float64
	Lat float64
}

// Stop is a named stop along the route, listed in travel order.
type Stop struct {
	ID                     string
	Name                   string
	Lng                    float64
	Lat                    float64
	EstimatedOffsetMinutes *int // optional schedule hint, unused by the core
	Position               int  // 0-based travel-order index
}

var (
	ErrEmptyRouteID    = errors.New("route id cannot be empty")
	ErrShortPolyline   = errors.New("route polyline needs at least two points")
	ErrStopsOutOfOrder = errors.New("route stops must be listed in travel order")
)

// Validate checks invariants of the Route entity.
func (r *Route) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyRouteID
	}
	if len(r.Polyline) < 2 {
		return ErrShortPolyline
	}
	for _, p := range r.Polyline {
		if err := geo.ValidateCoord(p.Lng, p.Lat); err != nil {
			return err
		}
	}
	for i, s := range r.Stops {
		if err := geo.ValidateCoord(s.Lng, s.Lat); err != nil {
			return err
		}
		if s.Position != i {
			return ErrStopsOutOfOrder
		}
	}
	return nil
}

// ClosestStopIndex returns the index of the stop nearest to the given point
// by straight-line distance, or -1 when the route has no stops.
func (r *Route) ClosestStopIndex(lng, lat float64) int {
	best := -1
	bestDist := 0.0
	for i, s := range r.Stops {
		d := geo.HaversineMeters(lng, lat, s.Lng, s.Lat)
		if best == -1 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}
