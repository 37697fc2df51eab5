package route

import (
	"errors"
	"testing"
)

func validRoute() Route {
	return Route{
		ID:   "route-42",
		Name: "Center - Airport",
		Polyline: []Point{
			{Lng: 37.60, Lat: 55.75},
			{Lng: 37.65, Lat: 55.76},
			{Lng: 37.70, Lat: 55.77},
		},
		Stops: []Stop{
			{ID: "s1", Name: "Center", Lng: 37.60, Lat: 55.75, Position: 0},
			{ID: "s2", Name: "Midway", Lng: 37.65, Lat: 55.76, Position: 1},
			{ID: "s3", Name: "Airport", Lng: 37.70, Lat: 55.77, Position: 2},
		},
	}
}

func TestRouteValidate(t *testing.T) {
	r := validRoute()
	if err := r.Validate(); err != nil {
		t.Fatalf("valid route rejected: %v", err)
	}

	empty := validRoute()
	empty.ID = "  "
	if err := empty.Validate(); !errors.Is(err, ErrEmptyRouteID) {
		t.Fatalf("empty id: got %v, want ErrEmptyRouteID", err)
	}

	short := validRoute()
	short.Polyline = short.Polyline[:1]
	if err := short.Validate(); !errors.Is(err, ErrShortPolyline) {
		t.Fatalf("short polyline: got %v, want ErrShortPolyline", err)
	}

	shuffled := validRoute()
	shuffled.Stops[1].Position = 2
	if err := shuffled.Validate(); !errors.Is(err, ErrStopsOutOfOrder) {
		t.Fatalf("out-of-order stops: got %v, want ErrStopsOutOfOrder", err)
	}
}

func TestClosestStopIndex(t *testing.T) {
	r := validRoute()

	// right on top of the middle stop
	if idx := r.ClosestStopIndex(37.65, 55.76); idx != 1 {
		t.Fatalf("ClosestStopIndex at midway = %d, want 1", idx)
	}

	// slightly past the last stop still snaps to it
	if idx := r.ClosestStopIndex(37.71, 55.775); idx != 2 {
		t.Fatalf("ClosestStopIndex past airport = %d, want 2", idx)
	}

	// no stops
	bare := Route{ID: "r", Polyline: r.Polyline}
	if idx := bare.ClosestStopIndex(37.65, 55.76); idx != -1 {
		t.Fatalf("ClosestStopIndex with no stops = %d, want -1", idx)
	}
}
