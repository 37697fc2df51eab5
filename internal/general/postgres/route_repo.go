package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"bus-track/internal/domain/route"
	"bus-track/internal/ports"

	"github.com/jackc/pgx/v5"
)

// RouteRepo reads route geometry and stops using pgx and plain SQL.
type RouteRepo struct{}

// NewRouteRepo constructs a new RouteRepo.
func NewRouteRepo() ports.RouteRepository {
	return &RouteRepo{}
}

// polylinePoint is the jsonb element shape stored in routes.polyline.
type polylinePoint struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// GetByID returns one route with its polyline and stops in travel order.
func (repo *RouteRepo) GetByID(ctx context.Context, routeID string) (*route.Route, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var out route.Route
	var polyline []byte

	err = tx.QueryRow(ctx, `
		SELECT id, name, polyline
		FROM routes
		WHERE id = $1
	`, routeID).Scan(&out.ID, &out.Name, &polyline)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}

	var pts []polylinePoint
	if err := json.Unmarshal(polyline, &pts); err != nil {
		return nil, err
	}
	out.Polyline = make([]route.Point, 0, len(pts))
	for _, p := range pts {
		out.Polyline = append(out.Polyline, route.Point{Lng: p.Lng, Lat: p.Lat})
	}

	rows, err := tx.Query(ctx, `
		SELECT id, name, longitude, latitude, estimated_offset_minutes, position
		FROM stops
		WHERE route_id = $1
		ORDER BY position
	`, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s route.Stop
		var offset *int
		if err := rows.Scan(&s.ID, &s.Name, &s.Lng, &s.Lat, &offset, &s.Position); err != nil {
			return nil, err
		}
		s.EstimatedOffsetMinutes = offset
		out.Stops = append(out.Stops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &out, nil
}
