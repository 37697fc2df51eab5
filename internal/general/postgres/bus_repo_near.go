package postgres

import (
	"context"

	"bus-track/internal/domain/bus"
	"bus-track/internal/ports"
)

// NearbyOnlineCandidates returns online buses within radiusM of the point,
// closest first. PostGIS ST_DWithin against the partial GiST index does the
// coarse cut and the KNN ordering keeps the closest rows inside the limit;
// the service layer still recomputes exact Haversine distances and re-sorts.
func (repo *BusRepo) NearbyOnlineCandidates(ctx context.Context, lng, lat, radiusM float64, limit int) ([]bus.Bus, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := tx.Query(ctx, `
		SELECT `+busColumns+`
		FROM buses
		WHERE online = true
		  AND longitude IS NOT NULL
		  AND ST_DWithin(
		        geography(ST_MakePoint(longitude, latitude)),
		        geography(ST_MakePoint($1, $2)),
		        $3
		      )
		ORDER BY geography(ST_MakePoint(longitude, latitude)) <-> geography(ST_MakePoint($1, $2)), bus_id
		LIMIT $4
	`, lng, lat, radiusM, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bus.Bus
	for rows.Next() {
		b, err := scanBus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

var _ ports.BusRepository = (*BusRepo)(nil)
