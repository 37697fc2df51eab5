package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"bus-track/internal/domain/bus"
	"bus-track/internal/ports"

	"github.com/jackc/pgx/v5"
)

// BusRepo is the canonical bus-state store using pgx and plain SQL.
// Every write is a single upsert statement, so per-bus serialization falls
// out of the row lock; callers still hold the per-bus service mutex so the
// change-stream publish happens in write order.
type BusRepo struct{}

// NewBusRepo constructs a new BusRepo.
func NewBusRepo() ports.BusRepository {
	return &BusRepo{}
}

// busColumns is the canonical column list every snapshot read uses.
const busColumns = `bus_id, route_id, driver_id, online, longitude, latitude,
	speed_kmh, heading_deg, last_online_at, last_update_at, status`

// scanBus maps one row of busColumns into a domain Bus.
func scanBus(row pgx.Row) (*bus.Bus, error) {
	var out bus.Bus
	var driverID *string
	var lng, lat *float64
	var status string

	err := row.Scan(
		&out.BusID, &out.RouteID, &driverID, &out.Online, &lng, &lat,
		&out.SpeedKmh, &out.HeadingDeg, &out.LastOnlineAt, &out.LastUpdateAt, &status,
	)
	if err != nil {
		return nil, err
	}

	if driverID != nil {
		out.DriverID = *driverID
	}
	if lng != nil && lat != nil {
		out.Location = &bus.Location{Lng: *lng, Lat: *lat}
	}
	if out.Status, err = bus.ParseStatus(status); err != nil {
		return nil, err
	}

	return &out, nil
}

// UpsertToggle sets the online flag, creating the record when absent.
// Going online also stamps last_online_at; last_update_at is always stamped.
func (repo *BusRepo) UpsertToggle(ctx context.Context, in ports.ToggleWrite) (*bus.Bus, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO buses (bus_id, route_id, driver_id, online, speed_kmh, heading_deg,
		                   last_online_at, last_update_at, status)
		VALUES ($1, $2, $3, $4, 0, 0,
		        CASE WHEN $4 THEN $5::timestamptz END, $5,
		        CASE WHEN $4 THEN 'IDLE' ELSE 'INACTIVE' END)
		ON CONFLICT (bus_id) DO UPDATE SET
			route_id       = EXCLUDED.route_id,
			driver_id      = EXCLUDED.driver_id,
			online         = EXCLUDED.online,
			last_online_at = CASE WHEN EXCLUDED.online THEN EXCLUDED.last_update_at
			                      ELSE buses.last_online_at END,
			last_update_at = EXCLUDED.last_update_at,
			status         = CASE WHEN EXCLUDED.online THEN 'IDLE' ELSE 'INACTIVE' END,
			updated_at     = now()
		RETURNING `+busColumns,
		in.BusID, in.RouteID, in.DriverID, in.Online, in.Now.UTC(),
	)

	return scanBus(row)
}

// UpsertSample stores an accepted location sample and flips the bus online.
func (repo *BusRepo) UpsertSample(ctx context.Context, in ports.SampleWrite) (*bus.Bus, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	status := bus.DeriveStatus(in.SpeedKmh).String()
	heading := bus.NormalizeHeading(in.HeadingDeg)

	row := tx.QueryRow(ctx, `
		INSERT INTO buses (bus_id, route_id, driver_id, online, longitude, latitude,
		                   speed_kmh, heading_deg, last_online_at, last_update_at, status)
		VALUES ($1, $2, $3, true, $4, $5, $6, $7, $8, $8, $9)
		ON CONFLICT (bus_id) DO UPDATE SET
			route_id       = EXCLUDED.route_id,
			driver_id      = EXCLUDED.driver_id,
			online         = true,
			longitude      = EXCLUDED.longitude,
			latitude       = EXCLUDED.latitude,
			speed_kmh      = EXCLUDED.speed_kmh,
			heading_deg    = EXCLUDED.heading_deg,
			last_online_at = EXCLUDED.last_online_at,
			last_update_at = EXCLUDED.last_update_at,
			status         = EXCLUDED.status,
			updated_at     = now()
		RETURNING `+busColumns,
		in.BusID, in.RouteID, in.DriverID, in.Lng, in.Lat,
		in.SpeedKmh, heading, in.Now.UTC(), status,
	)

	return scanBus(row)
}

// MarkStale demotes a bus that stopped reporting. staleAt is the last_update_at
// the caller observed when it picked the candidate; the update only fires while
// that is still current, so a sample accepted after the scan voids the demotion.
// Idempotent: the second application with the same staleAt yields the same
// snapshot. The bool result reports whether this call actually flipped the bus
// offline.
func (repo *BusRepo) MarkStale(ctx context.Context, busID string, staleAt time.Time) (*bus.Bus, bool, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, false, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE buses
		SET online = false, status = 'INACTIVE', last_online_at = $2, updated_at = now()
		WHERE bus_id = $1 AND online = true AND last_update_at = $2
		RETURNING `+busColumns,
		busID, staleAt.UTC(),
	)

	snap, err := scanBus(row)
	if err == nil {
		return snap, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	// already offline, refreshed since the scan, or unknown: read the current snapshot
	snap, err = repo.Get(ctx, busID)
	if err != nil {
		return nil, false, err
	}
	return snap, false, nil
}

// Get reads one bus snapshot.
func (repo *BusRepo) Get(ctx context.Context, busID string) (*bus.Bus, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	snap, err := scanBus(tx.QueryRow(ctx, `SELECT `+busColumns+` FROM buses WHERE bus_id = $1`, busID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return snap, nil
}

// ListOnlineByRoute reads the online buses currently bound to a route.
func (repo *BusRepo) ListOnlineByRoute(ctx context.Context, routeID string) ([]bus.Bus, error) {
	return repo.list(ctx, `SELECT `+busColumns+` FROM buses WHERE online = true AND route_id = $1 ORDER BY bus_id`, routeID)
}

// ListOnline reads every online bus.
func (repo *BusRepo) ListOnline(ctx context.Context) ([]bus.Bus, error) {
	return repo.list(ctx, `SELECT `+busColumns+` FROM buses WHERE online = true ORDER BY bus_id`)
}

// ListStaleCandidates reads online buses whose last accepted change predates cutoff.
func (repo *BusRepo) ListStaleCandidates(ctx context.Context, cutoff time.Time) ([]bus.Bus, error) {
	return repo.list(ctx, `SELECT `+busColumns+` FROM buses WHERE online = true AND last_update_at < $1 ORDER BY bus_id`, cutoff.UTC())
}

// List reads buses with optional online/route filters; limit is enforced by the caller.
func (repo *BusRepo) List(ctx context.Context, f ports.BusListFilter) ([]bus.Bus, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + busColumns + ` FROM buses`)

	var conds []string
	var args []any
	if f.Online != nil {
		args = append(args, *f.Online)
		conds = append(conds, `online = $`+strconv.Itoa(len(args)))
	}
	if f.RouteID != "" {
		args = append(args, f.RouteID)
		conds = append(conds, `route_id = $`+strconv.Itoa(len(args)))
	}
	if len(conds) > 0 {
		sb.WriteString(` WHERE ` + strings.Join(conds, ` AND `))
	}
	sb.WriteString(` ORDER BY bus_id`)
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sb.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	}

	return repo.list(ctx, sb.String(), args...)
}

// list runs a busColumns query and scans all rows.
func (repo *BusRepo) list(ctx context.Context, sql string, args ...any) ([]bus.Bus, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, sql, args...)
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
