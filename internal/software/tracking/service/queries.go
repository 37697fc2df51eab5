package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bus-track/internal/domain/bus"
	"bus-track/internal/domain/geo"
	"bus-track/internal/general/contracts"
	"bus-track/internal/ports"
)

// GetBus reads one snapshot.
func (service *trackingService) GetBus(ctx context.Context, busID string) (*contracts.BusSnapshot, error) {
	var snap contracts.BusSnapshot
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		b, err := service.buses.Get(ctx, busID)
		if err != nil {
			return err
		}
		snap = contracts.SnapshotFromBus(b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListOnlineOnRoute reads the online buses currently bound to a route.
func (service *trackingService) ListOnlineOnRoute(ctx context.Context, routeID string) ([]contracts.BusSnapshot, error) {
	var out []contracts.BusSnapshot
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		list, err := service.buses.ListOnlineByRoute(ctx, routeID)
		if err != nil {
			return err
		}
		out = snapshots(list)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListBuses reads buses with optional online/route filters.
func (service *trackingService) ListBuses(ctx context.Context, in ports.ListBusesInput) ([]contracts.BusSnapshot, error) {
	var out []contracts.BusSnapshot
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		list, err := service.buses.List(ctx, ports.BusListFilter{
			Online:  in.Online,
			RouteID: in.RouteID,
			Limit:   in.Limit,
		})
		if err != nil {
			return err
		}
		out = snapshots(list)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// nearMaxResults caps GET /buses/near answers.
const nearMaxResults = 50

// Near answers "online buses within radius r of point p", sorted by exact
// Haversine distance ascending, ties broken by bus_id. The spatial index does
// a coarse cut; distances are recomputed here so the contractually promised
// metric is authoritative.
func (service *trackingService) Near(ctx context.Context, in ports.NearInput) ([]ports.NearBus, error) {
	if err := geo.ValidateCoord(in.Lng, in.Lat); err != nil {
		return nil, err
	}
	if in.RadiusM <= 0 || in.RadiusM > float64(service.cfg.Near.RadiusMaxM) {
		return nil, fmt.Errorf("%w: radius must be in (0, %d]", geo.ErrBadRange, service.cfg.Near.RadiusMaxM)
	}

	var candidates []bus.Bus
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		// over-fetch so the exact refinement below still has the true top 50
		candidates, err = service.buses.NearbyOnlineCandidates(ctx, in.Lng, in.Lat, in.RadiusM, nearMaxResults*4)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]ports.NearBus, 0, len(candidates))
	for _, b := range candidates {
		if b.Location == nil {
			continue
		}
		d := geo.HaversineMeters(in.Lng, in.Lat, b.Location.Lng, b.Location.Lat)
		if d > in.RadiusM {
			continue
		}
		out = append(out, ports.NearBus{
			BusSnapshot:    contracts.SnapshotFromBus(&b),
			DistanceMeters: d,
			LastSeen:       classifyLastSeen(&b, now),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].BusID < out[j].BusID
	})
	if len(out) > nearMaxResults {
		out = out[:nearMaxResults]
	}
	return out, nil
}

// classifyLastSeen builds the freshness descriptor from the later of the two
// life-sign timestamps.
func classifyLastSeen(b *bus.Bus, now time.Time) ports.LastSeen {
	ts := b.LastUpdateAt
	if b.LastOnlineAt != nil && b.LastOnlineAt.After(ts) {
		ts = *b.LastOnlineAt
	}
	if ts.IsZero() {
		return ports.LastSeen{Status: "unknown"}
	}

	minutes := int(now.Sub(ts).Minutes())
	if minutes < 0 {
		minutes = 0
	}

	var status string
	switch {
	case minutes < 5:
		status = "very_recent"
	case minutes < 30:
		status = "recent"
	case minutes < 120:
		status = "moderate"
	default:
		status = "old"
	}

	return ports.LastSeen{Timestamp: ts, MinutesAgo: minutes, Status: status}
}

// snapshots converts a domain list into wire form.
func snapshots(list []bus.Bus) []contracts.BusSnapshot {
	out := make([]contracts.BusSnapshot, 0, len(list))
	for i := range list {
		out = append(out, contracts.SnapshotFromBus(&list[i]))
	}
	return out
}
