package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"bus-track/internal/domain/bus"
	"bus-track/internal/domain/geo"
	"bus-track/internal/domain/route"
	"bus-track/internal/general/contracts"
	"bus-track/internal/ports"
)

// etaSpeedState holds the per-bus smoothed speed the ETA worker feeds from.
// Evicted on stale demotion so a returning bus starts fresh.
type etaSpeedState struct {
	alpha float64

	mu     sync.Mutex
	speeds map[string]float64
}

func newETASpeedState(alpha float64) *etaSpeedState {
	return &etaSpeedState{
		alpha:  alpha,
		speeds: make(map[string]float64),
	}
}

// Smooth folds the current speed into the EWMA and returns the smoothed
// value, floored at 1 km/h so ETAs stay finite for crawling buses.
func (s *etaSpeedState) Smooth(busID string, currentKmh float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.speeds[busID]
	if !ok {
		prev = currentKmh
	}
	next := s.alpha*currentKmh + (1-s.alpha)*prev
	if next < 1 {
		next = 1
	}
	s.speeds[busID] = next
	return next
}

// Evict clears the smoothed speed for one bus.
func (s *etaSpeedState) Evict(busID string) {
	s.mu.Lock()
	delete(s.speeds, busID)
	s.mu.Unlock()
}

// etaMinutes converts a straight-line distance and a smoothed speed into a
// whole-minute estimate, never below 1.
func etaMinutes(distanceM, speedKmh float64) int {
	minutes := int(math.Ceil(distanceM / 1000 / (speedKmh / 60)))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// runETAWorker periodically estimates the next-stop arrival for every online
// bus and publishes the estimates on the ETA fanout.
func (service *trackingService) runETAWorker(ctx context.Context) {
	ticker := time.NewTicker(service.cfg.ETATickInterval())
	defer ticker.Stop()

	service.logger.Info(ctx, "eta_worker_started", "ETA worker started", map[string]any{
		"tick_interval_s": service.cfg.ETA.TickIntervalS,
		"smoothing_alpha": service.cfg.ETA.SmoothingAlpha,
	})

	for {
		select {
		case <-ctx.Done():
			service.logger.Info(ctx, "eta_worker_stopped", "ETA worker stopped", nil)
			return
		case <-ticker.C:
			service.etaTick(ctx)
		}
	}
}

// etaTick computes and publishes one round of estimates.
func (service *trackingService) etaTick(ctx context.Context) {
	var online []bus.Bus
	routesByID := make(map[string]*route.Route)

	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		online, err = service.buses.ListOnline(ctx)
		if err != nil {
			return err
		}
		for i := range online {
			routeID := online[i].RouteID
			if _, seen := routesByID[routeID]; seen {
				continue
			}
			rt, err := service.routes.GetByID(ctx, routeID)
			if err != nil {
				if errors.Is(err, ports.ErrNotFound) {
					routesByID[routeID] = nil
					continue
				}
				return err
			}
			routesByID[routeID] = rt
		}
		return nil
	})
	if err != nil {
		service.logger.Error(ctx, "eta_scan_failed", "Failed to load online buses for ETA pass", err, nil)
		return
	}

	now := time.Now().UTC()
	for i := range online {
		if ctx.Err() != nil {
			return
		}
		b := &online[i]
		rt := routesByID[b.RouteID]
		if b.Location == nil || rt == nil || len(rt.Stops) == 0 {
			continue
		}
		service.publishETA(ctx, b, rt, now)
	}
}

// publishETA computes one bus's estimate and emits it on the ETA fanout.
// Straight-line distance to the closest upcoming stop is the documented
// minimum; map matching along the polyline is out of scope.
func (service *trackingService) publishETA(ctx context.Context, b *bus.Bus, rt *route.Route, now time.Time) {
	closestIdx := rt.ClosestStopIndex(b.Location.Lng, b.Location.Lat)
	if closestIdx < 0 {
		return
	}
	next := rt.Stops[closestIdx]

	distance := geo.HaversineMeters(b.Location.Lng, b.Location.Lat, next.Lng, next.Lat)
	speed := service.etaState.Smooth(b.BusID, b.SpeedKmh)
	eta := etaMinutes(distance, speed)

	progress := 0.0
	if len(rt.Stops) > 1 {
		progress = float64(closestIdx) / float64(len(rt.Stops)-1)
	}

	msg := contracts.ETAUpdateMessage{
		BusID:   b.BusID,
		RouteID: b.RouteID,
		NextStop: contracts.ETANextStop{
			StopID:         next.ID,
			Name:           next.Name,
			DistanceMeters: distance,
			ETAMinutes:     eta,
		},
		RouteProgress:    progress,
		EstimatedArrival: now.Add(time.Duration(eta) * time.Minute),
		Timestamp:        now,
		Envelope: contracts.Envelope{
			CorrelationID: generateCorrelationID(),
			Producer:      producerName,
			SentAt:        now,
		},
	}

	if err := service.mq.PublishJSON(ctx, contracts.ExchangeETAFanout, "", msg); err != nil {
		service.logger.Error(ctx, "eta_publish_failed", "Failed to publish ETA update", err, map[string]any{
			"bus_id": b.BusID,
		})
	}
}
