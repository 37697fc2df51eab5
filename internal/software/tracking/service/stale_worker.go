package service

import (
	"context"
	"time"

	"bus-track/internal/domain/bus"
	"bus-track/internal/general/contracts"
	"bus-track/internal/ports"
)

// RunWorkers starts the staleness and ETA loops. Run on one instance only,
// elected by the workers.enabled config flag.
func (service *trackingService) RunWorkers(ctx context.Context) {
	go service.runStaleWorker(ctx)
	go service.runETAWorker(ctx)
}

// runStaleWorker demotes buses that stopped reporting. Cancellation stops the
// next tick cleanly, never mid-mutation.
func (service *trackingService) runStaleWorker(ctx context.Context) {
	ticker := time.NewTicker(service.cfg.StaleTickInterval())
	defer ticker.Stop()

	service.logger.Info(ctx, "stale_worker_started", "Staleness worker started", map[string]any{
		"stale_window_s":  service.cfg.Stale.WindowS,
		"tick_interval_s": service.cfg.Stale.TickIntervalS,
	})

	for {
		select {
		case <-ctx.Done():
			service.logger.Info(ctx, "stale_worker_stopped", "Staleness worker stopped", nil)
			return
		case <-ticker.C:
			service.staleTick(ctx)
		}
	}
}

// staleTick runs one demotion sweep.
func (service *trackingService) staleTick(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-service.cfg.StaleWindow())

	var candidates []bus.Bus
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		candidates, err = service.buses.ListStaleCandidates(ctx, cutoff)
		return err
	})
	if err != nil {
		service.logger.Error(ctx, "stale_scan_failed", "Failed to list stale candidates", err, nil)
		return
	}

	for i := range candidates {
		if ctx.Err() != nil {
			return
		}
		service.demoteStale(ctx, &candidates[i])
	}
}

// demoteStale marks one bus stale and publishes the change. The demotion
// keeps last_online_at at the bus's last accepted change, so "minutes ago"
// reflects the real last life sign.
func (service *trackingService) demoteStale(ctx context.Context, candidate *bus.Bus) {
	corrID := generateCorrelationID()

	lock := service.busLocks.Lock(candidate.BusID)
	defer lock.Unlock()

	var snap *bus.Bus
	var changed bool
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		snap, changed, err = service.buses.MarkStale(ctx, candidate.BusID, candidate.LastUpdateAt)
		return err
	})
	if err != nil {
		service.logger.Error(ctx, "stale_demotion_failed", "Failed to mark bus stale", err, map[string]any{
			"bus_id":     candidate.BusID,
			"request_id": corrID,
		})
		return
	}
	if !changed {
		// a sample or a sibling worker beat us to it
		return
	}

	service.etaState.Evict(candidate.BusID)

	if err := service.publishBusChanged(ctx, contracts.ChangeKindStale, contracts.ReasonStaleTimeout, corrID, snap, time.Now().UTC()); err != nil {
		service.logger.Error(ctx, "bus_changed_publish_failed", "Failed to publish stale change event", err, map[string]any{
			"bus_id":     candidate.BusID,
			"request_id": corrID,
		})
	}

	service.logger.Info(ctx, "bus_marked_stale", "Bus demoted for silence past stale window", map[string]any{
		"bus_id":         candidate.BusID,
		"last_update_at": candidate.LastUpdateAt,
		"request_id":     corrID,
	})
}

var _ ports.TrackingService = (*trackingService)(nil)
