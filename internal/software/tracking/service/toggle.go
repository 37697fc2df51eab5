package service

import (
	"context"
	"time"

	"bus-track/internal/domain/bus"
	"bus-track/internal/general/contracts"
	"bus-track/internal/ports"
)

// Toggle flips a bus online or offline for an assigned driver. The accepted
// mutation enters the change stream; the broadcaster performs the external
// fan-out.
func (service *trackingService) Toggle(ctx context.Context, in ports.ToggleInput) (ports.ToggleResult, error) {
	corrID := generateCorrelationID()
	now := time.Now().UTC()

	// serialize write+publish per bus so the stream keeps write order
	lock := service.busLocks.Lock(in.BusID)
	defer lock.Unlock()

	var snap *bus.Bus
	err := retryStoreWrite(ctx, service.logger, storeRetryBase, storeRetryCeiling, func() error {
		return service.uow.WithinTx(ctx, func(ctx context.Context) error {
			asg, err := service.resolveAssignment(ctx, in.DriverID, in.BusID, now)
			if err != nil {
				return err
			}

			snap, err = service.buses.UpsertToggle(ctx, ports.ToggleWrite{
				BusID:    in.BusID,
				RouteID:  asg.RouteID,
				DriverID: in.DriverID,
				Online:   in.Online,
				Now:      now,
			})
			return err
		})
	})
	if err != nil {
		service.logger.Error(ctx, "driver_toggle_failed", "Failed to toggle bus state", err, map[string]any{
			"driver_id":  in.DriverID,
			"bus_id":     in.BusID,
			"online":     in.Online,
			"request_id": corrID,
		})
		return ports.ToggleResult{}, err
	}

	service.lastBusByDriver.Store(in.DriverID, in.BusID)

	if err := service.publishBusChanged(ctx, contracts.ChangeKindStatus, "", corrID, snap, now); err != nil {
		service.logger.Error(ctx, "bus_changed_publish_failed", "Failed to publish toggle change event", err, map[string]any{
			"bus_id":     in.BusID,
			"request_id": corrID,
		})
	}

	service.logger.Info(ctx, "driver_toggle", "Driver toggled bus state", map[string]any{
		"driver_id":  in.DriverID,
		"bus_id":     in.BusID,
		"route_id":   snap.RouteID,
		"online":     in.Online,
		"request_id": corrID,
	})

	return ports.ToggleResult{
		BusID:     snap.BusID,
		RouteID:   snap.RouteID,
		Online:    snap.Online,
		Timestamp: now,
	}, nil
}

// DisconnectDriver runs the best-effort offline demotion for the driver's last
// known bus and clears the throttle entry. Failures are logged, never retried.
func (service *trackingService) DisconnectDriver(ctx context.Context, driverID string) {
	service.throttle.Evict(driverID)

	v, ok := service.lastBusByDriver.LoadAndDelete(driverID)
	if !ok {
		return
	}
	busID := v.(string)
	corrID := generateCorrelationID()
	now := time.Now().UTC()

	lock := service.busLocks.Lock(busID)
	defer lock.Unlock()

	var snap *bus.Bus
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		asg, err := service.resolveAssignment(ctx, driverID, busID, now)
		if err != nil {
			return err
		}
		snap, err = service.buses.UpsertToggle(ctx, ports.ToggleWrite{
			BusID:    busID,
			RouteID:  asg.RouteID,
			DriverID: driverID,
			Online:   false,
			Now:      now,
		})
		return err
	})
	if err != nil {
		service.logger.Error(ctx, "driver_disconnect_demotion_failed", "Best-effort offline demotion failed", err, map[string]any{
			"driver_id":  driverID,
			"bus_id":     busID,
			"request_id": corrID,
		})
		return
	}

	if err := service.publishBusChanged(ctx, contracts.ChangeKindStatus, "", corrID, snap, now); err != nil {
		service.logger.Error(ctx, "bus_changed_publish_failed", "Failed to publish disconnect change event", err, map[string]any{
			"bus_id":     busID,
			"request_id": corrID,
		})
	}

	service.logger.Info(ctx, "driver_disconnected", "Driver socket gone, bus demoted offline", map[string]any{
		"driver_id": driverID,
		"bus_id":    busID,
	})
}
