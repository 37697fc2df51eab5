package service

import (
	"context"
	"time"

	"bus-track/internal/domain/bus"
	"bus-track/internal/domain/geo"
	"bus-track/internal/general/contracts"
	"bus-track/internal/ports"
)

// Move processes one driver location sample. The throttle may silently drop
// it (Accepted=false, nil error); otherwise the sample is validated, stored
// and published on the change stream.
func (service *trackingService) Move(ctx context.Context, in ports.MoveInput) (ports.MoveResult, error) {
	corrID := generateCorrelationID()
	now := time.Now().UTC()

	clientTs := in.ClientTs
	if clientTs.IsZero() {
		clientTs = now
	}

	// 1) throttle: too close in time or space -> drop without a word
	if !service.throttle.ShouldAccept(in.DriverID, in.Lng, in.Lat, clientTs) {
		service.logger.Debug(ctx, "sample_throttled", "Location sample dropped by throttle", map[string]any{
			"driver_id": in.DriverID,
			"bus_id":    in.BusID,
		})
		return ports.MoveResult{Accepted: false}, nil
	}

	lock := service.busLocks.Lock(in.BusID)
	defer lock.Unlock()

	// 2) assignment gating, 3) range validation, 4) store write, one transaction
	var snap *bus.Bus
	err := retryStoreWrite(ctx, service.logger, storeRetryBase, storeRetryCeiling, func() error {
		return service.uow.WithinTx(ctx, func(ctx context.Context) error {
			asg, err := service.resolveAssignment(ctx, in.DriverID, in.BusID, now)
			if err != nil {
				return err
			}

			if err := geo.ValidateCoord(in.Lng, in.Lat); err != nil {
				return err
			}
			if err := geo.ValidateSpeed(in.SpeedKmh); err != nil {
				return err
			}
			if err := geo.ValidateHeading(in.HeadingDeg); err != nil {
				return err
			}

			snap, err = service.buses.UpsertSample(ctx, ports.SampleWrite{
				BusID:      in.BusID,
				RouteID:    asg.RouteID,
				DriverID:   in.DriverID,
				Lng:        in.Lng,
				Lat:        in.Lat,
				SpeedKmh:   in.SpeedKmh,
				HeadingDeg: in.HeadingDeg,
				Now:        now,
			})
			return err
		})
	})
	if err != nil {
		service.logger.Error(ctx, "driver_move_failed", "Failed to store location sample", err, map[string]any{
			"driver_id":  in.DriverID,
			"bus_id":     in.BusID,
			"request_id": corrID,
		})
		return ports.MoveResult{}, err
	}

	service.lastBusByDriver.Store(in.DriverID, in.BusID)

	if err := service.publishBusChanged(ctx, contracts.ChangeKindUpdate, "", corrID, snap, now); err != nil {
		service.logger.Error(ctx, "bus_changed_publish_failed", "Failed to publish sample change event", err, map[string]any{
			"bus_id":     in.BusID,
			"request_id": corrID,
		})
	}

	return ports.MoveResult{
		Accepted:  true,
		BusID:     snap.BusID,
		RouteID:   snap.RouteID,
		Timestamp: now,
	}, nil
}
