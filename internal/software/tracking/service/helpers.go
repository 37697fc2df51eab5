package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"bus-track/internal/domain/assignment"
	"bus-track/internal/domain/bus"
	"bus-track/internal/domain/geo"
	"bus-track/internal/general/contracts"
	"bus-track/internal/general/logger"
	"bus-track/internal/ports"
)

const producerName = "tracking-service"

// Store-write retry policy for driver ingress (toggle/move): transient store
// failures are retried in-process with doubling backoff before the driver sees
// a single error frame. Domain rejections never retry.
const (
	storeRetryAttempts = 4
	storeRetryBase     = 5 * time.Second
	storeRetryCeiling  = 30 * time.Second
)

// isPermanentWriteError reports whether retrying the write cannot change the
// outcome: domain rejections and caller cancellation.
func isPermanentWriteError(err error) bool {
	return errors.Is(err, assignment.ErrNoActiveAssignment) ||
		errors.Is(err, ports.ErrNotFound) ||
		errors.Is(err, geo.ErrInvalidLatitude) ||
		errors.Is(err, geo.ErrInvalidLongitude) ||
		errors.Is(err, geo.ErrInvalidSpeed) ||
		errors.Is(err, geo.ErrInvalidHeading) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// retryStoreWrite runs op, retrying transient failures with doubling backoff
// from base up to ceiling, at most storeRetryAttempts attempts total. The last
// error is returned when attempts run out or ctx is done mid-wait.
func retryStoreWrite(ctx context.Context, log *logger.Logger, base, ceiling time.Duration, op func() error) error {
	backoff := base
	var err error
	for attempt := 1; ; attempt++ {
		err = op()
		if err == nil || isPermanentWriteError(err) || attempt >= storeRetryAttempts {
			return err
		}

		log.Warn(ctx, "store_write_retry", "Transient store failure, retrying write", map[string]any{
			"attempt":   attempt,
			"backoff_s": backoff.Seconds(),
			"error":     err.Error(),
		})

		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > ceiling {
			backoff = ceiling
		}
	}
}

// generateCorrelationID creates a simple correlation ID for tracing requests.
func generateCorrelationID() string {
	var b [3]byte // 6 hex chars
	_, _ = rand.Read(b[:])
	ts := time.Now().UTC().Format("20060102T150405") // e.g., 20251028T184523
	return "req_" + ts + "_" + hex.EncodeToString(b[:])
}

// resolveAssignment picks the active shift for (driverID, busID) at now.
// Multiple matches mean an operator scheduling conflict: the newest shift wins
// and the conflict is logged as a warning. Must run inside a transaction.
func (service *trackingService) resolveAssignment(ctx context.Context, driverID, busID string, now time.Time) (*assignment.Assignment, error) {
	matches, err := service.assignments.FindActive(ctx, driverID, busID, now)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, assignment.ErrNoActiveAssignment
	}
	if len(matches) > 1 {
		service.logger.Warn(ctx, "assignment_conflict", "Multiple active assignments match, using newest shift_start", map[string]any{
			"driver_id": driverID,
			"bus_id":    busID,
			"matches":   len(matches),
		})
	}
	// FindActive orders newest shift_start first
	return &matches[0], nil
}

// publishBusChanged emits one change-stream event. Callers hold the per-bus
// lock, so events for the same bus leave in write order.
func (service *trackingService) publishBusChanged(ctx context.Context, kind, reason, corrID string, snap *bus.Bus, mutationAt time.Time) error {
	msg := contracts.BusChangedMessage{
		BusID:      snap.BusID,
		RouteID:    snap.RouteID,
		DriverID:   snap.DriverID,
		Kind:       kind,
		Reason:     reason,
		Snapshot:   contracts.SnapshotFromBus(snap),
		MutationAt: mutationAt,
		Envelope: contracts.Envelope{
			CorrelationID: corrID,
			Producer:      producerName,
			SentAt:        time.Now().UTC(),
		},
	}

	if err := service.mq.PublishJSON(ctx, contracts.ExchangeBusStateFanout, "", msg); err != nil {
		return err
	}

	service.logger.Debug(ctx, "bus_changed_published", "Published bus change event", map[string]any{
		"bus_id":     snap.BusID,
		"route_id":   snap.RouteID,
		"kind":       kind,
		"request_id": corrID,
	})
	return nil
}
