package service

import (
	"context"
	"encoding/json"
	"time"

	"bus-track/internal/general/contracts"
	"bus-track/internal/general/websocket"
)

// RunBackgroundConsumers starts the change-stream and ETA-stream consumers
// that feed the hub. Each instance binds its own auto-delete queue to the
// fanout exchanges, so every instance's broadcaster sees every mutation.
func (service *trackingService) RunBackgroundConsumers(ctx context.Context) {
	go func() {
		queue := contracts.QueueBusChangesPrefix + service.hostname
		err := service.mq.ConsumeInstanceQueue(ctx, queue, contracts.ExchangeBusStateFanout, service.handleBusChanged)
		if err != nil && ctx.Err() == nil {
			service.logger.Error(ctx, "change_stream_consumer_stopped", "Change stream consumer exited", err, nil)
		}
	}()

	go func() {
		queue := contracts.QueueETAUpdatesPrefix + service.hostname
		err := service.mq.ConsumeInstanceQueue(ctx, queue, contracts.ExchangeETAFanout, service.handleETAUpdate)
		if err != nil && ctx.Err() == nil {
			service.logger.Error(ctx, "eta_stream_consumer_stopped", "ETA stream consumer exited", err, nil)
		}
	}()
}

// handleBusChanged converts one change-stream event into the public payload
// and fans it out to bus and route room members.
func (service *trackingService) handleBusChanged(ctx context.Context, body []byte) error {
	var msg contracts.BusChangedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return err
	}

	// stale demotions also clear the ETA worker's smoothed-speed state,
	// including demotions performed by a sibling instance
	if msg.Kind == contracts.ChangeKindStale {
		service.etaState.Evict(msg.BusID)
	}

	rooms := []string{websocket.BusRoom(msg.BusID), websocket.RouteRoom(msg.RouteID)}
	now := time.Now().UTC()

	switch msg.Kind {
	case contracts.ChangeKindUpdate:
		if msg.Snapshot.Location == nil {
			return nil
		}
		payload, err := json.Marshal(contracts.WSBusUpdate{
			Type:         contracts.EventBusUpdate,
			BusID:        msg.BusID,
			RouteID:      msg.RouteID,
			Location:     *msg.Snapshot.Location,
			SpeedKmh:     msg.Snapshot.SpeedKmh,
			HeadingDeg:   msg.Snapshot.HeadingDeg,
			LastUpdateAt: msg.Snapshot.LastUpdateAt,
			Timestamp:    now,
		})
		if err != nil {
			return err
		}
		service.hub.Broadcast(rooms, contracts.ChangeKindUpdate, msg.BusID, payload)

	case contracts.ChangeKindStatus, contracts.ChangeKindStale:
		payload, err := json.Marshal(contracts.WSBusStatus{
			Type:         contracts.EventBusStatus,
			BusID:        msg.BusID,
			RouteID:      msg.RouteID,
			Online:       msg.Snapshot.Online,
			Status:       msg.Snapshot.Status,
			Reason:       msg.Reason,
			LastOnlineAt: msg.Snapshot.LastOnlineAt,
			LastUpdateAt: msg.Snapshot.LastUpdateAt,
			Timestamp:    now,
		})
		if err != nil {
			return err
		}
		service.hub.Broadcast(rooms, contracts.ChangeKindStatus, msg.BusID, payload)

	default:
		service.logger.Warn(ctx, "unknown_change_kind", "Dropping change event with unknown kind", map[string]any{
			"bus_id": msg.BusID,
			"kind":   msg.Kind,
		})
	}

	return nil
}

// handleETAUpdate relays an ETA broadcast to bus and route room members.
func (service *trackingService) handleETAUpdate(ctx context.Context, body []byte) error {
	var msg contracts.ETAUpdateMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return err
	}

	payload, err := json.Marshal(contracts.WSETAUpdate{
		Type:             contracts.EventETAUpdate,
		BusID:            msg.BusID,
		RouteID:          msg.RouteID,
		NextStop:         msg.NextStop,
		RouteProgress:    msg.RouteProgress,
		EstimatedArrival: msg.EstimatedArrival,
		Timestamp:        msg.Timestamp,
	})
	if err != nil {
		return err
	}

	rooms := []string{websocket.BusRoom(msg.BusID), websocket.RouteRoom(msg.RouteID)}
	service.hub.Broadcast(rooms, "", msg.BusID, payload)
	return nil
}
