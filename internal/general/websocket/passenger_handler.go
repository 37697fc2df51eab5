package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"bus-track/internal/general/contracts"
	"bus-track/internal/ports"

	"github.com/gorilla/websocket"
)

// subscribeData covers all four subscribe/unsubscribe payloads.
type subscribeData struct {
	BusID   string `json:"bus_id,omitempty"`
	RouteID string `json:"route_id,omitempty"`
}

// ConnectPassenger handles anonymous passenger WebSocket connections.
// No auth frame: the first message may already be a subscribe.
func (ws *WebSocket) ConnectPassenger(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	defer conn.Close()
	defer ws.writeLocks.Delete(conn)

	conn.SetReadLimit(1 << 20) // 1 MiB
	_ = conn.SetReadDeadline(time.Now().Add(wsReadWindow))
	conn.SetPongHandler(func(_ string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadWindow))
	})

	client := NewClient(conn, ws.queueCap)
	defer client.Close()
	defer ws.hub.Remove(client)

	stop := make(chan struct{})
	defer close(stop)
	go ws.pingLoop(conn, stop)

	ws.logger.Info(r.Context(), "ws_connected", "Passenger WebSocket connected", nil)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadWindow))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				ws.logger.Error(r.Context(), "ws_unexpected_close", "Passenger connection closed unexpectedly", err, nil)
				ws.wsWriteClose(conn, websocket.CloseInternalServerErr, "internal error")
			} else {
				ws.logger.Info(r.Context(), "ws_connection_closed", "Passenger connection closed normally", nil)
				ws.wsWriteClose(conn, websocket.CloseNormalClosure, "bye")
			}
			break
		}

		var msg contracts.WSEnvelope
		if err := json.Unmarshal(payload, &msg); err != nil {
			_ = ws.sendJSON(client, "", "", map[string]any{"type": "error", "error": "bad json"})
			continue
		}

		var data subscribeData
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				_ = ws.sendJSON(client, "", "", map[string]any{"type": "error", "error": "bad json"})
				continue
			}
		}

		switch msg.Type {
		case contracts.EventSubscribeBus:
			ws.handleSubscribeBus(r, client, data.BusID)

		case contracts.EventSubscribeRoute:
			ws.handleSubscribeRoute(r, client, data.RouteID)

		case contracts.EventUnsubscribeBus:
			if data.BusID != "" {
				ws.hub.Leave(BusRoom(data.BusID), client)
			}

		case contracts.EventUnsubscribeRoute:
			if data.RouteID != "" {
				ws.hub.Leave(RouteRoom(data.RouteID), client)
			}

		default:
			_ = ws.sendJSON(client, "", "", map[string]any{"type": "error", "error": "unknown message type"})
		}
	}
}

// handleSubscribeBus registers the membership and emits the current snapshot
// so the client has initial state. An unknown bus still registers: the
// subscription becomes live once the bus reports.
func (ws *WebSocket) handleSubscribeBus(r *http.Request, client *Client, busID string) {
	if busID == "" {
		_ = ws.sendJSON(client, "", "", map[string]any{"type": "error", "error": "bus_id required"})
		return
	}

	ws.hub.Join(BusRoom(busID), client)

	snap, err := ws.svc.GetBus(r.Context(), busID)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			ws.logger.Error(r.Context(), "subscribe_snapshot_failed", "Failed to read bus snapshot", err,
				map[string]any{"bus_id": busID})
		}
		return
	}

	_ = ws.sendJSON(client, contracts.ChangeKindStatus, busID, contracts.WSBusStatus{
		Type:         contracts.EventBusStatus,
		BusID:        snap.BusID,
		RouteID:      snap.RouteID,
		Online:       snap.Online,
		Status:       snap.Status,
		LastOnlineAt: snap.LastOnlineAt,
		LastUpdateAt: snap.LastUpdateAt,
		Timestamp:    time.Now().UTC(),
	})
}

// handleSubscribeRoute registers the membership and emits the online buses on
// the route.
func (ws *WebSocket) handleSubscribeRoute(r *http.Request, client *Client, routeID string) {
	if routeID == "" {
		_ = ws.sendJSON(client, "", "", map[string]any{"type": "error", "error": "route_id required"})
		return
	}

	ws.hub.Join(RouteRoom(routeID), client)

	buses, err := ws.svc.ListOnlineOnRoute(r.Context(), routeID)
	if err != nil {
		ws.logger.Error(r.Context(), "subscribe_snapshot_failed", "Failed to list route buses", err,
			map[string]any{"route_id": routeID})
		return
	}
	if buses == nil {
		buses = []contracts.BusSnapshot{}
	}

	_ = ws.sendJSON(client, "", "", contracts.WSRouteBuses{
		Type:      contracts.EventRouteBuses,
		RouteID:   routeID,
		Buses:     buses,
		Timestamp: time.Now().UTC(),
	})
}
