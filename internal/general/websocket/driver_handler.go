package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"bus-track/internal/domain/assignment"
	"bus-track/internal/domain/geo"
	"bus-track/internal/domain/user"
	"bus-track/internal/general/contracts"
	"bus-track/internal/general/jwt"
	"bus-track/internal/ports"

	"github.com/gorilla/websocket"
)

// driverToggleData is the inbound driver:toggle payload.
type driverToggleData struct {
	BusID  string `json:"bus_id"`
	Online bool   `json:"online"`
}

// driverMoveData is the inbound driver:move payload.
type driverMoveData struct {
	BusID      string    `json:"bus_id"`
	Lng        float64   `json:"lng"`
	Lat        float64   `json:"lat"`
	SpeedKmh   float64   `json:"speed_kmh"`
	HeadingDeg float64   `json:"heading_degrees"`
	Timestamp  time.Time `json:"timestamp"`
}

// ConnectDriver handles WebSocket connections from drivers with JWT auth.
func (ws *WebSocket) ConnectDriver(w http.ResponseWriter, r *http.Request) {
	// 1) Upgrade HTTP -> WS
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	// Teardown order (LIFO on return):
	defer conn.Close()               // close the socket last
	defer ws.writeLocks.Delete(conn) // forget per-connection mutex (idempotent)

	// 2) Set auth deadline
	conn.SetReadLimit(1 << 20) // 1 MiB
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		ws.logger.Error(r.Context(), "ws_set_deadline_failed", "Failed to set initial read deadline", err, nil)
		ws.sendAuthError(conn, contracts.CodeAuthInvalid, "internal server error")
		return
	}

	// 3) First frame must be the auth message
	msgType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			ws.logger.Error(r.Context(), "ws_auth_timeout", "Client disconnected before authentication", err, nil)
		} else {
			ws.logger.Error(r.Context(), "ws_auth_read_failed", "Failed to read auth message", err, nil)
		}
		ws.sendAuthError(conn, contracts.CodeAuthInvalid, "authentication timeout: please send auth message within 5 seconds")
		return
	}

	if msgType != websocket.TextMessage {
		ws.logger.Error(r.Context(), "ws_auth_invalid_format", "Auth message must be text format", nil, nil)
		ws.sendAuthError(conn, contracts.CodeAuthInvalid, "auth message must be in text format")
		return
	}

	res, err := jwt.ValidateWSAuth(firstFrame, ws.jwtMgr, user.RoleDriver)
	if err != nil {
		ws.logger.Error(r.Context(), "ws_auth_failed", "Invalid auth message or token", err, nil)
		ws.sendAuthError(conn, contracts.CodeAuthInvalid, "authentication failed: invalid token")
		ws.wsWriteClose(conn, websocket.ClosePolicyViolation, contracts.CodeAuthInvalid)
		return
	}
	driverID := res.Claims.Subject

	// 4) The subject must exist as a driver
	if err := ws.svc.VerifyDriver(r.Context(), driverID); err != nil {
		ws.logger.Error(r.Context(), "ws_auth_failed", "Token subject is not a known driver", err,
			map[string]any{"driver_id": driverID})
		ws.sendAuthError(conn, contracts.CodeAuthUnknown, "authentication failed: unknown driver")
		ws.wsWriteClose(conn, websocket.ClosePolicyViolation, contracts.CodeAuthUnknown)
		return
	}

	// 5) Send authentication success message
	if err := ws.sendAuthSuccess(conn, driverID); err != nil {
		ws.logger.Error(r.Context(), "ws_auth_success_failed", "Failed to send auth success message", err, nil)
		return
	}

	ws.logger.Info(r.Context(), "ws_connected", "Driver WebSocket connected",
		map[string]any{"driver_id": driverID})

	// 6) Reset read deadline after auth
	_ = conn.SetReadDeadline(time.Now().Add(wsReadWindow))
	conn.SetPongHandler(func(_ string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadWindow))
	})

	// 7) All post-auth writes go through the client queue; drivers also join
	//    their own bus/route rooms on toggle, so broadcasts reach them too
	client := NewClient(conn, ws.queueCap)
	defer client.Close()
	defer ws.hub.Remove(client)

	stop := make(chan struct{})
	defer close(stop)
	go ws.pingLoop(conn, stop)

	// 8) Best-effort offline demotion + throttle eviction when the socket dies
	defer ws.svc.DisconnectDriver(context.WithoutCancel(r.Context()), driverID)

	// 9) Read loop: route messages
	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadWindow))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				ws.logger.Error(r.Context(), "ws_unexpected_close", "Driver connection closed unexpectedly", err, map[string]any{
					"driver_id": driverID,
				})
				ws.wsWriteClose(conn, websocket.CloseInternalServerErr, "internal error")
			} else {
				ws.logger.Info(r.Context(), "ws_connection_closed", "Driver connection closed normally", map[string]any{
					"driver_id": driverID,
				})
				ws.wsWriteClose(conn, websocket.CloseNormalClosure, "bye")
			}
			break
		}

		var msg contracts.WSEnvelope
		if err := json.Unmarshal(payload, &msg); err != nil {
			_ = ws.sendJSON(client, "", "", contracts.WSDriverError{Type: "error", Error: "bad json"})
			continue
		}

		switch msg.Type {
		case contracts.EventDriverToggle:
			ws.handleDriverToggle(r.Context(), client, driverID, msg.Data)

		case contracts.EventDriverMove:
			ws.handleDriverMove(r.Context(), client, driverID, msg.Data)

		default:
			_ = ws.sendJSON(client, "", "", contracts.WSDriverError{Type: "error", Error: "unknown message type"})
		}
	}
}

// handleDriverToggle runs the toggle procedure and acks or errors on the socket.
func (ws *WebSocket) handleDriverToggle(ctx context.Context, client *Client, driverID string, data json.RawMessage) {
	var in driverToggleData
	if err := json.Unmarshal(data, &in); err != nil || in.BusID == "" {
		_ = ws.sendJSON(client, "", "", contracts.WSDriverError{
			Type: contracts.EventDriverToggleError, Error: "bad payload",
		})
		return
	}

	res, err := ws.svc.Toggle(ctx, ports.ToggleInput{DriverID: driverID, BusID: in.BusID, Online: in.Online})
	if err != nil {
		ws.logger.Error(ctx, "driver_toggle_failed", "driver:toggle rejected", err, map[string]any{
			"driver_id": driverID, "bus_id": in.BusID,
		})
		_ = ws.sendJSON(client, "", "", contracts.WSDriverError{
			Type: contracts.EventDriverToggleError, BusID: in.BusID, Error: driverErrorCode(err),
		})
		return
	}

	// auto-join so the driver observes its own broadcasts
	ws.hub.Join(BusRoom(res.BusID), client)
	ws.hub.Join(RouteRoom(res.RouteID), client)

	online := res.Online
	_ = ws.sendJSON(client, "", "", contracts.WSDriverAck{
		Type:      contracts.EventDriverToggleSuccess,
		BusID:     res.BusID,
		Online:    &online,
		Timestamp: res.Timestamp,
	})
}

// handleDriverMove runs the move procedure. Throttled samples are dropped
// silently: no ack, no error.
func (ws *WebSocket) handleDriverMove(ctx context.Context, client *Client, driverID string, data json.RawMessage) {
	var in driverMoveData
	if err := json.Unmarshal(data, &in); err != nil || in.BusID == "" {
		_ = ws.sendJSON(client, "", "", contracts.WSDriverError{
			Type: contracts.EventDriverMoveError, Error: "bad payload",
		})
		return
	}

	res, err := ws.svc.Move(ctx, ports.MoveInput{
		DriverID:   driverID,
		BusID:      in.BusID,
		Lng:        in.Lng,
		Lat:        in.Lat,
		SpeedKmh:   in.SpeedKmh,
		HeadingDeg: in.HeadingDeg,
		ClientTs:   in.Timestamp,
	})
	if err != nil {
		ws.logger.Error(ctx, "driver_move_failed", "driver:move rejected", err, map[string]any{
			"driver_id": driverID, "bus_id": in.BusID,
		})
		_ = ws.sendJSON(client, "", "", contracts.WSDriverError{
			Type: contracts.EventDriverMoveError, BusID: in.BusID, Error: driverErrorCode(err),
		})
		return
	}
	if !res.Accepted {
		return
	}

	_ = ws.sendJSON(client, "", "", contracts.WSDriverAck{
		Type:      contracts.EventDriverMoveSuccess,
		BusID:     res.BusID,
		Timestamp: res.Timestamp,
	})
}

// driverErrorCode maps service errors onto the wire error codes.
func driverErrorCode(err error) string {
	switch {
	case errors.Is(err, assignment.ErrNoActiveAssignment):
		return contracts.CodeNoActiveAssignment
	case errors.Is(err, geo.ErrInvalidLatitude), errors.Is(err, geo.ErrInvalidLongitude):
		return contracts.CodeInvalidCoord
	case errors.Is(err, geo.ErrInvalidSpeed):
		return contracts.CodeInvalidSpeed
	case errors.Is(err, geo.ErrInvalidHeading):
		return contracts.CodeInvalidHeading
	case errors.Is(err, ports.ErrNotFound):
		return contracts.CodeAuthUnknown
	default:
		return contracts.CodeStoreUnavailable
	}
}

// sendAuthError sends authentication error message to client
func (ws *WebSocket) sendAuthError(conn *websocket.Conn, code, message string) error {
	return ws.writeJSON(conn, map[string]any{
		"type":    "auth_error",
		"error":   code,
		"message": message,
		"success": false,
	})
}

// sendAuthSuccess sends authentication success message to client
func (ws *WebSocket) sendAuthSuccess(conn *websocket.Conn, driverID string) error {
	return ws.writeJSON(conn, map[string]any{
		"type":      "auth_success",
		"message":   "Authentication successful",
		"success":   true,
		"driver_id": driverID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
