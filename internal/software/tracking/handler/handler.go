package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"bus-track/internal/general/logger"
	"bus-track/internal/general/websocket"
	"bus-track/internal/ports"
)

// TrackingHTTPHandler adapts HTTP and WebSocket entry points to the
// TrackingService.
type TrackingHTTPHandler struct {
	svc    ports.TrackingService
	logger *logger.Logger
	ws     *websocket.WebSocket
}

// NewTrackingHTTPHandler wires the handler around the TrackingService.
func NewTrackingHTTPHandler(svc ports.TrackingService, logger *logger.Logger, ws *websocket.WebSocket) *TrackingHTTPHandler {
	return &TrackingHTTPHandler{svc: svc, logger: logger, ws: ws}
}

// RegisterRoutes mounts tracking endpoints on the provided mux.
func (handler *TrackingHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /buses/near", handler.handleNear)
	mux.HandleFunc("GET /buses/{bus_id}", handler.handleGetBus)
	mux.HandleFunc("GET /buses", handler.handleListBuses)
	mux.HandleFunc("GET /health", handler.handleHealth)

	mux.HandleFunc("GET /ws/driver", handler.ws.ConnectDriver)
	mux.HandleFunc("GET /ws/passenger", handler.ws.ConnectPassenger)
}

// ----- general helpers -----

// jsonResponse takes any type of data and encode it to HTTP response.
func (handler *TrackingHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *TrackingHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *TrackingHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = randID()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// randID generates a random 24-char hex string suitable for request IDs.
func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
