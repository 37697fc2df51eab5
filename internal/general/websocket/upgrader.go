package websocket

import (
	"sync"
	"time"

	"bus-track/internal/general/jwt"
	"bus-track/internal/general/logger"
	"bus-track/internal/ports"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	ctrlTimeout      = 5 * time.Second
	wsReadWindow     = 60 * time.Second
	wsPingInterval   = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocket handles driver and passenger socket connections. Driver sockets
// authenticate via a JWT first frame; passenger sockets are anonymous.
type WebSocket struct {
	logger     *logger.Logger
	jwtMgr     *jwt.Manager
	svc        ports.TrackingService
	hub        *Hub
	queueCap   int
	writeLocks sync.Map // *websocket.Conn -> *sync.Mutex (driver sockets)
}

// NewWebSocket creates the socket handler around an existing hub.
func NewWebSocket(logger *logger.Logger, jwtMgr *jwt.Manager, svc ports.TrackingService, hub *Hub, queueCap int) *WebSocket {
	if queueCap <= 0 {
		queueCap = 64
	}
	return &WebSocket{
		logger:   logger,
		jwtMgr:   jwtMgr,
		svc:      svc,
		hub:      hub,
		queueCap: queueCap,
	}
}

// Hub exposes the subscription hub for the broadcaster consumers.
func (ws *WebSocket) Hub() *Hub {
	return ws.hub
}
