package service

import (
	"context"
	"os"
	"sync"

	"bus-track/internal/general/config"
	"bus-track/internal/general/logger"
	"bus-track/internal/general/rabbitmq"
	"bus-track/internal/general/websocket"
	"bus-track/internal/ports"
)

// messageBus is the slice of the RabbitMQ client the service depends on.
type messageBus interface {
	PublishJSON(ctx context.Context, exchange, routingKey string, msg any) error
	ConsumeInstanceQueue(ctx context.Context, queue, exchange string, handle rabbitmq.Handler) error
}

// trackingService holds all dependencies required by the tracking core.
type trackingService struct {
	logger      *logger.Logger
	cfg         *config.Config
	uow         ports.UnitOfWork
	drivers     ports.DriverRepository
	assignments ports.AssignmentRepository
	routes      ports.RouteRepository
	buses       ports.BusRepository
	mq          messageBus
	hub         *websocket.Hub
	hostname    string

	// busLocks serializes write+publish per bus_id so the change stream
	// carries events in write order.
	busLocks keyedMutex

	// throttle is the in-memory C3 registry, cleared per driver on disconnect.
	throttle *throttleRegistry

	// lastBusByDriver remembers the bus a driver last toggled or reported on,
	// for the best-effort offline demotion on disconnect.
	lastBusByDriver sync.Map // driverID -> busID string

	// etaState carries per-bus smoothed speed, owned by the ETA worker and
	// evicted on stale demotion.
	etaState *etaSpeedState
}

// NewTrackingService constructs the service with required dependencies.
func NewTrackingService(
	logger *logger.Logger,
	cfg *config.Config,
	uow ports.UnitOfWork,
	drivers ports.DriverRepository,
	assignments ports.AssignmentRepository,
	routes ports.RouteRepository,
	buses ports.BusRepository,
	mq *rabbitmq.Client,
	hub *websocket.Hub,
) ports.TrackingService {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "local"
	}
	return &trackingService{
		logger:      logger,
		cfg:         cfg,
		uow:         uow,
		drivers:     drivers,
		assignments: assignments,
		routes:      routes,
		buses:       buses,
		mq:          mq,
		hub:         hub,
		hostname:    hostname,
		throttle:    newThrottleRegistry(cfg.ThrottleMinInterval(), float64(cfg.Throttle.MinDistanceM)),
		etaState:    newETASpeedState(cfg.ETA.SmoothingAlpha),
	}
}

// VerifyDriver confirms the token subject exists as a driver record.
func (service *trackingService) VerifyDriver(ctx context.Context, driverID string) error {
	return service.uow.WithinTx(ctx, func(ctx context.Context) error {
		_, err := service.drivers.GetByID(ctx, driverID)
		return err
	})
}

// keyedMutex hands out one mutex per key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Lock acquires the mutex for key, creating it on first use.
func (km *keyedMutex) Lock(key string) *sync.Mutex {
	km.mu.Lock()
	if km.locks == nil {
		km.locks = make(map[string]*sync.Mutex)
	}
	l, ok := km.locks[key]
	if !ok {
		l = &sync.Mutex{}
		km.locks[key] = l
	}
	km.mu.Unlock()

	l.Lock()
	return l
}
