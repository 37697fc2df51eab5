package trackingservice

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"bus-track/internal/general/config"
	"bus-track/internal/general/jwt"
	"bus-track/internal/general/logger"
	"bus-track/internal/general/postgres"
	"bus-track/internal/general/rabbitmq"
	"bus-track/internal/general/websocket"
	"bus-track/internal/software/tracking/handler"
	"bus-track/internal/software/tracking/service"
)

// Run wires and runs the tracking service until ctx is cancelled.
// runWorkers elects this instance to run the staleness and ETA loops in
// addition to the workers.enabled config flag.
func Run(ctx context.Context, maxConcurrent int, runWorkers bool) error {
	// set up a new logger for the tracking service with a static request ID for startup logs
	logger := logger.New("tracking-service")
	ctx = logger.WithRequestID(ctx, "startup-001")

	// load configuration
	cfg, err := config.LoadFromFile("./config/config.yaml")
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// set up a Postgres connection pool
	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	// connect to RabbitMQ
	rmq, err := rabbitmq.ConnectRabbitMQ(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
		return err
	}
	defer rmq.Close()

	// set up the JWT manager
	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, 2*time.Hour)

	// set up the necessary repos
	uow := postgres.NewUnitOfWork(pool)
	driverRepo := postgres.NewDriverRepo()
	assignmentRepo := postgres.NewAssignmentRepo()
	routeRepo := postgres.NewRouteRepo()
	busRepo := postgres.NewBusRepo()

	// set up the subscription hub and the tracking service
	hub := websocket.NewHub()
	svc := service.NewTrackingService(logger, cfg, uow, driverRepo, assignmentRepo, routeRepo, busRepo, rmq, hub)

	// set up the websocket entry points around the hub
	ws := websocket.NewWebSocket(logger, jwtManager, svc, hub, cfg.Socket.OutboundQueue)

	// start the change-stream and ETA-stream consumers feeding the hub
	svc.RunBackgroundConsumers(ctx)

	// staleness + ETA workers run on one instance only
	if runWorkers || cfg.Workers.Enabled {
		svc.RunWorkers(ctx)
	}

	// set up the HTTP handler and its routes
	mux := http.NewServeMux()
	httpHandler := handler.NewTrackingHTTPHandler(svc, logger, ws)
	httpHandler.RegisterRoutes(mux)

	// concurrency limiter (global) — blocks when capacity is full
	limitedHandler := withConcurrencyLimit(maxConcurrent, mux)

	// set up the server configurations
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),                 // listen on the specified port
		Handler:           limitedHandler,                                    // apply the concurrency limiter to HTTP handler
		ReadHeaderTimeout: 5 * time.Second,                                   // time to read headers
		ReadTimeout:       0,                                                 // no global read timeout: WebSocket connections are long-lived
		WriteTimeout:      0,                                                 // per-send deadlines are set on the sockets themselves
		IdleTimeout:       60 * time.Second,                                  // keep-alive window
		BaseContext:       func(net.Listener) context.Context { return ctx }, // pass base ctx to all handlers
	}

	// log service start
	logger.Info(ctx, "service_started",
		fmt.Sprintf("Tracking Service started on port %d", cfg.HTTP.Port),
		map[string]any{"port": cfg.HTTP.Port, "max_concurrent": maxConcurrent, "workers": runWorkers || cfg.Workers.Enabled},
	)

	// start the server in a background goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	// wait for context cancellation or server error
	select {
	case <-ctx.Done():
		// graceful HTTP shutdown on context cancel
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
	case err := <-errCh:
		// server returned a terminal error at startup or during run
		if err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_server_error", "HTTP server terminated with error", err, map[string]any{"port": cfg.HTTP.Port})
			return err
		}
		return nil
	}

	return nil
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It controls how many HTTP requests can be in-progress at the same time.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			// client canceled or server is shutting down
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
