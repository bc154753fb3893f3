// Package api provides the HTTP REST API and WebSocket server for FishControl.
//
// It exposes the device catalogue, task store, execution control, and manual
// command submission to user interfaces, and pushes state and execution events
// to connected WebSocket clients.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fishcontrol/fishcontrol-core/internal/command"
	"github.com/fishcontrol/fishcontrol-core/internal/device"
	"github.com/fishcontrol/fishcontrol-core/internal/execution"
	"github.com/fishcontrol/fishcontrol-core/internal/infrastructure/config"
	"github.com/fishcontrol/fishcontrol-core/internal/infrastructure/logging"
	"github.com/fishcontrol/fishcontrol-core/internal/task"
	"github.com/fishcontrol/fishcontrol-core/internal/transport"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Devices    *device.Registry
	Tasks      *task.Registry
	States     *device.StateStore
	Dispatcher *command.Dispatcher
	Scheduler  *execution.Scheduler
	Monitor    *transport.Monitor // optional; nil when the probe is disabled
	Version    string
}

// Server is the HTTP API server for FishControl.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	devices    *device.Registry
	tasks      *task.Registry
	states     *device.StateStore
	dispatcher *command.Dispatcher
	scheduler  *execution.Scheduler
	monitor    *transport.Monitor
	version    string
	startedAt  time.Time
	server     *http.Server
	hub        *Hub
	cancel     context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Tasks == nil {
		return nil, fmt.Errorf("task registry is required")
	}
	if deps.States == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	// Monitor is optional; controller reachability reads as offline without it.

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		devices:    deps.Devices,
		tasks:      deps.Tasks,
		states:     deps.States,
		dispatcher: deps.Dispatcher,
		scheduler:  deps.Scheduler,
		monitor:    deps.Monitor,
		version:    deps.Version,
		hub:        NewHub(deps.WS, deps.Logger),
	}, nil
}

// Hub returns the server's WebSocket hub so the events fan-out can be wired
// to it before Start().
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and launches the HTTP listener in a background
// goroutine. The server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.startedAt = time.Now().UTC()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
