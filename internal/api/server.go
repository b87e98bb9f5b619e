package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nomnomlab/nomnom-core/internal/bridge"
	"github.com/nomnomlab/nomnom-core/internal/infrastructure/config"
	"github.com/nomnomlab/nomnom-core/internal/infrastructure/logging"
	"github.com/nomnomlab/nomnom-core/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Feeder is the bridge surface the API depends on. Satisfied by
// *bridge.Bridge; tests use fakes.
type Feeder interface {
	EnsureConnected(ctx context.Context) error
	Snapshot() bridge.Snapshot
	SendManualFeed(ctx context.Context, req bridge.ManualFeedRequest) (bridge.ManualFeedCommand, error)
	SendAutoFeedConfig(ctx context.Context, req bridge.AutoFeedRequest) (bridge.AutoFeedCommand, error)
	Register(listener bridge.Listener) (unregister func())
	HealthCheck(ctx context.Context) error
}

// FeedMetrics records dispensed-feed events in the time-series store.
type FeedMetrics interface {
	WriteFeedEvent(deviceID, source string, grams float64)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Bridge  Feeder
	History telemetry.Repository // optional: history endpoint returns 404 when nil
	Metrics FeedMetrics          // optional: feed events skipped when nil
	// DeviceID tags feed events written to the metrics store.
	DeviceID string
	Version  string
}

// Server is the HTTP API server for NomNom Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	bridge   Feeder
	history  telemetry.Repository
	metrics  FeedMetrics
	deviceID string
	version  string
	server   *http.Server
	hub      *Hub
	cancel   context.CancelFunc // cancels background goroutines on Close()
	unwatch  func()             // removes the telemetry broadcast listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, bridge)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		bridge:   deps.Bridge,
		history:  deps.History,
		metrics:  deps.Metrics,
		deviceID: deps.DeviceID,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, registers a bridge
// listener that relays routed telemetry to WebSocket clients, and launches
// the HTTP listener in a background goroutine. The server can be stopped
// with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	// Relay every routed telemetry message to subscribed WebSocket clients,
	// followed by the refreshed summary.
	s.unwatch = s.bridge.Register(s.broadcastTelemetry)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Start listening in background
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// broadcastTelemetry fans a routed message out to WebSocket subscribers.
func (s *Server) broadcastTelemetry(msg bridge.Message) error {
	if s.hub == nil {
		return nil
	}
	s.hub.Broadcast(WSChannelMessage, map[string]any{
		"channel":     msg.Channel,
		"topic":       msg.Topic,
		"received_at": msg.ReceivedAt.UTC().Format(time.RFC3339),
		"data":        msg.Decoded,
	})
	s.hub.Broadcast(WSChannelSummary, s.bridge.Snapshot().Summary)
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.unwatch != nil {
		s.unwatch()
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

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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
