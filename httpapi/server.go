// Package httpapi exposes the job protocol over HTTP: submit, progress and
// result endpoints, a websocket progress stream, and health/status reporting.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sinvec/gimp-kandinsky/coordinator"
	"github.com/sinvec/gimp-kandinsky/metrics"
)

// Coordinator is the job protocol behind the handlers.
type Coordinator interface {
	Submit(req coordinator.InpaintRequest) (coordinator.SubmitResponse, error)
	Progress(token string) coordinator.ProgressResponse
	CollectResult(token string) (coordinator.ResultResponse, error)
	Status() coordinator.Snapshot
}

// Tracker admits requests while the process is running. shutdown.Manager
// implements it.
type Tracker interface {
	Track() (func(), bool)
}

// ServerConfig configures the Server.
type ServerConfig struct {
	Host string
	Port int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// MaxBodySize caps request bodies; the pixel buffers dominate it
	MaxBodySize int64

	// ProgressInterval is the websocket push period
	ProgressInterval time.Duration

	// StatusLimit and StatusMaxLimit bound the recent jobs in /api/status
	StatusLimit    int
	StatusMaxLimit int

	// LogSkipPaths are not request-logged
	LogSkipPaths []string

	Version string
}

// DefaultServerConfig returns a ServerConfig with the defaults used by the
// plugin: loopback on port 5000.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:             "127.0.0.1",
		Port:             5000,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     60 * time.Second,
		IdleTimeout:      120 * time.Second,
		ShutdownTimeout:  30 * time.Second,
		MaxBodySize:      coordinator.MaxRequestBytes,
		ProgressInterval: 250 * time.Millisecond,
		StatusLimit:      20,
		StatusMaxLimit:   100,
		LogSkipPaths:     []string{"/health", "/progress"},
		Version:          "dev",
	}
}

// Server is the HTTP front of the coordinator.
//
//	srv := httpapi.NewServer(cfg, coord, store, manager, logger)
//	go srv.Start(ctx)
//	...
//	srv.Shutdown(ctx)
type Server struct {
	httpServer *http.Server
	router     chi.Router
	config     ServerConfig
	logger     *zap.Logger

	coord     Coordinator
	collector metrics.Collector
	tracker   Tracker
}

// NewServer wires the router. collector and tracker may be nil.
func NewServer(config ServerConfig, coord Coordinator, collector metrics.Collector, tracker Tracker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultServerConfig()
	if config.ProgressInterval <= 0 {
		config.ProgressInterval = defaults.ProgressInterval
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = defaults.MaxBodySize
	}
	if config.StatusLimit <= 0 {
		config.StatusLimit = defaults.StatusLimit
	}
	if config.StatusMaxLimit < config.StatusLimit {
		config.StatusMaxLimit = config.StatusLimit
	}

	s := &Server{
		config:    config,
		logger:    logger,
		coord:     coord,
		collector: collector,
		tracker:   tracker,
	}
	s.router = s.routes()

	addr := net.JoinHostPort(config.Host, fmt.Sprint(config.Port))
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
		ErrorLog:     zap.NewStdLog(logger.Named("http")),
	}

	logger.Info("HTTP server created", zap.String("addr", addr))
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	r.Use(RequestLogger(s.logger, s.config.LogSkipPaths...))
	r.Use(middleware.Recoverer)
	if s.tracker != nil {
		r.Use(TrackRequests(s.tracker))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)

	r.Group(func(r chi.Router) {
		r.Use(limitBody(s.config.MaxBodySize))
		r.Post("/inpaint", s.handleInpaint)
		r.Get("/progress", s.handleProgress)
		r.Get("/result", s.handleResult)
	})

	r.Get("/ws/progress", s.handleProgressStream)
	return r
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start listens on the configured address and blocks until the server is shut
// down. Request contexts derive from ctx, so cancelling it ends open progress
// streams.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	s.logger.Info("HTTP server starting", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for active requests, bounded
// by ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
