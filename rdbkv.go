package rdbkv

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/raniellyferreira/rdbkv/config"
	"github.com/raniellyferreira/rdbkv/internal/logging"
	"github.com/raniellyferreira/rdbkv/metrics"
	"github.com/raniellyferreira/rdbkv/rdb"
	"github.com/raniellyferreira/rdbkv/server"
	"github.com/raniellyferreira/rdbkv/storage"
)

// metricsShutdownTimeout bounds how long Close waits for metrics scrapes
const metricsShutdownTimeout = 5 * time.Second

// Server is an in-memory key-value server seeded from an optional RDB
// snapshot
type Server struct {
	opts *options

	// Components
	storage  *storage.MemoryStorage
	registry *config.Registry
	server   *server.Server
	metrics  *metrics.Collector

	metricsHTTP     *http.Server
	metricsListener net.Listener

	// State
	mu       sync.Mutex
	started  bool
	closed   bool
	snapshot *rdb.LoadStats
}

// New creates a new Server with the given options
//
// The server is created but not started. Use Start() to load the snapshot
// and begin accepting clients.
func New(opts ...Option) (*Server, error) {
	o := defaultOptions()

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	if err := config.Verify(o.settings); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if o.logger == nil {
		o.logger = logging.New(logging.Options{
			Name:  "rdbkv",
			Level: o.settings.Log.Level,
			JSON:  o.settings.Log.JSON,
		})
	}
	if o.metrics == nil && o.settings.Metrics.Addr != "" {
		o.metrics = metrics.New()
	}

	storeOpts := []storage.MemoryOption{storage.WithClock(o.clock)}
	if o.metrics != nil {
		storeOpts = append(storeOpts, storage.WithObserver(o.metrics))
	}
	store := storage.NewMemory(storeOpts...)

	registry := o.settings.Registry()

	serverOpts := []server.Option{
		server.WithLogger(o.logger),
		server.WithWorkers(o.settings.Server.Workers),
		server.WithRegistry(registry),
		server.WithIdleTimeout(o.idleTimeout),
	}
	if o.metrics != nil {
		serverOpts = append(serverOpts, server.WithMetrics(o.metrics))
	}

	return &Server{
		opts:     o,
		storage:  store,
		registry: registry,
		server:   server.NewServer(o.settings.Addr(), store, serverOpts...),
		metrics:  o.metrics,
	}, nil
}

// Start loads the snapshot, if one is configured, and then starts the
// listener. No client is accepted before the snapshot is in the store.
//
// Example:
//
//	if err := srv.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.loadSnapshot(); err != nil {
		return &StartupError{Phase: PhaseSnapshot, Err: err}
	}

	if err := s.server.Start(); err != nil {
		return &StartupError{Phase: PhaseListen, Err: err}
	}

	if addr := s.opts.settings.Metrics.Addr; addr != "" {
		if err := s.startMetrics(addr); err != nil {
			_ = s.server.Stop()
			return &StartupError{Phase: PhaseMetrics, Err: err}
		}
	}

	s.started = true
	return nil
}

// loadSnapshot applies the configured snapshot. A missing file leaves the
// store empty.
func (s *Server) loadSnapshot() error {
	path, ok := s.opts.settings.SnapshotPath()
	if !ok {
		return nil
	}

	stats, err := rdb.LoadFile(path, s.storage)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.opts.logger.Info("snapshot not found, starting empty", logging.F("path", path))
			return nil
		}
		return err
	}

	s.snapshot = &stats
	if s.metrics != nil {
		s.metrics.SnapshotLoaded(stats.Keys)
	}
	s.opts.logger.Info("snapshot loaded",
		logging.F("path", path),
		logging.F("version", stats.Version),
		logging.F("keys", stats.Keys),
		logging.F("bytes", stats.Bytes),
		logging.F("xxhash", fmt.Sprintf("%016x", stats.Checksum)))
	return nil
}

func (s *Server) startMetrics(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.metricsListener = listener
	s.metricsHTTP = s.metrics.NewHTTPServer(addr)

	go func() {
		if err := s.metricsHTTP.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.opts.logger.Error("metrics server error", logging.F("error", err))
		}
	}()

	s.opts.logger.Info("metrics listening", logging.F("addr", listener.Addr().String()))
	return nil
}

// Close gracefully shuts down the server
//
// It stops accepting clients, closes open connections and stops the
// metrics endpoint. Calling Close more than once is a no-op.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.server.Stop(); err != nil {
		errs = append(errs, err)
	}

	if s.metricsHTTP != nil {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := s.metricsHTTP.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Addr returns the address clients connect to
func (s *Server) Addr() string {
	return s.server.Addr()
}

// MetricsAddr returns the metrics endpoint address, or "" when disabled
func (s *Server) MetricsAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metricsListener == nil {
		return ""
	}
	return s.metricsListener.Addr().String()
}

// Storage returns the underlying store for direct access
func (s *Server) Storage() storage.Storage {
	return s.storage
}

// Registry returns the registry answered by CONFIG GET
func (s *Server) Registry() *config.Registry {
	return s.registry
}

// Metrics returns the collector, or nil when metrics are disabled
func (s *Server) Metrics() *metrics.Collector {
	return s.metrics
}

// SnapshotStats reports the snapshot applied by Start. ok is false when no
// snapshot was loaded.
func (s *Server) SnapshotStats() (stats rdb.LoadStats, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return rdb.LoadStats{}, false
	}
	return *s.snapshot, true
}
