package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/raniellyferreira/rdbkv/config"
	"github.com/raniellyferreira/rdbkv/internal/logging"
	"github.com/raniellyferreira/rdbkv/protocol"
	"github.com/raniellyferreira/rdbkv/storage"
)

// DefaultWorkers is the number of connections served concurrently
const DefaultWorkers = 2

var (
	// ErrServerStarted is returned by Start on a running server
	ErrServerStarted = errors.New("server already started")

	// ErrServerStopped is returned by Start after Stop
	ErrServerStopped = errors.New("server stopped")
)

// Metrics receives server events. *metrics.Collector implements it.
type Metrics interface {
	CommandProcessed(name string)
	CommandError(kind string)
	ConnectionOpened()
	ConnectionClosed()
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithWorkers sets how many connections are served at the same time.
// Values below 1 keep the default.
func WithWorkers(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithRegistry sets the registry answered by CONFIG GET
func WithRegistry(registry *config.Registry) Option {
	return func(s *Server) {
		s.registry = registry
	}
}

// WithIdleTimeout closes connections that send nothing for d. Zero, the
// default, waits forever.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.idleTimeout = d
	}
}

// Server provides Redis protocol server functionality
type Server struct {
	storage  storage.Storage
	registry *config.Registry
	logger   logging.Logger
	metrics  Metrics

	// Server configuration
	addr        string
	workers     int
	idleTimeout time.Duration

	// Connection management
	listener net.Listener
	pool     *errgroup.Group
	clients  sync.Map // map[string]*Client

	// Control
	ctx        context.Context
	cancel     context.CancelFunc
	acceptDone chan struct{}
	mu         sync.Mutex
	started    bool
	stopped    bool
}

// Client represents a connected client
type Client struct {
	id     string
	conn   net.Conn
	reader *protocol.Reader
	writer *protocol.Writer
	server *Server

	closeOnce sync.Once
}

// NewServer creates a new server listening on addr once started
func NewServer(addr string, store storage.Storage, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		storage:    store,
		registry:   config.NewRegistry(),
		logger:     logging.Nop(),
		metrics:    nopMetrics{},
		addr:       addr,
		workers:    DefaultWorkers,
		ctx:        ctx,
		cancel:     cancel,
		acceptDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start listens on the configured address and begins accepting clients.
// It returns once the listener is bound.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrServerStopped
	}
	if s.started {
		return ErrServerStarted
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.listener = listener
	s.pool = &errgroup.Group{}
	s.pool.SetLimit(s.workers)
	s.started = true

	s.logger.Info("server listening",
		logging.F("addr", listener.Addr().String()),
		logging.F("workers", s.workers))

	go s.acceptConnections()
	return nil
}

// Stop closes the listener and every client connection, then waits for
// the workers to return. It is safe to call more than once.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	s.cancel()
	if !started {
		return nil
	}

	err := s.listener.Close()

	// The accept loop may be parked in pool.Go waiting for a busy worker,
	// so clients are closed before and after it exits.
	s.closeClients()
	<-s.acceptDone
	s.closeClients()

	_ = s.pool.Wait()
	s.logger.Info("server stopped")

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the number of tracked connections, including those
// waiting for a worker
func (s *Server) ClientCount() int {
	n := 0
	s.clients.Range(func(key, value interface{}) bool {
		n++
		return true
	})
	return n
}

func (s *Server) closeClients() {
	s.clients.Range(func(key, value interface{}) bool {
		if client, ok := value.(*Client); ok {
			client.Close()
		}
		return true
	})
}

// acceptConnections accepts new client connections
func (s *Server) acceptConnections() {
	defer close(s.acceptDone)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return // Server is shutting down
			}
			s.logger.Error("accept failed", logging.F("error", err))
			continue
		}

		client := s.newClient(conn)
		s.clients.Store(client.id, client)
		if s.ctx.Err() != nil {
			client.Close()
			return
		}

		// Go blocks while every worker is busy
		s.pool.Go(func() error {
			client.serve()
			return nil
		})
	}
}

func (s *Server) newClient(conn net.Conn) *Client {
	return &Client{
		id:     ulid.Make().String(),
		conn:   conn,
		reader: protocol.NewReader(conn),
		writer: protocol.NewWriter(conn),
		server: s,
	}
}

// ID returns the connection identifier used in logs
func (c *Client) ID() string {
	return c.id
}

// Close closes the client connection
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

// serve handles client requests until the connection ends
func (c *Client) serve() {
	s := c.server
	s.metrics.ConnectionOpened()
	s.logger.Debug("client connected",
		logging.F("conn", c.id),
		logging.F("remote", c.conn.RemoteAddr().String()))

	defer func() {
		c.Close()
		s.clients.Delete(c.id)
		s.metrics.ConnectionClosed()
		s.logger.Debug("client disconnected", logging.F("conn", c.id))
	}()

	for {
		if s.ctx.Err() != nil {
			return
		}

		if s.idleTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}

		frame, err := c.reader.ReadFrame()
		if err != nil {
			c.handleReadError(err)
			return
		}

		reply := s.Handle(frame)
		if err := c.writer.WriteReply(reply); err != nil {
			return
		}
		if err := c.writer.Flush(); err != nil {
			return
		}
	}
}

// handleReadError answers malformed input with an error reply. Transport
// failures and disconnects end the connection silently.
func (c *Client) handleReadError(err error) {
	var perr *protocol.ProtocolError
	if !errors.As(err, &perr) || perr.Err != nil || c.server.ctx.Err() != nil {
		return
	}

	c.server.metrics.CommandError(kindProtocol)
	c.server.logger.Error("closing connection after protocol error",
		logging.F("conn", c.id),
		logging.F("error", perr.Message))

	if err := c.writer.WriteReply(protocol.ErrorReply(perr.Error())); err == nil {
		_ = c.writer.Flush()
	}
}

type nopMetrics struct{}

func (nopMetrics) CommandProcessed(string) {}
func (nopMetrics) CommandError(string)     {}
func (nopMetrics) ConnectionOpened()       {}
func (nopMetrics) ConnectionClosed()       {}
