package rdbkv

import (
	"net"
	"strconv"
	"time"

	"github.com/raniellyferreira/rdbkv/config"
	"github.com/raniellyferreira/rdbkv/metrics"
	"github.com/raniellyferreira/rdbkv/storage"
)

// options holds the configuration for a Server
type options struct {
	settings *config.Settings

	// Observability
	logger  Logger
	metrics *metrics.Collector

	clock       storage.Clock
	idleTimeout time.Duration
}

// defaultOptions returns a configuration with sensible defaults
func defaultOptions() *options {
	return &options{
		settings: config.Default(),
		clock:    storage.RealClock(),
	}
}

// Option represents a configuration option for a Server
type Option func(*options) error

// WithSettings replaces every setting at once, typically with the result
// of config.Loader.Load
func WithSettings(s *config.Settings) Option {
	return func(o *options) error {
		if s == nil {
			return ErrInvalidConfig
		}
		copied := *s
		o.settings = &copied
		return nil
	}
}

// WithAddr sets the listen address
//
// Example:
//
//	WithAddr("127.0.0.1:6379")
//	WithAddr("0.0.0.0:6380")
func WithAddr(addr string) Option {
	return func(o *options) error {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return ErrInvalidConfig
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return ErrInvalidConfig
		}
		if host == "" {
			host = "0.0.0.0"
		}
		o.settings.Server.Bind = host
		o.settings.Server.Port = p
		return nil
	}
}

// WithWorkers sets how many connections are served concurrently
func WithWorkers(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return ErrInvalidConfig
		}
		o.settings.Server.Workers = n
		return nil
	}
}

// WithSnapshot sets the directory and file name of the RDB snapshot loaded
// at startup. Both values are also answered by CONFIG GET.
//
// Example:
//
//	WithSnapshot("/tmp/redis-files", "dump.rdb")
func WithSnapshot(dir, dbfilename string) Option {
	return func(o *options) error {
		o.settings.Snapshot.Dir = dir
		o.settings.Snapshot.DBFilename = dbfilename
		return nil
	}
}

// WithLogger sets a custom logger
func WithLogger(logger Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return ErrInvalidConfig
		}
		o.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector. Without it a collector is only
// created when a metrics address is configured.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) error {
		o.metrics = c
		return nil
	}
}

// WithMetricsAddr serves /metrics on addr
func WithMetricsAddr(addr string) Option {
	return func(o *options) error {
		o.settings.Metrics.Addr = addr
		return nil
	}
}

// WithClock sets the clock used for key expiry
func WithClock(clock storage.Clock) Option {
	return func(o *options) error {
		if clock == nil {
			return ErrInvalidConfig
		}
		o.clock = clock
		return nil
	}
}

// WithIdleTimeout closes client connections idle for longer than d
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return ErrInvalidConfig
		}
		o.idleTimeout = d
		return nil
	}
}
