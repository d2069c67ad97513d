// Package metrics exposes rdbkv counters and gauges in the Prometheus
// format. A Collector owns its registry, so several servers in one process
// (tests, mostly) never collide.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rdbkv"

// Error kinds used as the "kind" label of rdbkv_command_errors_total
const (
	KindProtocol = "protocol"
	KindCommand  = "command"
)

// Collector records server activity. It also implements
// storage.StorageObserver.
type Collector struct {
	registry *prometheus.Registry

	commands      *prometheus.CounterVec
	commandErrors *prometheus.CounterVec
	keysSet       prometheus.Counter
	keysExpired   prometheus.Counter
	connections   prometheus.Gauge
	snapshotKeys  prometheus.Gauge
}

// New creates a Collector with its own registry. Go runtime and process
// collectors are registered alongside the rdbkv metrics.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands executed, by command name.",
		}, []string{"command"}),
		commandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_errors_total",
			Help:      "Requests answered with an error reply, by error kind.",
		}, []string{"kind"}),
		keysSet: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_set_total",
			Help:      "Keys written by SET or snapshot load.",
		}),
		keysExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_expired_total",
			Help:      "Expired keys evicted from the store.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Client connections currently being served.",
		}),
		snapshotKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_keys_loaded",
			Help:      "Keys loaded from the RDB snapshot at startup.",
		}),
	}

	c.registry.MustRegister(
		c.commands,
		c.commandErrors,
		c.keysSet,
		c.keysExpired,
		c.connections,
		c.snapshotKeys,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry the collector publishes to
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CommandProcessed counts one executed command
func (c *Collector) CommandProcessed(name string) {
	c.commands.WithLabelValues(name).Inc()
}

// CommandError counts one error reply of the given kind
func (c *Collector) CommandError(kind string) {
	c.commandErrors.WithLabelValues(kind).Inc()
}

func (c *Collector) ConnectionOpened() {
	c.connections.Inc()
}

func (c *Collector) ConnectionClosed() {
	c.connections.Dec()
}

// SnapshotLoaded records the number of keys applied from the snapshot
func (c *Collector) SnapshotLoaded(keys int) {
	c.snapshotKeys.Set(float64(keys))
}

// OnKeySet implements storage.StorageObserver
func (c *Collector) OnKeySet(key string, value []byte) {
	c.keysSet.Inc()
}

// OnKeyExpired implements storage.StorageObserver
func (c *Collector) OnKeyExpired(key string) {
	c.keysExpired.Inc()
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// NewHTTPServer returns an http.Server exposing Handler at /metrics
func (c *Collector) NewHTTPServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
