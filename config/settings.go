package config

import (
	"net"
	"path/filepath"
	"strconv"
)

// Default configuration values.
const (
	DefaultBind     = "127.0.0.1"
	DefaultPort     = 6379
	DefaultWorkers  = 2
	DefaultLogLevel = "info"
)

// Settings is the root configuration for rdbkv-server.
type Settings struct {
	Server   ServerSection   `koanf:"server"`
	Snapshot SnapshotSection `koanf:"snapshot"`
	Log      LogSection      `koanf:"log"`
	Metrics  MetricsSection  `koanf:"metrics"`
}

// ServerSection configures the RESP listener.
type ServerSection struct {
	Bind    string `koanf:"bind"`
	Port    int    `koanf:"port"`
	Workers int    `koanf:"workers"`
}

// SnapshotSection locates the RDB file loaded at startup.
type SnapshotSection struct {
	Dir        string `koanf:"dir"`
	DBFilename string `koanf:"dbfilename"`
}

// LogSection configures logging.
type LogSection struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

// MetricsSection configures the Prometheus endpoint. An empty Addr
// disables it.
type MetricsSection struct {
	Addr string `koanf:"addr"`
}

// Default returns the default settings.
func Default() *Settings {
	return &Settings{
		Server: ServerSection{
			Bind:    DefaultBind,
			Port:    DefaultPort,
			Workers: DefaultWorkers,
		},
		Log: LogSection{
			Level: DefaultLogLevel,
		},
	}
}

// Addr returns the host:port the server listens on
func (s *Settings) Addr() string {
	return net.JoinHostPort(s.Server.Bind, strconv.Itoa(s.Server.Port))
}

// SnapshotPath returns the snapshot file path. ok is false unless both the
// directory and the file name are set.
func (s *Settings) SnapshotPath() (path string, ok bool) {
	if s.Snapshot.Dir == "" || s.Snapshot.DBFilename == "" {
		return "", false
	}
	return filepath.Join(s.Snapshot.Dir, s.Snapshot.DBFilename), true
}

// Registry publishes the settings visible to CONFIG GET. Snapshot names
// are only present when set.
func (s *Settings) Registry() *Registry {
	pairs := []Pair{
		{Name: "bind", Value: s.Server.Bind},
		{Name: "port", Value: strconv.Itoa(s.Server.Port)},
	}
	if s.Snapshot.Dir != "" {
		pairs = append(pairs, Pair{Name: "dir", Value: s.Snapshot.Dir})
	}
	if s.Snapshot.DBFilename != "" {
		pairs = append(pairs, Pair{Name: "dbfilename", Value: s.Snapshot.DBFilename})
	}
	return NewRegistry(pairs...)
}
