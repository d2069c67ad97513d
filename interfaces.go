package rdbkv

import (
	"github.com/raniellyferreira/rdbkv/internal/logging"
	"github.com/raniellyferreira/rdbkv/server"
)

// Field represents a structured log field
type Field = logging.Field

// Logger interface for custom logging implementations
type Logger = logging.Logger

// MetricsCollector receives connection and command events
type MetricsCollector = server.Metrics

// NewLogger returns the default go-hclog backed Logger writing to stderr
func NewLogger(name, level string) Logger {
	return logging.New(logging.Options{Name: name, Level: level})
}

// NopLogger returns a Logger that discards everything
func NopLogger() Logger {
	return logging.Nop()
}
