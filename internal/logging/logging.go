// Package logging provides the structured logger used across rdbkv.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// F is shorthand for building a Field
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Logger interface for custom logging implementations
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// Options configures the hclog backed logger
type Options struct {
	Name   string
	Level  string
	Output io.Writer
	JSON   bool
}

// New returns a Logger backed by go-hclog. Unknown levels fall back to info.
func New(opts Options) Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	level := hclog.LevelFromString(strings.TrimSpace(opts.Level))
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	return &hclogLogger{
		hl: hclog.New(&hclog.LoggerOptions{
			Name:       opts.Name,
			Level:      level,
			Output:     opts.Output,
			JSONFormat: opts.JSON,
		}),
	}
}

// Wrap adapts an existing hclog.Logger
func Wrap(hl hclog.Logger) Logger {
	return &hclogLogger{hl: hl}
}

// Nop returns a Logger that discards everything
func Nop() Logger {
	return &hclogLogger{hl: hclog.NewNullLogger()}
}

type hclogLogger struct {
	hl hclog.Logger
}

func (l *hclogLogger) Debug(msg string, fields ...Field) {
	l.hl.Debug(msg, toArgs(fields)...)
}

func (l *hclogLogger) Info(msg string, fields ...Field) {
	l.hl.Info(msg, toArgs(fields)...)
}

func (l *hclogLogger) Error(msg string, fields ...Field) {
	l.hl.Error(msg, toArgs(fields)...)
}

func toArgs(fields []Field) []interface{} {
	if len(fields) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		args = append(args, f.Key, f.Value)
	}
	return args
}
