package rdbkv

import (
	"errors"
	"fmt"
)

// Error types for specific failure scenarios
var (
	// ErrInvalidConfig indicates invalid configuration options
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrClosed indicates the server has been closed
	ErrClosed = errors.New("server is closed")

	// ErrAlreadyStarted indicates Start was called twice
	ErrAlreadyStarted = errors.New("server already started")
)

// Startup phases reported in StartupError
const (
	PhaseSnapshot = "snapshot"
	PhaseListen   = "listen"
	PhaseMetrics  = "metrics"
)

// StartupError represents a failure while bringing the server up
type StartupError struct {
	Phase string // "snapshot", "listen", "metrics"
	Err   error
}

// Error implements the error interface
func (e *StartupError) Error() string {
	return fmt.Sprintf("startup error in phase %s: %v", e.Phase, e.Err)
}

// Unwrap returns the wrapped error
func (e *StartupError) Unwrap() error {
	return e.Err
}
