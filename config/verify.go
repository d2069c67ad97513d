package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSettings is wrapped by every error returned from Verify
var ErrInvalidSettings = errors.New("invalid settings")

var logLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
	"off":   true,
}

// Verify validates the settings and reports every problem found.
func Verify(s *Settings) error {
	var errs []error

	if s.Server.Bind == "" {
		errs = append(errs, invalid("server.bind is required"))
	}
	// port 0 asks the kernel for a free port
	if s.Server.Port < 0 || s.Server.Port > 65535 {
		errs = append(errs, invalid("server.port %d out of range", s.Server.Port))
	}
	if s.Server.Workers < 1 {
		errs = append(errs, invalid("server.workers must be at least 1, got %d", s.Server.Workers))
	}
	if !logLevels[strings.ToLower(s.Log.Level)] {
		errs = append(errs, invalid("log.level %q is not one of trace, debug, info, warn, error, off", s.Log.Level))
	}

	return errors.Join(errs...)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidSettings, fmt.Sprintf(format, args...))
}
