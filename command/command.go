// Package command turns decoded request frames into the closed set of
// commands the server understands.
package command

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/raniellyferreira/rdbkv/protocol"
)

// Command is one of Ping, Echo, Get, Set, ConfigGet or Keys.
type Command interface {
	// Name returns the upper-case verb
	Name() string
	command()
}

// Ping replies PONG
type Ping struct{}

// Echo replies with its text
type Echo struct {
	Text []byte
}

// Get reads a key
type Get struct {
	Key string
}

// Set writes a key. TTL is nil when PX was not given.
type Set struct {
	Key   string
	Value []byte
	TTL   *time.Duration
}

// ConfigGet reads a configuration parameter
type ConfigGet struct {
	Param string
}

// Keys lists every live key
type Keys struct{}

func (Ping) Name() string      { return "PING" }
func (Echo) Name() string      { return "ECHO" }
func (Get) Name() string       { return "GET" }
func (Set) Name() string       { return "SET" }
func (ConfigGet) Name() string { return "CONFIG" }
func (Keys) Name() string      { return "KEYS" }

func (Ping) command()      {}
func (Echo) command()      {}
func (Get) command()       {}
func (Set) command()       {}
func (ConfigGet) command() {}
func (Keys) command()      {}

// Error reports a frame that does not form a valid command
type Error struct {
	Reason string
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Reason
}

func errorf(format string, args ...interface{}) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

// Reasons reported for frames without a usable verb
const (
	ReasonInvalidCommand      = "invalid command"
	ReasonUnrecognizedCommand = "unrecognized command"
)

// maxTTLMillis is the largest PX accepted without overflowing time.Duration
const maxTTLMillis = math.MaxInt64 / int64(time.Millisecond)

// Parse validates a frame and builds the matching Command
func Parse(frame []protocol.Value) (Command, error) {
	if len(frame) == 0 || !frame[0].IsString() {
		return nil, &Error{Reason: ReasonInvalidCommand}
	}

	verb := strings.ToUpper(string(frame[0].Data))
	args := frame[1:]

	for _, arg := range args {
		if !arg.IsString() {
			return nil, errorf("invalid argument type for '%s' command", strings.ToLower(verb))
		}
	}

	switch verb {
	case "PING":
		if len(args) != 0 {
			return nil, wrongArity(verb)
		}
		return Ping{}, nil

	case "ECHO":
		if len(args) != 1 {
			return nil, wrongArity(verb)
		}
		return Echo{Text: args[0].Data}, nil

	case "GET":
		if len(args) != 1 {
			return nil, wrongArity(verb)
		}
		return Get{Key: string(args[0].Data)}, nil

	case "SET":
		return parseSet(args)

	case "CONFIG":
		return parseConfig(args)

	case "KEYS":
		if len(args) != 0 {
			return nil, wrongArity(verb)
		}
		return Keys{}, nil

	default:
		return nil, &Error{Reason: ReasonUnrecognizedCommand}
	}
}

func parseSet(args []protocol.Value) (Command, error) {
	switch len(args) {
	case 2:
		return Set{Key: string(args[0].Data), Value: args[1].Data}, nil

	case 4:
		if !strings.EqualFold(string(args[2].Data), "PX") {
			return nil, errorf("syntax error: unsupported SET option '%s'", args[2].Data)
		}
		ttl, err := parseMillis(args[3].Data)
		if err != nil {
			return nil, err
		}
		return Set{Key: string(args[0].Data), Value: args[1].Data, TTL: &ttl}, nil

	default:
		return nil, wrongArity("SET")
	}
}

func parseConfig(args []protocol.Value) (Command, error) {
	if len(args) == 0 {
		return nil, wrongArity("CONFIG")
	}
	if !strings.EqualFold(string(args[0].Data), "GET") {
		return nil, errorf("unknown CONFIG subcommand '%s'", args[0].Data)
	}
	if len(args) != 2 {
		return nil, wrongArity("CONFIG GET")
	}
	return ConfigGet{Param: string(args[1].Data)}, nil
}

// parseMillis parses the PX argument as a non-negative decimal integer
func parseMillis(b []byte) (time.Duration, error) {
	ms, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil || ms > uint64(maxTTLMillis) {
		return 0, errorf("PX value is not an integer or out of range")
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func wrongArity(verb string) *Error {
	return errorf("wrong number of arguments for '%s' command", strings.ToLower(verb))
}
