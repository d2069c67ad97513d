package server

import (
	"strings"

	"github.com/raniellyferreira/rdbkv/command"
	"github.com/raniellyferreira/rdbkv/protocol"
)

// Error kinds reported to Metrics.CommandError
const (
	kindProtocol = "protocol"
	kindCommand  = "command"
)

// Handle parses one request frame and executes it. Invalid frames produce
// an error reply and leave the store untouched.
func (s *Server) Handle(frame []protocol.Value) protocol.Reply {
	cmd, err := command.Parse(frame)
	if err != nil {
		s.metrics.CommandError(kindCommand)
		return protocol.ErrorReply(err.Error())
	}

	s.metrics.CommandProcessed(strings.ToLower(cmd.Name()))
	return s.Execute(cmd)
}

// Execute applies a parsed command against the store and config registry
func (s *Server) Execute(cmd command.Command) protocol.Reply {
	switch cmd := cmd.(type) {
	case command.Ping:
		return protocol.SimpleReply("PONG")

	case command.Echo:
		return protocol.SimpleReply(string(cmd.Text))

	case command.Get:
		value, ok := s.storage.Get(cmd.Key)
		if !ok {
			return protocol.NullBulkReply()
		}
		return protocol.BulkReply(value)

	case command.Set:
		s.storage.SetWithTTL(cmd.Key, cmd.Value, cmd.TTL)
		return protocol.SimpleReply("OK")

	case command.ConfigGet:
		value, ok := s.registry.Get(cmd.Param)
		if !ok {
			return protocol.NullReply()
		}
		return protocol.ArrayReply([]byte(strings.ToLower(cmd.Param)), []byte(value))

	case command.Keys:
		return protocol.StringArrayReply(s.storage.Keys())

	default:
		return protocol.ErrorReply(command.ReasonUnrecognizedCommand)
	}
}
