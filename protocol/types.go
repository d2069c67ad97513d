package protocol

import (
	"errors"
	"fmt"
	"strconv"
)

// ValueType represents the type of a RESP request element
type ValueType byte

const (
	// RESP value types accepted inside a request frame
	TypeSimpleString ValueType = '+'
	TypeInteger      ValueType = ':'
	TypeBulkString   ValueType = '$'

	// TypeArray only appears as the frame header
	TypeArray ValueType = '*'
)

// Value represents one decoded element of a request frame
type Value struct {
	Type    ValueType
	Data    []byte
	Integer int64
}

// String returns a string representation of the value
func (v Value) String() string {
	switch v.Type {
	case TypeSimpleString, TypeBulkString:
		return string(v.Data)
	case TypeInteger:
		return strconv.FormatInt(v.Integer, 10)
	default:
		return fmt.Sprintf("unknown type %c", v.Type)
	}
}

// IsString reports whether the value carries text (simple or bulk string)
func (v Value) IsString() bool {
	return v.Type == TypeSimpleString || v.Type == TypeBulkString
}

// Bulk builds a bulk string value
func Bulk(s string) Value {
	return Value{Type: TypeBulkString, Data: []byte(s)}
}

// ErrProtocol is matched by every decode failure
var ErrProtocol = errors.New("protocol error")

// ProtocolError represents a malformed request frame
type ProtocolError struct {
	Message string
	Data    []byte
	Err     error
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("protocol error: %s", e.Message)
}

// Is makes every ProtocolError match ErrProtocol
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

// Unwrap returns the underlying read error, if any
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func protocolErrorf(data []byte, format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Message: fmt.Sprintf(format, args...), Data: data}
}

// ReplyKind identifies the wire shape of a reply
type ReplyKind uint8

const (
	ReplySimple ReplyKind = iota
	ReplyError
	ReplyBulk
	ReplyNullBulk
	ReplyNull
	ReplyArray
)

// String returns the reply kind name
func (k ReplyKind) String() string {
	switch k {
	case ReplySimple:
		return "simple"
	case ReplyError:
		return "error"
	case ReplyBulk:
		return "bulk"
	case ReplyNullBulk:
		return "nullbulk"
	case ReplyNull:
		return "null"
	case ReplyArray:
		return "array"
	default:
		return "unknown"
	}
}

// Reply is a response to be encoded on the wire.
// Data is used by Simple, Error and Bulk; Items by Array.
type Reply struct {
	Kind  ReplyKind
	Data  []byte
	Items [][]byte
}

// SimpleReply builds a simple string reply
func SimpleReply(s string) Reply {
	return Reply{Kind: ReplySimple, Data: []byte(s)}
}

// ErrorReply builds an error reply; the "ERR " prefix is added on encode
func ErrorReply(msg string) Reply {
	return Reply{Kind: ReplyError, Data: []byte(msg)}
}

// BulkReply builds a bulk string reply
func BulkReply(data []byte) Reply {
	return Reply{Kind: ReplyBulk, Data: data}
}

// NullBulkReply builds the "$-1" reply
func NullBulkReply() Reply {
	return Reply{Kind: ReplyNullBulk}
}

// NullReply builds the "_" reply
func NullReply() Reply {
	return Reply{Kind: ReplyNull}
}

// ArrayReply builds an array of bulk strings
func ArrayReply(items ...[]byte) Reply {
	return Reply{Kind: ReplyArray, Items: items}
}

// StringArrayReply builds an array of bulk strings from strings
func StringArrayReply(items []string) Reply {
	out := make([][]byte, len(items))
	for i, s := range items {
		out[i] = []byte(s)
	}
	return Reply{Kind: ReplyArray, Items: out}
}
