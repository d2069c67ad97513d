package rdb

import (
	"errors"
	"fmt"
)

// Error kinds returned by the decoder. Every *SnapshotError matches
// exactly one of them with errors.Is.
var (
	ErrBadHeader             = errors.New("bad RDB header")
	ErrTruncated             = errors.New("truncated RDB data")
	ErrUnsupportedValueType  = errors.New("unsupported RDB value type")
	ErrUnsupportedIntWidth   = errors.New("unsupported RDB integer encoding")
	ErrUnsupportedLengthForm = errors.New("unsupported RDB length encoding")
)

// SnapshotError describes where and why decoding stopped
type SnapshotError struct {
	Kind   error
	Offset int
	// Tag is the offending byte for value type, integer width and
	// length form errors
	Tag    byte
	Detail string
}

// Error implements the error interface
func (e *SnapshotError) Error() string {
	msg := fmt.Sprintf("%v at offset %d", e.Kind, e.Offset)
	switch e.Kind {
	case ErrUnsupportedValueType, ErrUnsupportedIntWidth, ErrUnsupportedLengthForm:
		msg += fmt.Sprintf(" (byte 0x%02x)", e.Tag)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap returns the error kind
func (e *SnapshotError) Unwrap() error {
	return e.Kind
}
