package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
)

const (
	// CRLF is the protocol line terminator
	CRLF = "\r\n"

	// maxBulkSize is the maximum size for bulk strings (512MB)
	maxBulkSize = 512 * 1024 * 1024

	// maxArraySize is the maximum number of elements in a frame
	maxArraySize = 1024 * 1024

	// maxLineSize bounds header and simple string lines
	maxLineSize = 64 * 1024
)

var (
	crlfBytes = []byte(CRLF)
)

// Reader decodes request frames from a stream
type Reader struct {
	br *bufio.Reader
}

// NewReader creates a new frame reader
func NewReader(r io.Reader) *Reader {
	return &Reader{
		br: bufio.NewReader(r),
	}
}

// Reset discards buffered data and reads from r
func (r *Reader) Reset(rd io.Reader) {
	r.br.Reset(rd)
}

// ReadFrame reads one request frame: an array of simple strings, bulk
// strings and integers. It returns io.EOF untouched when the stream ends
// before a frame starts; any other failure is a *ProtocolError.
func (r *Reader) ReadFrame() ([]Value, error) {
	typeByte, err := r.br.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, &ProtocolError{Message: "failed to read frame", Err: err}
	}

	if ValueType(typeByte) != TypeArray {
		return nil, protocolErrorf([]byte{typeByte}, "expected array frame, got type byte 0x%02x", typeByte)
	}

	count, err := r.readLength("array")
	if err != nil {
		return nil, err
	}
	if count > maxArraySize {
		return nil, protocolErrorf(nil, "array length %d exceeds limit %d", count, maxArraySize)
	}

	frame := make([]Value, 0, count)
	for i := int64(0); i < count; i++ {
		value, err := r.readElement()
		if err != nil {
			return nil, err
		}
		frame = append(frame, value)
	}

	return frame, nil
}

// Decode decodes exactly one frame from buf and reports the number of
// bytes it consumed.
func Decode(buf []byte) ([]Value, int, error) {
	br := bytes.NewReader(buf)
	r := NewReader(br)

	frame, err := r.ReadFrame()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, protocolErrorf(nil, "empty input")
		}
		return nil, 0, err
	}

	consumed := len(buf) - br.Len() - r.br.Buffered()
	return frame, consumed, nil
}

// readElement reads one array element
func (r *Reader) readElement() (Value, error) {
	typeByte, err := r.br.ReadByte()
	if err != nil {
		return Value{}, truncated(err)
	}

	switch ValueType(typeByte) {
	case TypeSimpleString:
		return r.readSimpleString()
	case TypeInteger:
		return r.readInteger()
	case TypeBulkString:
		return r.readBulkString()
	default:
		return Value{}, protocolErrorf([]byte{typeByte}, "unknown element type byte 0x%02x", typeByte)
	}
}

// readSimpleString reads a simple string value
func (r *Reader) readSimpleString() (Value, error) {
	line, err := r.readLine()
	if err != nil {
		return Value{}, err
	}

	return Value{
		Type: TypeSimpleString,
		Data: line,
	}, nil
}

// readInteger reads an integer value
func (r *Reader) readInteger() (Value, error) {
	line, err := r.readLine()
	if err != nil {
		return Value{}, err
	}

	integer, err := parseInt64(line)
	if err != nil {
		return Value{}, protocolErrorf(line, "invalid integer: %q", line)
	}

	return Value{
		Type:    TypeInteger,
		Integer: integer,
	}, nil
}

// readBulkString reads a bulk string value
func (r *Reader) readBulkString() (Value, error) {
	length, err := r.readLength("bulk string")
	if err != nil {
		return Value{}, err
	}
	if length > maxBulkSize {
		return Value{}, protocolErrorf(nil, "bulk string length %d exceeds limit %d", length, maxBulkSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r.br, data); err != nil {
		return Value{}, truncated(err)
	}

	// The payload must be followed directly by CRLF
	if err := r.expectCRLF(); err != nil {
		return Value{}, err
	}

	return Value{
		Type: TypeBulkString,
		Data: data,
	}, nil
}

// readLength reads a non-negative decimal count line
func (r *Reader) readLength(what string) (int64, error) {
	line, err := r.readLine()
	if err != nil {
		return 0, err
	}

	if len(line) == 0 || line[0] == '-' || line[0] == '+' {
		return 0, protocolErrorf(line, "invalid %s length: %q", what, line)
	}
	n, err := parseInt64(line)
	if err != nil {
		return 0, protocolErrorf(line, "invalid %s length: %q", what, line)
	}
	return n, nil
}

// parseInt64 parses an int64 from a byte slice without allocation
func parseInt64(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, strconv.ErrSyntax
	}

	var neg bool
	var i int

	switch b[0] {
	case '-':
		neg = true
		i = 1
	case '+':
		i = 1
	default:
		i = 0
	}

	if i >= len(b) {
		return 0, strconv.ErrSyntax
	}

	var n int64
	for ; i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			return 0, strconv.ErrSyntax
		}

		d := int64(b[i] - '0')
		if n > (1<<63-1-d)/10 {
			return 0, strconv.ErrRange
		}

		n = n*10 + d
	}

	if neg {
		return -n, nil
	}
	return n, nil
}

// readLine reads a line terminated by CRLF
func (r *Reader) readLine() ([]byte, error) {
	var line []byte
	for {
		frag, err := r.br.ReadSlice('\n')
		if err == nil {
			line = append(line, frag...)
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			line = append(line, frag...)
			if len(line) > maxLineSize {
				return nil, protocolErrorf(nil, "line length exceeds limit %d", maxLineSize)
			}
			continue
		}
		return nil, truncated(err)
	}

	if len(line) > maxLineSize {
		return nil, protocolErrorf(nil, "line length exceeds limit %d", maxLineSize)
	}
	if !bytes.HasSuffix(line, crlfBytes) {
		return nil, protocolErrorf(line, "missing CRLF terminator")
	}

	return line[:len(line)-2], nil
}

// expectCRLF reads and validates CRLF terminator
func (r *Reader) expectCRLF() error {
	var crlf [2]byte
	if _, err := io.ReadFull(r.br, crlf[:]); err != nil {
		return truncated(err)
	}

	if !bytes.Equal(crlf[:], crlfBytes) {
		return protocolErrorf(crlf[:], "bulk length mismatch: expected CRLF, got [%d, %d]", crlf[0], crlf[1])
	}

	return nil
}

// truncated converts a mid-frame read failure into a ProtocolError
func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &ProtocolError{Message: "unexpected end of input", Err: io.ErrUnexpectedEOF}
	}
	return &ProtocolError{Message: "read failed", Err: err}
}
