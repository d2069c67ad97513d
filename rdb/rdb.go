package rdb

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// RDB format constants
const (
	// Magic is the tag every RDB file starts with
	Magic = "REDIS"

	// HeaderSize is the magic plus four version digits
	HeaderSize = 9

	RDBOpcodeResizeDB = 0xFB

	// Type constants
	RDBTypeString = 0x00
)

// Length encoding forms, selected by the top two bits of the first byte
const (
	lenForm6Bit    = 0x0
	lenForm14Bit   = 0x1
	lenFormSpecial = 0x3
)

// Special integer encodings, selected by the low six bits
const (
	encInt8  = 0x0
	encInt16 = 0x1
	encInt32 = 0x2
)

// DecodedString is a decoded RDB string. Literal strings are views into
// the input buffer; integer-encoded strings are synthesized as base-10 text.
type DecodedString struct {
	data        []byte
	synthesized bool
}

// Bytes returns the string content. For views the slice aliases the
// decoder input and must be copied before the input is reused.
func (s DecodedString) Bytes() []byte {
	return s.data
}

// String returns the content as a string
func (s DecodedString) String() string {
	return string(s.data)
}

// IsView reports whether the content aliases the decoder input
func (s DecodedString) IsView() bool {
	return !s.synthesized
}

// Entry is one decoded key/value pair
type Entry struct {
	Key   DecodedString
	Value DecodedString
}

// Snapshot is the decoded content of an RDB file
type Snapshot struct {
	Version int
	// KeyCount and ExpireCount are the resize hints that follow the
	// database selector
	KeyCount    uint64
	ExpireCount uint64
	Entries     []Entry
}

// Parser decodes an RDB byte buffer
type Parser struct {
	buf []byte
	pos int
}

// NewParser creates a parser over buf. Decoded views alias buf.
func NewParser(buf []byte) *Parser {
	return &Parser{buf: buf}
}

// Decode parses a complete snapshot from buf
func Decode(buf []byte) (*Snapshot, error) {
	return NewParser(buf).Parse()
}

// Parse parses the header, the resize hints and every key/value pair
func (p *Parser) Parse() (*Snapshot, error) {
	version, err := p.readHeader()
	if err != nil {
		return nil, err
	}

	if err := p.skipToResizeDB(); err != nil {
		return nil, err
	}

	keyCount, err := p.readLength()
	if err != nil {
		return nil, err
	}
	expireCount, err := p.readLength()
	if err != nil {
		return nil, err
	}

	// Every entry needs at least three bytes, so a larger hint cannot be
	// satisfied and would only inflate the allocation below
	if remaining := uint64(len(p.buf) - p.pos); keyCount > remaining/3 {
		return nil, p.fail(ErrTruncated, "key count %d exceeds remaining %d bytes", keyCount, remaining)
	}

	snap := &Snapshot{
		Version:     version,
		KeyCount:    keyCount,
		ExpireCount: expireCount,
		Entries:     make([]Entry, 0, keyCount),
	}

	for i := uint64(0); i < keyCount; i++ {
		entry, err := p.readKeyValue()
		if err != nil {
			return nil, err
		}
		snap.Entries = append(snap.Entries, entry)
	}

	return snap, nil
}

// Offset returns the number of bytes consumed so far
func (p *Parser) Offset() int {
	return p.pos
}

// readHeader validates the magic and returns the format version
func (p *Parser) readHeader() (int, error) {
	if len(p.buf) < HeaderSize {
		return 0, p.fail(ErrBadHeader, "need %d bytes, have %d", HeaderSize, len(p.buf))
	}

	if string(p.buf[:len(Magic)]) != Magic {
		return 0, p.fail(ErrBadHeader, "invalid RDB magic %q", p.buf[:len(Magic)])
	}

	digits := p.buf[len(Magic):HeaderSize]
	for _, d := range digits {
		if d < '0' || d > '9' {
			return 0, p.fail(ErrBadHeader, "invalid RDB version %q", digits)
		}
	}

	version, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, p.fail(ErrBadHeader, "invalid RDB version %q", digits)
	}

	p.pos = HeaderSize
	return version, nil
}

// skipToResizeDB advances past the first resize-db opcode. Auxiliary
// fields and the database selector before it are not interpreted.
func (p *Parser) skipToResizeDB() error {
	for p.pos < len(p.buf) {
		b := p.buf[p.pos]
		p.pos++
		if b == RDBOpcodeResizeDB {
			return nil
		}
	}
	return p.fail(ErrTruncated, "no resize-db opcode 0x%02x found", RDBOpcodeResizeDB)
}

// readKeyValue reads a type byte followed by a key and a value
func (p *Parser) readKeyValue() (Entry, error) {
	valueType, err := p.readByte()
	if err != nil {
		return Entry{}, err
	}
	if valueType != RDBTypeString {
		return Entry{}, &SnapshotError{Kind: ErrUnsupportedValueType, Offset: p.pos - 1, Tag: valueType}
	}

	key, err := p.readString()
	if err != nil {
		return Entry{}, err
	}

	value, err := p.readValue()
	if err != nil {
		return Entry{}, err
	}

	return Entry{Key: key, Value: value}, nil
}

// readValue reads either a length-prefixed string or an integer-encoded one
func (p *Parser) readValue() (DecodedString, error) {
	b, err := p.peekByte()
	if err != nil {
		return DecodedString{}, err
	}

	if b>>6 != lenFormSpecial {
		return p.readString()
	}

	p.pos++
	start := p.pos - 1

	var n uint64
	switch b & 0x3F {
	case encInt8:
		v, err := p.take(1)
		if err != nil {
			return DecodedString{}, err
		}
		n = uint64(v[0])
	case encInt16:
		v, err := p.take(2)
		if err != nil {
			return DecodedString{}, err
		}
		n = uint64(binary.BigEndian.Uint16(v))
	case encInt32:
		v, err := p.take(4)
		if err != nil {
			return DecodedString{}, err
		}
		n = uint64(binary.BigEndian.Uint32(v))
	default:
		return DecodedString{}, &SnapshotError{Kind: ErrUnsupportedIntWidth, Offset: start, Tag: b}
	}

	return DecodedString{data: strconv.AppendUint(nil, n, 10), synthesized: true}, nil
}

// readString reads a length-prefixed string as a view into the buffer
func (p *Parser) readString() (DecodedString, error) {
	length, err := p.readLength()
	if err != nil {
		return DecodedString{}, err
	}

	data, err := p.take(length)
	if err != nil {
		return DecodedString{}, err
	}
	return DecodedString{data: data}, nil
}

// readLength reads a length-encoded integer
func (p *Parser) readLength() (uint64, error) {
	b, err := p.readByte()
	if err != nil {
		return 0, err
	}

	switch b >> 6 {
	case lenForm6Bit:
		return uint64(b & 0x3F), nil

	case lenForm14Bit:
		b2, err := p.readByte()
		if err != nil {
			return 0, err
		}
		return uint64(b&0x3F)<<8 | uint64(b2), nil

	default:
		return 0, &SnapshotError{Kind: ErrUnsupportedLengthForm, Offset: p.pos - 1, Tag: b}
	}
}

func (p *Parser) readByte() (byte, error) {
	b, err := p.peekByte()
	if err != nil {
		return 0, err
	}
	p.pos++
	return b, nil
}

func (p *Parser) peekByte() (byte, error) {
	if p.pos >= len(p.buf) {
		return 0, p.fail(ErrTruncated, "unexpected end of data")
	}
	return p.buf[p.pos], nil
}

// take returns the next n bytes as a view into the buffer
func (p *Parser) take(n uint64) ([]byte, error) {
	if n > uint64(len(p.buf)-p.pos) {
		return nil, p.fail(ErrTruncated, "need %d bytes, have %d", n, len(p.buf)-p.pos)
	}
	data := p.buf[p.pos : p.pos+int(n) : p.pos+int(n)]
	p.pos += int(n)
	return data, nil
}

func (p *Parser) fail(kind error, format string, args ...interface{}) *SnapshotError {
	return &SnapshotError{
		Kind:   kind,
		Offset: p.pos,
		Detail: fmt.Sprintf(format, args...),
	}
}
