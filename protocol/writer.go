package protocol

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
)

// Writer provides buffered encoding of replies
type Writer struct {
	bw *bufio.Writer
}

// NewWriter creates a new reply writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		bw: bufio.NewWriter(w),
	}
}

// Encode returns the wire bytes for a reply
func Encode(r Reply) []byte {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	// bytes.Buffer never fails a write
	_ = w.WriteReply(r)
	_ = w.Flush()
	return buf.Bytes()
}

// WriteReply writes a reply to the output stream
func (w *Writer) WriteReply(r Reply) error {
	switch r.Kind {
	case ReplySimple:
		return w.WriteSimpleString(string(r.Data))
	case ReplyError:
		return w.WriteError(string(r.Data))
	case ReplyBulk:
		return w.WriteBulkString(r.Data)
	case ReplyNullBulk:
		return w.WriteNullBulkString()
	case ReplyArray:
		return w.WriteArray(r.Items)
	default:
		return w.WriteNull()
	}
}

// WriteSimpleString writes a simple string
func (w *Writer) WriteSimpleString(s string) error {
	if _, err := w.bw.WriteString("+"); err != nil {
		return err
	}
	if _, err := w.bw.WriteString(sanitizeLine(s)); err != nil {
		return err
	}
	return w.writeCRLF()
}

// WriteError writes an error message with the ERR prefix
func (w *Writer) WriteError(msg string) error {
	if _, err := w.bw.WriteString("-ERR "); err != nil {
		return err
	}
	if _, err := w.bw.WriteString(sanitizeLine(msg)); err != nil {
		return err
	}
	return w.writeCRLF()
}

// WriteBulkString writes a bulk string
func (w *Writer) WriteBulkString(data []byte) error {
	if _, err := w.bw.WriteString("$"); err != nil {
		return err
	}
	if _, err := w.bw.WriteString(strconv.Itoa(len(data))); err != nil {
		return err
	}
	if err := w.writeCRLF(); err != nil {
		return err
	}
	if _, err := w.bw.Write(data); err != nil {
		return err
	}
	return w.writeCRLF()
}

// WriteBulkStringFromString writes a bulk string from a string
func (w *Writer) WriteBulkStringFromString(s string) error {
	return w.WriteBulkString([]byte(s))
}

// WriteNullBulkString writes a null bulk string
func (w *Writer) WriteNullBulkString() error {
	if _, err := w.bw.WriteString("$-1"); err != nil {
		return err
	}
	return w.writeCRLF()
}

// WriteNull writes the null reply
func (w *Writer) WriteNull() error {
	if _, err := w.bw.WriteString("_"); err != nil {
		return err
	}
	return w.writeCRLF()
}

// WriteArray writes an array of bulk strings
func (w *Writer) WriteArray(items [][]byte) error {
	if _, err := w.bw.WriteString("*"); err != nil {
		return err
	}
	if _, err := w.bw.WriteString(strconv.Itoa(len(items))); err != nil {
		return err
	}
	if err := w.writeCRLF(); err != nil {
		return err
	}

	for _, item := range items {
		if err := w.WriteBulkString(item); err != nil {
			return err
		}
	}

	return nil
}

// WriteCommand writes a command as an array of bulk strings
func (w *Writer) WriteCommand(cmd string, args ...string) error {
	items := make([][]byte, 0, 1+len(args))
	items = append(items, []byte(cmd))
	for _, arg := range args {
		items = append(items, []byte(arg))
	}
	return w.WriteArray(items)
}

// Flush flushes any buffered data to the underlying writer
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// writeCRLF writes the CRLF terminator
func (w *Writer) writeCRLF() error {
	_, err := w.bw.WriteString(CRLF)
	return err
}

// Reset resets the writer to write to a new underlying writer
func (w *Writer) Reset(writer io.Writer) {
	w.bw.Reset(writer)
}

var lineReplacer = strings.NewReplacer("\r", " ", "\n", " ")

// sanitizeLine keeps single-line replies from breaking framing
func sanitizeLine(s string) string {
	if strings.ContainsAny(s, "\r\n") {
		return lineReplacer.Replace(s)
	}
	return s
}
