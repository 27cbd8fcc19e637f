package autelfr

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrBadMagic            = errors.New("invalid magic tag")
	ErrUnsupportedVersion  = errors.New("unsupported format version")
	ErrUnknownRecordType   = errors.New("unknown record type tag")
	ErrInvalidFirmwareSize = errors.New("invalid firmware size")
	ErrInvalidString       = errors.New("fixed string is not valid UTF-8")
)

// HeaderError reports a preamble mismatch.
type HeaderError struct {
	Err      error
	Expected any
	Actual   any
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("%v: expected %v, got %v", e.Err, e.Expected, e.Actual)
}

func (e *HeaderError) Unwrap() error { return e.Err }

// RangeError reports a read past the end of the buffer.
type RangeError struct {
	Offset int
	Length int
	Size   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("read of %d bytes at offset %d exceeds buffer of %d bytes", e.Length, e.Offset, e.Size)
}

func (e *RangeError) Unwrap() error { return io.ErrUnexpectedEOF }

// UnknownTagError reports a type tag that maps to no record kind. Context
// holds up to ten bytes either side of the tag.
type UnknownTagError struct {
	Tag     uint8
	Offset  int
	Context []byte
	// ContextStart is the file offset of Context[0].
	ContextStart int
}

func (e *UnknownTagError) Error() string {
	split := e.Offset - e.ContextStart
	if split < 0 || split > len(e.Context) {
		split = 0
	}
	return fmt.Sprintf("%v %d at offset %d, context: ... %s | %s ...",
		ErrUnknownRecordType, e.Tag, e.Offset,
		hexBytes(e.Context[:split]), hexBytes(e.Context[split:]))
}

func (e *UnknownTagError) Unwrap() error { return ErrUnknownRecordType }

func newUnknownTagError(buf []byte, tag uint8, off int) *UnknownTagError {
	const window = 10
	start := off - window
	if start < 0 {
		start = 0
	}
	end := off + window
	if end > len(buf) {
		end = len(buf)
	}
	return &UnknownTagError{
		Tag:          tag,
		Offset:       off,
		Context:      append([]byte(nil), buf[start:end]...),
		ContextStart: start,
	}
}

// StringError reports a fixed string that failed UTF-8 validation.
type StringError struct {
	Offset int
	Raw    []byte
}

func (e *StringError) Error() string {
	return fmt.Sprintf("%v at offset %d: %s", ErrInvalidString, e.Offset, hexBytes(e.Raw))
}

func (e *StringError) Unwrap() error { return ErrInvalidString }

// FieldError attaches the record position to a field decode failure.
type FieldError struct {
	Kind   Kind
	Field  string
	Offset int
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s at offset %d: %v", e.Kind, e.Field, e.Offset, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

func hexBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, x := range b {
		parts[i] = fmt.Sprintf("%02X", x)
	}
	return strings.Join(parts, " ")
}
