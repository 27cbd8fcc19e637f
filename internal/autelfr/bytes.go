package autelfr

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf8"
)

func span(buf []byte, off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+n > len(buf) {
		return nil, &RangeError{Offset: off, Length: n, Size: len(buf)}
	}
	return buf[off : off+n], nil
}

func ReadU8(buf []byte, off int) (uint8, error) {
	b, err := span(buf, off, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func ReadU16(buf []byte, off int) (uint16, error) {
	b, err := span(buf, off, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func ReadU32(buf []byte, off int) (uint32, error) {
	b, err := span(buf, off, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func ReadU64(buf []byte, off int) (uint64, error) {
	b, err := span(buf, off, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func ReadF32(buf []byte, off int) (float32, error) {
	v, err := ReadU32(buf, off)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func ReadF64(buf []byte, off int) (float64, error) {
	v, err := ReadU64(buf, off)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadFixedString reads n bytes, cuts them at the first NUL and requires the
// remainder to be valid UTF-8.
func ReadFixedString(buf []byte, off, n int) (string, error) {
	b, err := span(buf, off, n)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	if !utf8.Valid(b) {
		return "", &StringError{Offset: off, Raw: append([]byte(nil), b...)}
	}
	return string(b), nil
}
