package autelfr

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"example.com/autellog/internal/common"
)

const (
	Magic          = "AUTEL_FR"
	Version uint32 = 3

	magicLen   = 8
	versionLen = 4

	// HeadOffset is where the untagged head record begins.
	HeadOffset = magicLen + versionLen
)

// CheckPreamble validates the magic tag and version at the start of buf.
func CheckPreamble(buf []byte) error {
	raw, err := span(buf, 0, magicLen)
	if err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	// Compared as bytes so non-UTF-8 garbage still reports a bad magic.
	if !bytes.Equal(raw, []byte(Magic)) {
		return &HeaderError{Err: ErrBadMagic, Expected: Magic, Actual: fmt.Sprintf("%q", raw)}
	}
	version, err := ReadU32(buf, magicLen)
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	if version != Version {
		return &HeaderError{Err: ErrUnsupportedVersion, Expected: Version, Actual: version}
	}
	return nil
}

// Parse decodes an entire in-memory log. Any failure aborts the whole parse.
func Parse(buf []byte, filename string) (*ParseResult, error) {
	return ParseWithMetrics(buf, filename, nil)
}

// ParseWithMetrics is Parse with throughput accounting into m, which may be
// nil.
func ParseWithMetrics(buf []byte, filename string, m *common.Metrics) (*ParseResult, error) {
	if err := CheckPreamble(buf); err != nil {
		if m != nil {
			m.IncFailure()
		}
		return nil, err
	}
	res, err := parseBody(buf, filename, m)
	if err != nil {
		if m != nil {
			m.IncFailure()
		}
		common.Logf("%s: parse failed: %v", filename, err)
		return nil, err
	}
	if m != nil {
		m.IncFile()
	}
	return res, nil
}

func parseBody(buf []byte, filename string, m *common.Metrics) (*ParseResult, error) {
	header, headEnd, err := Decode(buf, KindHead, HeadOffset)
	if err != nil {
		return nil, fmt.Errorf("decode head: %w", err)
	}
	tracks, err := scanFrom(buf, headEnd)
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	if m != nil {
		m.AddBytes(int64(headEnd))
	}

	res := &ParseResult{
		Filename: filename,
		Header:   header,
		Records:  make(map[Kind][]Record, len(BodyKinds)),
		Tracks:   tracks,
	}
	for _, kind := range BodyKinds {
		track := tracks[kind]
		list := make([]Record, 0, track.Count())
		for _, off := range track.Offsets {
			rec, _, err := Decode(buf, kind, off+1)
			if err != nil {
				return nil, fmt.Errorf("decode %s record at offset %d: %w", kind, off, err)
			}
			list = append(list, rec)
			if m != nil {
				m.AddRecord(string(kind), int64(track.Size+1))
			}
		}
		res.Records[kind] = list
		res.TotalRecords += len(list)
	}
	return res, nil
}

// ParseFile reads path fully and parses it. The result's Filename is the
// base name of path.
func ParseFile(path string) (*ParseResult, error) {
	return ParseFileWithMetrics(path, nil)
}

func ParseFileWithMetrics(path string, m *common.Metrics) (*ParseResult, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.SetTotalBytes(int64(len(buf)))
	}
	return ParseWithMetrics(buf, filepath.Base(path), m)
}

// Sniff reports whether buf starts with a supported preamble.
func Sniff(buf []byte) bool {
	return CheckPreamble(buf) == nil
}
