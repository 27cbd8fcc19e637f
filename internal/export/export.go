// Package export writes parse results as JSON or NDJSON, optionally zstd
// compressed.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"example.com/autellog/internal/autelfr"
)

// ZstdExt marks output paths that are written zstd compressed.
const ZstdExt = ".zst"

type Options struct {
	Indent bool
	// NDJSON writes one line per record instead of a single document.
	NDJSON bool
}

// Line is one record in an NDJSON stream.
type Line struct {
	Kind   autelfr.Kind   `json:"kind"`
	Offset int            `json:"offset"`
	Index  int            `json:"index"`
	Fields autelfr.Record `json:"fields"`
}

// EachLine calls fn for the head and then every record in file order.
func EachLine(res *autelfr.ParseResult, fn func(Line) error) error {
	if err := fn(Line{Kind: autelfr.KindHead, Offset: autelfr.HeadOffset, Fields: res.Header}); err != nil {
		return err
	}
	for _, e := range res.Tracks.Entries() {
		list := res.Records[e.Kind]
		if e.Index >= len(list) {
			return fmt.Errorf("%s record %d missing from result", e.Kind, e.Index)
		}
		if err := fn(Line{Kind: e.Kind, Offset: e.Offset, Index: e.Index, Fields: list[e.Index]}); err != nil {
			return err
		}
	}
	return nil
}

func WriteJSON(w io.Writer, res *autelfr.ParseResult, opts Options) error {
	enc := json.NewEncoder(w)
	if opts.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(res)
}

func WriteNDJSON(w io.Writer, res *autelfr.ParseResult) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	if err := EachLine(res, func(l Line) error { return enc.Encode(l) }); err != nil {
		return err
	}
	return bw.Flush()
}

// Write dispatches on opts.NDJSON.
func Write(w io.Writer, res *autelfr.ParseResult, opts Options) error {
	if opts.NDJSON {
		return WriteNDJSON(w, res)
	}
	return WriteJSON(w, res, opts)
}

// WriteFile writes res to path, compressing when path ends in ".zst".
func WriteFile(path string, res *autelfr.ParseResult, opts Options) error {
	w, err := Create(path)
	if err != nil {
		return err
	}
	if err := Write(w, res, opts); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Create opens path for writing and wraps it in a zstd encoder when the
// name ends in ".zst". Closing the result flushes the encoder and the file.
func Create(path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if !IsCompressed(path) {
		return f, nil
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &zstdFile{enc: enc, f: f}, nil
}

// Open reads a file written by Create.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !IsCompressed(path) {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &zstdReader{dec: dec, f: f}, nil
}

func IsCompressed(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ZstdExt)
}

type zstdFile struct {
	enc *zstd.Encoder
	f   *os.File
}

func (z *zstdFile) Write(p []byte) (int, error) { return z.enc.Write(p) }

func (z *zstdFile) Close() error {
	encErr := z.enc.Close()
	fileErr := z.f.Close()
	if encErr != nil {
		return encErr
	}
	return fileErr
}

type zstdReader struct {
	dec *zstd.Decoder
	f   *os.File
}

func (z *zstdReader) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdReader) Close() error {
	z.dec.Close()
	return z.f.Close()
}
