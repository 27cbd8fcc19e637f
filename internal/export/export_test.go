package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"example.com/autellog/internal/autelfr"
	"example.com/autellog/internal/samples"
)

func parseSample(t *testing.T) *autelfr.ParseResult {
	t.Helper()
	data, err := samples.Build()
	if err != nil {
		t.Fatalf("samples.Build: %v", err)
	}
	res, err := autelfr.Parse(data, samples.FileName)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return res
}

func TestWriteNDJSONFileOrder(t *testing.T) {
	res := parseSample(t)
	var buf bytes.Buffer
	if err := WriteNDJSON(&buf, res); err != nil {
		t.Fatalf("WriteNDJSON: %v", err)
	}
	var kinds []string
	lastOffset := -1
	sc := bufio.NewScanner(&buf)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var line struct {
			Kind   string         `json:"kind"`
			Offset int            `json:"offset"`
			Index  int            `json:"index"`
			Fields map[string]any `json:"fields"`
		}
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("unmarshal %q: %v", sc.Text(), err)
		}
		if line.Offset <= lastOffset {
			t.Fatalf("offset %d not after %d", line.Offset, lastOffset)
		}
		lastOffset = line.Offset
		kinds = append(kinds, line.Kind)
	}
	want := []string{"head", "out_full", "out_base", "image", "out_full", "video", "in_base"}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", kinds, want)
		}
	}
}

func TestWriteFileCompressed(t *testing.T) {
	res := parseSample(t)
	dir := t.TempDir()
	plain := filepath.Join(dir, "out.json")
	packed := filepath.Join(dir, "out.json.zst")
	for _, p := range []string{plain, packed} {
		if err := WriteFile(p, res, Options{Indent: true}); err != nil {
			t.Fatalf("WriteFile(%s): %v", p, err)
		}
	}

	raw, err := os.ReadFile(packed)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if bytes.HasPrefix(raw, []byte("{")) {
		t.Fatalf("compressed file starts with plain JSON")
	}

	r, err := Open(packed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want, err := os.ReadFile(plain)
	if err != nil {
		t.Fatalf("read plain: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("decompressed output differs from plain output")
	}

	var doc map[string]any
	if err := json.Unmarshal(got, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["total_records"] != float64(6) {
		t.Fatalf("total_records = %v, want 6", doc["total_records"])
	}
}

func TestIsCompressed(t *testing.T) {
	tests := map[string]bool{
		"a.json":     false,
		"a.json.zst": true,
		"A.ZST":      true,
		"zst":        false,
	}
	for path, want := range tests {
		if got := IsCompressed(path); got != want {
			t.Fatalf("IsCompressed(%q) = %v, want %v", path, got, want)
		}
	}
}
