package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"example.com/autellog/internal/samples"
)

func TestBuildClassifiesByContent(t *testing.T) {
	dir := t.TempDir()
	logPath, err := samples.WriteFile(dir)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	renamed := filepath.Join(dir, "flight.bin")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	files := map[string][]byte{
		renamed:                         data,
		filepath.Join(dir, "a.json"):    []byte(`{"ok":true}`),
		filepath.Join(dir, "r.pdf"):     []byte("%PDF-1.3\n"),
		filepath.Join(dir, "f.sqlite"):  append([]byte("SQLite format 3\x00"), make([]byte, 84)...),
		filepath.Join(dir, "notes.txt"): []byte("x"),
		filepath.Join(dir, "empty.bin"): nil,
	}
	want := map[string]string{
		logPath:                         TypeFlightLog,
		renamed:                         TypeFlightLog,
		filepath.Join(dir, "a.json"):    TypeJSON,
		filepath.Join(dir, "r.pdf"):     TypePDF,
		filepath.Join(dir, "f.sqlite"):  TypeSQLite,
		filepath.Join(dir, "notes.txt"): TypeOther,
		filepath.Join(dir, "empty.bin"): TypeOther,
	}
	paths := []string{logPath}
	for p, content := range files {
		if err := os.WriteFile(p, content, 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
		paths = append(paths, p)
	}

	m, err := Build(paths)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(m.Items) != len(want) {
		t.Fatalf("items = %d, want %d", len(m.Items), len(want))
	}
	for _, it := range m.Items {
		if it.Type != want[it.Path] {
			t.Fatalf("%s type = %s, want %s", it.Path, it.Type, want[it.Path])
		}
		if len(it.Sha256) != 64 {
			t.Fatalf("%s sha256 = %q", it.Path, it.Sha256)
		}
	}
	if m.Count(TypeFlightLog) != 2 {
		t.Fatalf("flight logs = %d, want 2", m.Count(TypeFlightLog))
	}

	out := filepath.Join(dir, "manifest.json")
	if err := Save(m, out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(out)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Items) != len(m.Items) || loaded.ShaAlgo != "sha256" {
		t.Fatalf("loaded = %+v", loaded)
	}
}

func TestBuildMissingFile(t *testing.T) {
	if _, err := Build([]string{filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
