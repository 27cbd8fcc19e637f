package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("port: 9090\nstorageDir: store\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9090 {
		t.Fatalf("Port = %d, want 9090", cfg.Port)
	}
	storage := filepath.Join(dir, "store")
	if cfg.StorageDir != storage {
		t.Fatalf("StorageDir = %q, want %q", cfg.StorageDir, storage)
	}
	if cfg.Database != filepath.Join(storage, "flights.sqlite") {
		t.Fatalf("Database = %q", cfg.Database)
	}
	if cfg.Logs.Directory != filepath.Join(storage, "logs") {
		t.Fatalf("Logs.Directory = %q", cfg.Logs.Directory)
	}
	if cfg.Concurrency <= 0 {
		t.Fatalf("Concurrency = %d, want > 0", cfg.Concurrency)
	}
	if cfg.Logs.MaxSizeMB != 25 || cfg.Logs.MaxAgeDays != 7 || cfg.Logs.MaxBackups != 5 {
		t.Fatalf("log defaults = %+v", cfg.Logs)
	}
	if cfg.MaxUploadBytes() != 256<<20 {
		t.Fatalf("MaxUploadBytes = %d", cfg.MaxUploadBytes())
	}
}

func TestLoadKeepsAbsolutePaths(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(dir, "elsewhere", "db.sqlite")
	path := filepath.Join(dir, "config.yaml")
	content := "database: " + abs + "\nrawLogDir: ./raw\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database != abs {
		t.Fatalf("Database = %q, want %q", cfg.Database, abs)
	}
	if cfg.RawLogDir != filepath.Join(dir, "raw") {
		t.Fatalf("RawLogDir = %q", cfg.RawLogDir)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("prot: 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: 70000\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for port out of range")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")
	cfg := Default()
	cfg.Port = 7070
	cfg.StorageDir = filepath.Join(dir, "data")
	cfg.Logs.Compress = true
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Port != 7070 || !got.Logs.Compress {
		t.Fatalf("round trip = %+v", got)
	}
	if got.StorageDir != cfg.StorageDir {
		t.Fatalf("StorageDir = %q, want %q", got.StorageDir, cfg.StorageDir)
	}
}

func TestLoadMediaSearchPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `videoSearchPaths:
  - path: media/video
    glob: "*.MP4"
    recursive: true
imageSearchPaths:
  - path: media/images
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.VideoSearchPaths) != 1 || len(cfg.ImageSearchPaths) != 1 {
		t.Fatalf("search paths = %+v / %+v", cfg.VideoSearchPaths, cfg.ImageSearchPaths)
	}
	video := cfg.VideoSearchPaths[0]
	if video.Path != filepath.Join(dir, "media", "video") || video.Glob != "*.MP4" || !video.Recursive {
		t.Fatalf("video search path = %+v", video)
	}
	image := cfg.ImageSearchPaths[0]
	if image.Path != filepath.Join(dir, "media", "images") || image.Glob != "*" || image.Recursive {
		t.Fatalf("image search path = %+v", image)
	}
}

func TestValidateRejectsBadSearchPaths(t *testing.T) {
	tests := []struct {
		name string
		path MediaSearchPath
	}{
		{name: "empty path", path: MediaSearchPath{Glob: "*"}},
		{name: "bad glob", path: MediaSearchPath{Path: "media", Glob: "["}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.ImageSearchPaths = []MediaSearchPath{tc.path}
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate accepted %+v", tc.path)
			}
		})
	}
}
