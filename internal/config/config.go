// Package config loads the YAML configuration shared by autelctl and auteld.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"example.com/autellog/internal/common"
)

type Config struct {
	Port        int    `yaml:"port"`
	StorageDir  string `yaml:"storageDir"`
	Concurrency int    `yaml:"concurrency"`
	// RawLogDir is scanned by batch runs when no input directory is given.
	RawLogDir string `yaml:"rawLogDir"`
	DataDir   string `yaml:"dataDir"`
	ReportDir string `yaml:"reportDir"`
	Database  string `yaml:"database"`
	// MaxUploadMB bounds request bodies accepted by the daemon.
	MaxUploadMB int              `yaml:"maxUploadMB"`
	Lang        string           `yaml:"lang"`
	Logs        common.LogConfig `yaml:"logs"`
	// VideoSearchPaths and ImageSearchPaths are scanned for the media files
	// a log references.
	VideoSearchPaths []MediaSearchPath `yaml:"videoSearchPaths,omitempty"`
	ImageSearchPaths []MediaSearchPath `yaml:"imageSearchPaths,omitempty"`
}

// MediaSearchPath is a directory holding media copied off the aircraft.
// Glob filters file names and defaults to "*".
type MediaSearchPath struct {
	Path      string `yaml:"path"`
	Glob      string `yaml:"glob,omitempty"`
	Recursive bool   `yaml:"recursive,omitempty"`
}

// Default returns a configuration rooted at the current directory.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Load reads path, fills in defaults and resolves relative paths against
// the directory holding the file.
func Load(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	baseDir := filepath.Dir(path)
	resolvePath := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" {
			return ""
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Clean(filepath.Join(baseDir, p))
	}
	cfg.StorageDir = resolvePath(cfg.StorageDir)
	cfg.RawLogDir = resolvePath(cfg.RawLogDir)
	cfg.DataDir = resolvePath(cfg.DataDir)
	cfg.ReportDir = resolvePath(cfg.ReportDir)
	cfg.Database = resolvePath(cfg.Database)
	cfg.Logs.Directory = resolvePath(cfg.Logs.Directory)
	for i := range cfg.VideoSearchPaths {
		cfg.VideoSearchPaths[i].Path = resolvePath(cfg.VideoSearchPaths[i].Path)
	}
	for i := range cfg.ImageSearchPaths {
		cfg.ImageSearchPaths[i].Path = resolvePath(cfg.ImageSearchPaths[i].Path)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.StorageDir == "" {
		c.StorageDir = filepath.Join(".", "data")
	}
	if c.Concurrency <= 0 {
		c.Concurrency = runtime.NumCPU()
	}
	if c.RawLogDir == "" {
		c.RawLogDir = filepath.Join(c.StorageDir, "raw")
	}
	if c.DataDir == "" {
		c.DataDir = filepath.Join(c.StorageDir, "parsed")
	}
	if c.ReportDir == "" {
		c.ReportDir = filepath.Join(c.StorageDir, "reports")
	}
	if c.Database == "" {
		c.Database = filepath.Join(c.StorageDir, "flights.sqlite")
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = 256
	}
	if c.Lang == "" {
		c.Lang = "en"
	}
	if c.Logs.Directory == "" {
		c.Logs.Directory = filepath.Join(c.StorageDir, "logs")
	}
	if c.Logs.MaxSizeMB <= 0 {
		c.Logs.MaxSizeMB = 25
	}
	if c.Logs.MaxAgeDays <= 0 {
		c.Logs.MaxAgeDays = 7
	}
	if c.Logs.MaxBackups <= 0 {
		c.Logs.MaxBackups = 5
	}
	for _, paths := range [][]MediaSearchPath{c.VideoSearchPaths, c.ImageSearchPaths} {
		for i := range paths {
			if paths[i].Glob == "" {
				paths[i].Glob = "*"
			}
		}
	}
}

// Validate rejects values that defaults cannot repair.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	for _, paths := range [][]MediaSearchPath{c.VideoSearchPaths, c.ImageSearchPaths} {
		for _, sp := range paths {
			if sp.Path == "" {
				return fmt.Errorf("media search path without path")
			}
			if _, err := filepath.Match(sp.Glob, ""); err != nil {
				return fmt.Errorf("media search path %s: glob %q: %w", sp.Path, sp.Glob, err)
			}
		}
	}
	return nil
}

// Save writes cfg as YAML, creating parent directories as needed.
func Save(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// MaxUploadBytes converts MaxUploadMB to bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
