package server

import (
	"fmt"
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"

	"example.com/autellog/internal/report"
	"example.com/autellog/internal/store"
)

const defaultMaxUploadBytes int64 = 256 << 20

// Options configures server creation.
type Options struct {
	StorageDir  string
	Concurrency int
	// MaxUploadBytes bounds request bodies. Zero selects 256 MiB.
	MaxUploadBytes int64
	// Store, when set, enables persisting parsed flights and /flights.
	Store *store.Store
	Lang  report.Language
	// Registry receives the daemon's Prometheus collectors. A private
	// registry is created when nil.
	Registry *prometheus.Registry
}

func (o Options) normalized() (Options, error) {
	if o.StorageDir == "" {
		o.StorageDir = os.TempDir()
	}
	if o.Concurrency <= 0 {
		o.Concurrency = runtime.NumCPU()
	}
	if o.MaxUploadBytes < 0 {
		return o, fmt.Errorf("max upload bytes must not be negative: %d", o.MaxUploadBytes)
	}
	if o.MaxUploadBytes == 0 {
		o.MaxUploadBytes = defaultMaxUploadBytes
	}
	lang, err := report.ParseLanguage(string(o.Lang))
	if err != nil {
		return o, err
	}
	o.Lang = lang
	if o.Registry == nil {
		o.Registry = prometheus.NewRegistry()
	}
	return o, nil
}
