package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"example.com/autellog/internal/autelfr"
	"example.com/autellog/internal/common"
	"example.com/autellog/internal/config"
	"example.com/autellog/internal/export"
	"example.com/autellog/internal/manifest"
	"example.com/autellog/internal/report"
	"example.com/autellog/internal/store"
)

type batchOptions struct {
	InDir       string
	OutDir      string
	Concurrency int
	Compress    bool
	PDF         bool
	Lang        report.Language
	DBPath      string
	Metrics     *common.Metrics
}

type batchResult struct {
	Path     string
	OutDir   string
	Records  int
	FlightID string
	Err      error
}

// findLogs returns every regular file under dir that carries the flight log
// preamble, in lexical order.
func findLogs(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		typ, err := manifest.Classify(path)
		if err != nil {
			return err
		}
		if typ == manifest.TypeFlightLog {
			paths = append(paths, path)
		}
		return nil
	})
	sort.Strings(paths)
	return paths, err
}

// runBatch decodes every log under opts.InDir with a bounded number of
// workers. Each log gets its own directory under opts.OutDir named after the
// file. Results come back in input order.
func runBatch(ctx context.Context, opts batchOptions) ([]batchResult, error) {
	paths, err := findLogs(opts.InDir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", opts.InDir, err)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	var st *store.Store
	if opts.DBPath != "" {
		st = store.New(opts.DBPath)
		defer st.Close()
	}

	results := make([]batchResult, len(paths))
	sem := make(chan struct{}, opts.Concurrency)
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = batchResult{Path: path, Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()
			results[i] = processOne(ctx, path, opts, st)
		}(i, path)
	}
	wg.Wait()
	return results, nil
}

func processOne(ctx context.Context, path string, opts batchOptions, st *store.Store) batchResult {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	r := batchResult{Path: path, OutDir: filepath.Join(opts.OutDir, base)}
	digest, _, err := common.Sha256OfFile(path)
	if err != nil {
		r.Err = err
		return r
	}
	res, err := autelfr.ParseFileWithMetrics(path, opts.Metrics)
	if err != nil {
		r.Err = err
		return r
	}
	r.Records = res.TotalRecords
	if err := os.MkdirAll(r.OutDir, 0o755); err != nil {
		r.Err = err
		return r
	}
	resultName := "result.json"
	if opts.Compress {
		resultName += export.ZstdExt
	}
	if err := export.WriteFile(filepath.Join(r.OutDir, resultName), res, export.Options{}); err != nil {
		r.Err = fmt.Errorf("write result: %w", err)
		return r
	}
	sum := report.Summarize(res, digest)
	if err := report.SaveSummaryJSON(sum, filepath.Join(r.OutDir, "summary.json")); err != nil {
		r.Err = fmt.Errorf("write summary: %w", err)
		return r
	}
	if opts.PDF {
		if err := report.SaveSummaryPDF(sum, filepath.Join(r.OutDir, "report.pdf"), opts.Lang); err != nil {
			r.Err = fmt.Errorf("write report: %w", err)
			return r
		}
	}
	if st != nil {
		id, err := st.SaveFlight(ctx, res, digest)
		if err != nil {
			r.Err = fmt.Errorf("store: %w", err)
			return r
		}
		r.FlightID = id
	}
	return r
}

func batchCmd(args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	cfgPath := fs.String("config", "", "configuration file supplying default directories")
	inDir := fs.String("in", "", "input directory (defaults to rawLogDir)")
	outDir := fs.String("out-dir", "", "results directory (defaults to dataDir)")
	concurrency := fs.Int("concurrency", 0, "parallel decoders (defaults to the configured value)")
	compress := fs.Bool("compress", false, "zstd compress result JSON")
	pdf := fs.Bool("pdf", false, "also write a PDF report per log")
	lang := fs.String("lang", "", "report language (en, de)")
	dbPath := fs.String("db", "", "also store every flight in this SQLite database")
	progressFlag := fs.Bool("progress", false, "display progress updates")
	fs.Parse(args)

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Println("load config:", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	opts := batchOptions{
		InDir:       firstNonEmpty(*inDir, cfg.RawLogDir),
		OutDir:      firstNonEmpty(*outDir, cfg.DataDir),
		Concurrency: cfg.Concurrency,
		Compress:    *compress,
		PDF:         *pdf,
		DBPath:      *dbPath,
		Metrics:     common.NewMetrics(),
	}
	if *concurrency > 0 {
		opts.Concurrency = *concurrency
	}
	language, err := report.ParseLanguage(firstNonEmpty(*lang, cfg.Lang))
	if err != nil {
		fmt.Println("lang:", err)
		os.Exit(1)
	}
	opts.Lang = language

	opts.Metrics.Start()
	var stopProgress func()
	if *progressFlag {
		stopProgress = common.StartProgressPrinter(os.Stderr, opts.Metrics, 500*time.Millisecond)
	}
	results, err := runBatch(context.Background(), opts)
	if stopProgress != nil {
		stopProgress()
	}
	opts.Metrics.Stop()
	if err != nil {
		fmt.Println("batch:", err)
		os.Exit(1)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("FAIL %s: %v\n", r.Path, r.Err)
			continue
		}
		fmt.Printf("OK   %s -> %s (%d records)\n", r.Path, r.OutDir, r.Records)
	}
	snap := opts.Metrics.Snapshot()
	fmt.Printf("Processed %d logs, %d failed, %d records, %s in %s\n",
		len(results), failed, snap.Records, common.FormatBytes(snap.Bytes), snap.Duration.Round(time.Millisecond))
	if failed > 0 {
		os.Exit(1)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
