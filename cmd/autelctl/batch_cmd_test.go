package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"example.com/autellog/internal/autelfr"
	"example.com/autellog/internal/common"
	"example.com/autellog/internal/export"
	"example.com/autellog/internal/report"
	"example.com/autellog/internal/samples"
)

func writeSample(t *testing.T, path string) {
	t.Helper()
	data, err := samples.Build()
	if err != nil {
		t.Fatalf("samples.Build: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestBatchCmdGeneratesOutputs(t *testing.T) {
	root := t.TempDir()
	inputDir := filepath.Join(root, "inputs")
	outDir := filepath.Join(root, "out")
	writeSample(t, filepath.Join(inputDir, "alpha.autel"))
	writeSample(t, filepath.Join(inputDir, "nested", "beta.bin"))
	if err := os.WriteFile(filepath.Join(inputDir, "notes.txt"), []byte("not a log"), 0o644); err != nil {
		t.Fatalf("WriteFile notes: %v", err)
	}

	batchCmd([]string{
		"--in", inputDir,
		"--out-dir", outDir,
		"--concurrency", "2",
		"--pdf",
	})

	check := func(name string) {
		out := filepath.Join(outDir, name)
		if info, err := os.Stat(out); err != nil || !info.IsDir() {
			t.Fatalf("Output dir missing for %s: %v", name, err)
		}
		if _, err := os.Stat(filepath.Join(out, "result.json")); err != nil {
			t.Fatalf("result %s: %v", name, err)
		}
		if _, err := os.Stat(filepath.Join(out, "report.pdf")); err != nil {
			t.Fatalf("report %s: %v", name, err)
		}
		data, err := os.ReadFile(filepath.Join(out, "summary.json"))
		if err != nil {
			t.Fatalf("ReadFile summary %s: %v", name, err)
		}
		var sum report.Summary
		if err := json.Unmarshal(data, &sum); err != nil {
			t.Fatalf("Unmarshal summary %s: %v", name, err)
		}
		if sum.TotalRecords != 6 || sum.AircraftSN != samples.AircraftSN {
			t.Fatalf("unexpected summary for %s: %+v", name, sum)
		}
	}

	check("alpha")
	check("beta")
	if _, err := os.Stat(filepath.Join(outDir, "notes")); !os.IsNotExist(err) {
		t.Fatalf("non-log input produced output: %v", err)
	}
}

func TestRunBatchReportsFailuresPerFile(t *testing.T) {
	root := t.TempDir()
	inputDir := filepath.Join(root, "in")
	writeSample(t, filepath.Join(inputDir, "good.autel"))

	data, err := samples.Build()
	if err != nil {
		t.Fatalf("samples.Build: %v", err)
	}
	// A stray tag after the last record stops the scan.
	bad := append(data, 7)
	if err := os.WriteFile(filepath.Join(inputDir, "bad.autel"), bad, 0o644); err != nil {
		t.Fatalf("WriteFile bad: %v", err)
	}

	metrics := common.NewMetrics()
	results, err := runBatch(context.Background(), batchOptions{
		InDir:       inputDir,
		OutDir:      filepath.Join(root, "out"),
		Concurrency: 1,
		Compress:    true,
		Lang:        report.LangEnglish,
		DBPath:      filepath.Join(root, "flights.sqlite"),
		Metrics:     metrics,
	})
	if err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	// lexical order: bad, good
	if results[0].Err == nil {
		t.Fatalf("expected failure for %s", results[0].Path)
	}
	if results[1].Err != nil {
		t.Fatalf("good log failed: %v", results[1].Err)
	}
	if results[1].FlightID == "" {
		t.Fatalf("expected a stored flight id")
	}
	snap := metrics.Snapshot()
	if snap.Files != 1 || snap.Failures != 1 {
		t.Fatalf("files=%d failures=%d, want 1 and 1", snap.Files, snap.Failures)
	}

	path := filepath.Join(results[1].OutDir, "result.json"+export.ZstdExt)
	rc, err := export.Open(path)
	if err != nil {
		t.Fatalf("export.Open: %v", err)
	}
	defer rc.Close()
	var out struct {
		Filename     string `json:"filename"`
		TotalRecords int    `json:"total_records"`
	}
	if err := json.NewDecoder(rc).Decode(&out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if out.Filename != "good.autel" || out.TotalRecords != 6 {
		t.Fatalf("result = %+v", out)
	}
}

func TestFindLogsSkipsOtherFiles(t *testing.T) {
	dir := t.TempDir()
	writeSample(t, filepath.Join(dir, "b.autel"))
	writeSample(t, filepath.Join(dir, "a.dat"))
	if err := os.WriteFile(filepath.Join(dir, "c.autel"), []byte("AUTEL_FR"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := findLogs(dir)
	if err != nil {
		t.Fatalf("findLogs: %v", err)
	}
	want := []string{filepath.Join(dir, "a.dat"), filepath.Join(dir, "b.autel")}
	if len(got) != len(want) {
		t.Fatalf("findLogs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("findLogs[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if autelfr.Sniff([]byte("AUTEL_FR")) {
		t.Fatalf("truncated preamble sniffed as a log")
	}
}
