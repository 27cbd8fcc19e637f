package smoke

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"example.com/autellog/internal/flight"
	"example.com/autellog/internal/manifest"
	"example.com/autellog/internal/report"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

func goRun(t *testing.T, root string, args ...string) []byte {
	t.Helper()
	cmd := exec.Command("go", append([]string{"run"}, args...)...)
	cmd.Dir = root
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go run %v failed: %v\n%s", args, err, output)
	}
	return output
}

func TestCLIGenerateSummarizeManifest(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping CLI smoke test in short mode")
	}
	root := repoRoot(t)
	tmp := t.TempDir()

	goRun(t, root, "./examples/cmd/generate_samples", "--out", tmp)
	logPath := filepath.Join(tmp, "sample.autel")
	if _, err := os.Stat(logPath); err != nil {
		t.Fatalf("sample missing: %v", err)
	}

	summaryPath := filepath.Join(tmp, "summary.json")
	goRun(t, root, "./cmd/autelctl", "summary", "--in", logPath, "--out", summaryPath)
	sum, err := report.LoadSummaryJSON(summaryPath)
	if err != nil {
		t.Fatalf("LoadSummaryJSON: %v", err)
	}
	if sum.TotalRecords != 6 {
		t.Fatalf("summary total = %d, want 6", sum.TotalRecords)
	}

	pdfPath := filepath.Join(tmp, "report.pdf")
	goRun(t, root, "./cmd/autelctl", "report", "--summary", summaryPath, "--pdf", pdfPath)
	pdf, err := os.ReadFile(pdfPath)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Fatalf("report is not a PDF")
	}

	manifestPath := filepath.Join(tmp, "manifest.json")
	out := goRun(t, root, "./cmd/autelctl", "manifest", "--inputs", logPath+","+summaryPath+","+pdfPath, "--out", manifestPath)
	if !bytes.Contains(out, []byte("1 flight logs")) {
		t.Fatalf("unexpected manifest output:\n%s", out)
	}
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var m manifest.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	wantTypes := []string{manifest.TypeFlightLog, manifest.TypeJSON, manifest.TypePDF}
	for i, typ := range wantTypes {
		if m.Items[i].Type != typ {
			t.Fatalf("item %d type = %s, want %s", i, m.Items[i].Type, typ)
		}
	}
}

func TestCLIFlightLocatesMedia(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping CLI smoke test in short mode")
	}
	root := repoRoot(t)
	tmp := t.TempDir()

	goRun(t, root, "./examples/cmd/generate_samples", "--out", tmp)
	logPath := filepath.Join(tmp, "sample.autel")
	mediaDir := filepath.Join(tmp, "dcim")
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(mediaDir, "IMG_0001.JPG"), []byte("jpeg"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	cfgPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("imageSearchPaths:\n  - path: dcim\n    glob: \"*.JPG\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	flightPath := filepath.Join(tmp, "flight.json")
	goRun(t, root, "./cmd/autelctl", "flight", "--in", logPath, "--config", cfgPath, "--out", flightPath)
	data, err := os.ReadFile(flightPath)
	if err != nil {
		t.Fatalf("read flight: %v", err)
	}
	var fl flight.Flight
	if err := json.Unmarshal(data, &fl); err != nil {
		t.Fatalf("decode flight: %v", err)
	}
	if len(fl.Track) != 4 || fl.Bounds == nil {
		t.Fatalf("flight track = %d items, bounds %v", len(fl.Track), fl.Bounds)
	}
	if len(fl.Media) != 2 || fl.Media[0].Path != filepath.Join(mediaDir, "IMG_0001.JPG") || fl.Media[1].Path != "" {
		t.Fatalf("media = %+v", fl.Media)
	}
}

func TestCLIParseRejectsUnknownTag(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping CLI smoke test in short mode")
	}
	root := repoRoot(t)
	tmp := t.TempDir()
	goRun(t, root, "./examples/cmd/generate_samples", "--out", tmp)
	logPath := filepath.Join(tmp, "sample.autel")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if err := os.WriteFile(logPath, append(data, 9), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}

	cmd := exec.Command("go", "run", "./cmd/autelctl", "parse", "--in", logPath)
	cmd.Dir = root
	output, err := cmd.CombinedOutput()
	if err == nil {
		t.Fatalf("expected parse to fail\n%s", output)
	}
	if !bytes.Contains(output, []byte("context @")) {
		t.Fatalf("missing byte context in output:\n%s", output)
	}
}
