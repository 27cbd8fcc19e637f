package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/segmentio/ksuid"

	"example.com/autellog/internal/autelfr"
	"example.com/autellog/internal/common"
	"example.com/autellog/internal/export"
	"example.com/autellog/internal/manifest"
	"example.com/autellog/internal/report"
	"example.com/autellog/internal/store"
)

// Server coordinates HTTP handlers and manages temporary artifacts produced by
// parse and report requests.
type Server struct {
	artifacts  *ArtifactStore
	workDir    string
	uploadsDir string
	pool       *workerPool
	maxUpload  int64
	store      *store.Store
	lang       report.Language
	metrics    *Metrics
	stats      *common.Metrics
}

// Artifact represents a file generated or stored by the daemon.
type Artifact struct {
	ID          string
	Path        string
	Name        string
	ContentType string
	Size        int64
	Kind        string
}

// ArtifactRef is the public representation returned in API responses.
type ArtifactRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// ArtifactStore keeps track of generated artifacts for later download.
type ArtifactStore struct {
	mu      sync.RWMutex
	entries map[string]Artifact
}

// NewServer constructs a Server rooted at a temporary workspace directory.
func NewServer(opts Options) (*Server, error) {
	opts, err := opts.normalized()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.StorageDir, 0o755); err != nil {
		return nil, err
	}
	workDir, err := os.MkdirTemp(opts.StorageDir, "auteld-")
	if err != nil {
		return nil, err
	}
	uploadsDir := filepath.Join(workDir, "uploads")
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	pool := newWorkerPool(opts.Concurrency)
	stats := common.NewMetrics()
	stats.Start()
	s := &Server{
		artifacts:  &ArtifactStore{entries: make(map[string]Artifact)},
		workDir:    workDir,
		uploadsDir: uploadsDir,
		pool:       pool,
		maxUpload:  opts.MaxUploadBytes,
		store:      opts.Store,
		lang:       opts.Lang,
		metrics:    NewMetrics(opts.Registry, func() float64 { return float64(pool.Active()) }),
		stats:      stats,
	}
	return s, nil
}

// Close removes any temporary state associated with the server.
func (s *Server) Close() error {
	if s == nil || s.workDir == "" {
		return nil
	}
	return os.RemoveAll(s.workDir)
}

func (s *Server) tempPath(pattern string) (string, error) {
	f, err := os.CreateTemp(s.workDir, pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	return name, nil
}

func (s *Server) addArtifact(path, displayName, contentType, kind string) (Artifact, error) {
	if path == "" {
		return Artifact{}, errors.New("empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, err
	}
	art := Artifact{
		ID:          ksuid.New().String(),
		Path:        path,
		Name:        displayName,
		ContentType: contentType,
		Size:        info.Size(),
		Kind:        kind,
	}
	if art.Name == "" {
		art.Name = filepath.Base(path)
	}
	if art.ContentType == "" {
		art.ContentType = guessContentType(art.Name)
	}
	s.artifacts.mu.Lock()
	s.artifacts.entries[art.ID] = art
	s.artifacts.mu.Unlock()
	return art, nil
}

func (s *Server) getArtifact(id string) (Artifact, bool) {
	s.artifacts.mu.RLock()
	art, ok := s.artifacts.entries[id]
	s.artifacts.mu.RUnlock()
	return art, ok
}

func (s *Server) listArtifacts() []ArtifactRef {
	s.artifacts.mu.RLock()
	refs := make([]ArtifactRef, 0, len(s.artifacts.entries))
	for _, art := range s.artifacts.entries {
		refs = append(refs, toRef(art))
	}
	s.artifacts.mu.RUnlock()
	// ksuids sort by creation time.
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}

// parse runs one decode on the worker pool and records its outcome.
func (s *Server) parse(ctx context.Context, in *input) (*autelfr.ParseResult, error) {
	start := time.Now()
	res, err := submit(ctx, s.pool, func() (*autelfr.ParseResult, error) {
		return autelfr.ParseWithMetrics(in.Data, in.Name, s.stats)
	})
	s.metrics.RecordParse(res, len(in.Data), time.Since(start), err)
	return res, err
}

type parseResponse struct {
	Filename     string               `json:"filename"`
	SHA256       string               `json:"sha256"`
	Size         string               `json:"size"`
	TotalRecords int                  `json:"totalRecords"`
	RecordTracks autelfr.Tracks       `json:"recordTracks"`
	Summary      report.Summary       `json:"summary"`
	Result       *autelfr.ParseResult `json:"result,omitempty"`
	FlightID     string               `json:"flightId,omitempty"`
	Artifact     *ArtifactRef         `json:"artifact,omitempty"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	in, ok := s.readInputOrFail(w, r)
	if !ok {
		return
	}
	res, err := s.parse(r.Context(), in)
	if err != nil {
		writeParseError(w, err)
		return
	}
	q := r.URL.Query()
	resp := parseResponse{
		Filename:     res.Filename,
		SHA256:       in.SHA256,
		Size:         humanize.IBytes(uint64(len(in.Data))),
		TotalRecords: res.TotalRecords,
		RecordTracks: res.Tracks,
		Summary:      report.Summarize(res, in.SHA256),
	}
	if queryFlag(q.Get("records")) {
		resp.Result = res
	}
	if queryFlag(q.Get("save")) {
		outPath, err := s.tempPath("result-*.json.zst")
		if err != nil {
			http.Error(w, fmt.Sprintf("result temp: %v", err), http.StatusInternalServerError)
			return
		}
		if err := export.WriteFile(outPath, res, export.Options{}); err != nil {
			http.Error(w, fmt.Sprintf("write result: %v", err), http.StatusInternalServerError)
			return
		}
		art, err := s.addArtifact(outPath, res.Filename+".json.zst", "application/zstd", "result")
		if err != nil {
			http.Error(w, fmt.Sprintf("register result: %v", err), http.StatusInternalServerError)
			return
		}
		ref := toRef(art)
		resp.Artifact = &ref
	}
	if queryFlag(q.Get("store")) {
		if s.store == nil {
			http.Error(w, "flight store not configured", http.StatusServiceUnavailable)
			return
		}
		id, err := s.store.SaveFlight(r.Context(), res, in.SHA256)
		if errors.Is(err, store.ErrFlightExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if err != nil {
			http.Error(w, fmt.Sprintf("store flight: %v", err), http.StatusInternalServerError)
			return
		}
		resp.FlightID = id
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleParseStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	in, ok := s.readInputOrFail(w, r)
	if !ok {
		return
	}
	writer := NewNDJSONWriter(w)
	w.Header().Set("Content-Type", "application/x-ndjson")
	res, err := s.parse(r.Context(), in)
	if err != nil {
		_ = writer.WriteObject(map[string]any{"type": "error", "error": err.Error()})
		return
	}
	if err := export.EachLine(res, writer.WriteLine); err != nil {
		common.Logf("stream %s: %v", in.Name, err)
		return
	}
	summary := struct {
		Type    string         `json:"type"`
		Summary report.Summary `json:"summary"`
	}{
		Type:    "summary",
		Summary: report.Summarize(res, in.SHA256),
	}
	_ = writer.WriteObject(summary)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	lang := s.lang
	if v := r.URL.Query().Get("lang"); v != "" {
		parsed, err := report.ParseLanguage(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		lang = parsed
	}
	in, ok := s.readInputOrFail(w, r)
	if !ok {
		return
	}
	res, err := s.parse(r.Context(), in)
	if err != nil {
		writeParseError(w, err)
		return
	}
	sum := report.Summarize(res, in.SHA256)
	base := strings.TrimSuffix(res.Filename, filepath.Ext(res.Filename))

	sumPath, err := s.tempPath("summary-*.json")
	if err != nil {
		http.Error(w, fmt.Sprintf("summary temp: %v", err), http.StatusInternalServerError)
		return
	}
	if err := report.SaveSummaryJSON(sum, sumPath); err != nil {
		http.Error(w, fmt.Sprintf("write summary: %v", err), http.StatusInternalServerError)
		return
	}
	pdfPath, err := s.tempPath("report-*.pdf")
	if err != nil {
		http.Error(w, fmt.Sprintf("report temp: %v", err), http.StatusInternalServerError)
		return
	}
	if err := report.SaveSummaryPDF(sum, pdfPath, lang); err != nil {
		http.Error(w, fmt.Sprintf("write report: %v", err), http.StatusInternalServerError)
		return
	}
	sumArt, err := s.addArtifact(sumPath, base+"_summary.json", "application/json", "summary")
	if err != nil {
		http.Error(w, fmt.Sprintf("register summary: %v", err), http.StatusInternalServerError)
		return
	}
	pdfArt, err := s.addArtifact(pdfPath, base+"_report.pdf", "application/pdf", "report")
	if err != nil {
		http.Error(w, fmt.Sprintf("register report: %v", err), http.StatusInternalServerError)
		return
	}
	resp := struct {
		Summary   report.Summary `json:"summary"`
		Artifacts []ArtifactRef  `json:"artifacts"`
	}{
		Summary:   sum,
		Artifacts: []ArtifactRef{toRef(sumArt), toRef(pdfArt)},
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Inputs []string `json:"inputs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Inputs) == 0 {
		http.Error(w, "inputs required", http.StatusBadRequest)
		return
	}
	var paths []string
	for _, id := range req.Inputs {
		art, ok := s.getArtifact(id)
		if !ok {
			http.Error(w, fmt.Sprintf("unknown artifact %s", id), http.StatusBadRequest)
			return
		}
		paths = append(paths, art.Path)
	}
	m, err := manifest.Build(paths)
	if err != nil {
		http.Error(w, fmt.Sprintf("build manifest: %v", err), http.StatusInternalServerError)
		return
	}
	// Report artifact names rather than workspace paths.
	for i := range m.Items {
		art, _ := s.getArtifact(req.Inputs[i])
		m.Items[i].Path = art.Name
	}
	outPath, err := s.tempPath("manifest-*.json")
	if err != nil {
		http.Error(w, fmt.Sprintf("manifest temp: %v", err), http.StatusInternalServerError)
		return
	}
	if err := manifest.Save(m, outPath); err != nil {
		http.Error(w, fmt.Sprintf("write manifest: %v", err), http.StatusInternalServerError)
		return
	}
	art, err := s.addArtifact(outPath, "manifest.json", "application/json", "manifest")
	if err != nil {
		http.Error(w, fmt.Sprintf("register manifest: %v", err), http.StatusInternalServerError)
		return
	}
	resp := struct {
		Manifest manifest.Manifest `json:"manifest"`
		Artifact ArtifactRef       `json:"artifact"`
	}{
		Manifest: m,
		Artifact: toRef(art),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFlights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "flight store not configured", http.StatusServiceUnavailable)
		return
	}
	flights, err := s.store.ListFlights(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("list flights: %v", err), http.StatusInternalServerError)
		return
	}
	if flights == nil {
		flights = []store.Flight{}
	}
	writeJSON(w, http.StatusOK, flights)
}

// handleFlight serves /flights/{id}. With ?records=<kind> the stored records
// of that kind are included; ?records=all includes every kind.
func (s *Server) handleFlight(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/flights/")
	if id == "" {
		s.handleFlights(w, r)
		return
	}
	if s.store == nil {
		http.Error(w, "flight store not configured", http.StatusServiceUnavailable)
		return
	}
	flight, err := s.store.Flight(r.Context(), id)
	if errors.Is(err, store.ErrFlightNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("load flight: %v", err), http.StatusInternalServerError)
		return
	}
	resp := struct {
		Flight  store.Flight         `json:"flight"`
		Counts  map[string]int       `json:"counts"`
		Records []store.StoredRecord `json:"records,omitempty"`
	}{
		Flight: flight,
		Counts: make(map[string]int, len(autelfr.BodyKinds)),
	}
	for _, kind := range autelfr.BodyKinds {
		n, err := s.store.CountRecords(r.Context(), id, kind)
		if err != nil {
			http.Error(w, fmt.Sprintf("count records: %v", err), http.StatusInternalServerError)
			return
		}
		resp.Counts[string(kind)] = n
	}
	if want := r.URL.Query().Get("records"); want != "" {
		var kind autelfr.Kind
		if want != "all" {
			kind, err = autelfr.ParseKind(want)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		resp.Records, err = s.store.Records(r.Context(), id, kind)
		if err != nil {
			http.Error(w, fmt.Sprintf("load records: %v", err), http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.listArtifacts())
}

func (s *Server) handleArtifactDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/artifacts/")
	if id == "" {
		s.handleArtifacts(w, r)
		return
	}
	art, ok := s.getArtifact(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(art.Path)
	if err != nil {
		http.Error(w, fmt.Sprintf("open artifact: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, fmt.Sprintf("stat artifact: %v", err), http.StatusInternalServerError)
		return
	}
	if art.ContentType != "" {
		w.Header().Set("Content-Type", art.ContentType)
	}
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
	io.Copy(w, f)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := s.stats.Snapshot()
	resp := struct {
		Status   string `json:"status"`
		Uptime   string `json:"uptime"`
		Files    int64  `json:"files"`
		Records  int64  `json:"records"`
		Failures int64  `json:"failures"`
		Bytes    string `json:"bytes"`
		Workers  int    `json:"workers"`
		Busy     int    `json:"busy"`
	}{
		Status:   "ok",
		Uptime:   snap.Duration.Truncate(time.Second).String(),
		Files:    snap.Files,
		Records:  snap.Records,
		Failures: snap.Failures,
		Bytes:    common.FormatBytes(snap.Bytes),
		Workers:  s.pool.Size(),
		Busy:     s.pool.Active(),
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeParseError maps decoder failures to 422 and cancellation to 503.
func writeParseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, fmt.Sprintf("parse abandoned: %v", err), http.StatusServiceUnavailable)
	default:
		http.Error(w, fmt.Sprintf("parse: %v", err), http.StatusUnprocessableEntity)
	}
}

func queryFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func toRef(art Artifact) ArtifactRef {
	return ArtifactRef{
		ID:          art.ID,
		Name:        art.Name,
		ContentType: art.ContentType,
		Size:        art.Size,
		Kind:        art.Kind,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func guessContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".json":
		return "application/json"
	case ".ndjson":
		return "application/x-ndjson"
	case ".pdf":
		return "application/pdf"
	case ".zst":
		return "application/zstd"
	case ".sqlite", ".db":
		return "application/vnd.sqlite3"
	default:
		return "application/octet-stream"
	}
}
