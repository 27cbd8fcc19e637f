package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"example.com/autellog/internal/common"
	"example.com/autellog/internal/manifest"
)

// input is a log body read from a request together with its digest.
type input struct {
	Name   string
	Data   []byte
	SHA256 string
}

// readInput accepts a multipart "file" field, a stored upload referenced by
// ?artifact=<id>, or a raw request body named by ?name=.
func (s *Server) readInput(w http.ResponseWriter, r *http.Request) (*input, error) {
	if id := r.URL.Query().Get("artifact"); id != "" {
		art, ok := s.getArtifact(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", errUnknownArtifact, id)
		}
		f, err := os.Open(art.Path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readAll(f, art.Name)
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		src, fh, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer src.Close()
		return readAll(src, filepath.Base(fh.Filename))
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload.autel"
	}
	return readAll(r.Body, filepath.Base(name))
}

func readAll(src io.Reader, name string) (*input, error) {
	h := common.NewHasher()
	data, err := io.ReadAll(io.TeeReader(src, h))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errEmptyInput
	}
	return &input{Name: name, Data: data, SHA256: h.Sum()}, nil
}

var (
	errUnknownArtifact = errors.New("unknown artifact")
	errEmptyInput      = errors.New("empty input")
)

// readInputOrFail writes the matching error status when the body cannot be
// read.
func (s *Server) readInputOrFail(w http.ResponseWriter, r *http.Request) (*input, bool) {
	in, err := s.readInput(w, r)
	if err == nil {
		return in, true
	}
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		http.Error(w, fmt.Sprintf("upload exceeds %s", common.FormatBytes(tooLarge.Limit)), http.StatusRequestEntityTooLarge)
	case errors.Is(err, errUnknownArtifact):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, fmt.Sprintf("read input: %v", err), http.StatusBadRequest)
	}
	return nil, false
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("upload exceeds %s", common.FormatBytes(tooLarge.Limit)), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, fmt.Sprintf("parse multipart: %v", err), http.StatusBadRequest)
		return
	}
	if r.MultipartForm == nil {
		http.Error(w, "no files provided", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()
	var refs []ArtifactRef
	for _, files := range r.MultipartForm.File {
		for _, fh := range files {
			ref, err := s.saveUploadedFile(fh)
			if err != nil {
				http.Error(w, fmt.Sprintf("save upload %s: %v", fh.Filename, err), http.StatusBadRequest)
				return
			}
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		http.Error(w, "no files uploaded", http.StatusBadRequest)
		return
	}
	resp := struct {
		Files []ArtifactRef `json:"files"`
	}{Files: refs}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) saveUploadedFile(fh *multipart.FileHeader) (ArtifactRef, error) {
	if fh == nil {
		return ArtifactRef{}, fmt.Errorf("nil file header")
	}
	src, err := fh.Open()
	if err != nil {
		return ArtifactRef{}, err
	}
	defer src.Close()
	name := filepath.Base(fh.Filename)
	ext := filepath.Ext(name)
	pattern := "upload-*"
	if ext != "" {
		pattern = fmt.Sprintf("upload-*%s", ext)
	}
	dest, err := os.CreateTemp(s.uploadsDir, pattern)
	if err != nil {
		return ArtifactRef{}, err
	}
	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		os.Remove(dest.Name())
		return ArtifactRef{}, err
	}
	dest.Close()
	kind, err := manifest.Classify(dest.Name())
	if err != nil {
		os.Remove(dest.Name())
		return ArtifactRef{}, err
	}
	art, err := s.addArtifact(dest.Name(), name, guessContentType(name), kind)
	if err != nil {
		return ArtifactRef{}, err
	}
	return toRef(art), nil
}
