package server

import "net/http"

// NewRouter wires HTTP routes to the server's handlers.
func NewRouter(s *Server) http.Handler {
	m := s.metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/parse", m.InstrumentHandler("/parse", s.handleParse))
	mux.HandleFunc("/parse/stream", m.InstrumentHandler("/parse/stream", s.handleParseStream))
	mux.HandleFunc("/report", m.InstrumentHandler("/report", s.handleReport))
	mux.HandleFunc("/upload", m.InstrumentHandler("/upload", s.handleUpload))
	mux.HandleFunc("/manifest", m.InstrumentHandler("/manifest", s.handleManifest))
	mux.HandleFunc("/flights", m.InstrumentHandler("/flights", s.handleFlights))
	mux.HandleFunc("/flights/", m.InstrumentHandler("/flights/{id}", s.handleFlight))
	mux.HandleFunc("/artifacts", m.InstrumentHandler("/artifacts", s.handleArtifacts))
	mux.HandleFunc("/artifacts/", m.InstrumentHandler("/artifacts/{id}", s.handleArtifactDownload))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", m.Handler())
	return mux
}
