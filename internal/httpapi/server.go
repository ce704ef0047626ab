// Package httpapi implements the Request Orchestrator (C9) and the
// Response Negotiator & Error Collector (C10): the HTTP entry points
// /focus[/:id], /preprocessing[/:id], /lenses, content negotiation, and the
// per-request warning header (spec.md §4.9/§4.10).
package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/cache"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/fhirclient"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/lens"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/pipeline"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/registry"
)

// Server wires the registries, pipeline, lens runtime, FHIR client, and
// cache into the HTTP surface from spec.md §6.
type Server struct {
	Preprocessors *registry.PreprocessorRegistry
	Lenses        *registry.LensRegistry
	LensClient    *lens.SelectorClient
	LensRuntime   *lens.Runtime
	Pipeline      *pipeline.Pipeline
	FHIR          *fhirclient.Client
	Cache         cache.Backend
	Renderer      Renderer

	mux *http.ServeMux
}

// NewServer builds a Server and registers its routes.
func NewServer(s *Server) *Server {
	s.mux = http.NewServeMux()
	s.registerRoutes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /lenses", s.handleListLenses)
	s.mux.HandleFunc("GET /preprocessing", s.handleListPreprocessors)
	s.mux.HandleFunc("POST /preprocessing/{epiId}", s.handlePreprocess)
	s.mux.HandleFunc("GET /preprocessing/cache/stats", s.handleCacheStats)
	s.mux.HandleFunc("POST /focus", s.handleFocus)
	s.mux.HandleFunc("POST /focus/{epiId}", s.handleFocus)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func newRequestID() string {
	return uuid.NewString()
}
