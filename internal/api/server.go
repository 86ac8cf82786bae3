// Package api exposes the power pipeline over HTTP. The surface is small:
// run an analysis, fetch it back as JSON or a rendered report, list and
// delete stored analyses.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gopower/app"
	"gopower/domain/power"
	"gopower/internal"
	"gopower/ports"
)

// Options configures the server beyond its collaborators.
type Options struct {
	Defaults  power.Options // applied when a request omits analysis options
	ReportDir string        // when set, each analysis also writes a workbook here
}

// Server wires the HTTP routes to the analysis service and result store.
type Server struct {
	router    *chi.Mux
	service   *app.ExactPowerService
	results   ports.ResultRepository
	defaults  power.Options
	reportDir string
	logger    *internal.Logger
}

// NewServer creates the HTTP server. The repository may be nil, in which
// case analyses run but are not persisted and lookups return 404.
func NewServer(service *app.ExactPowerService, results ports.ResultRepository, opts Options, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.NewDefaultLogger()
	}
	if opts.Defaults == (power.Options{}) {
		opts.Defaults = power.DefaultOptions()
	}
	s := &Server{
		router:    chi.NewRouter(),
		service:   service,
		results:   results,
		defaults:  opts.Defaults,
		reportDir: opts.ReportDir,
		logger:    logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Post("/api/analyses", s.handleRunAnalysis)
	s.router.Get("/api/analyses", s.handleListAnalyses)
	s.router.Get("/api/analyses/{id}", s.handleGetAnalysis)
	s.router.Get("/api/analyses/{id}/report", s.handleGetReport)
	s.router.Delete("/api/analyses/{id}", s.handleDeleteAnalysis)
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
