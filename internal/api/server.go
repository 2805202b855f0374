// Package api serves the bug dashboard REST interface.
package api

import (
	"context"
	"net/http"

	"github.com/rpattn/bugboard/internal/auth"
	"github.com/rpattn/bugboard/internal/export"
	"github.com/rpattn/bugboard/internal/imagelink"
	"github.com/rpattn/bugboard/internal/ingestion"
	"github.com/rpattn/bugboard/internal/middleware"
	"github.com/rpattn/bugboard/internal/query"
	"github.com/rpattn/bugboard/internal/repository"
	"github.com/rpattn/bugboard/pkg/validator"

	"go.uber.org/zap"
)

// Deps are the collaborators the server needs. Engine, Exporter, Images,
// Validator and Logger fall back to defaults when nil.
type Deps struct {
	Bugs           repository.BugRepository
	IngestionLogs  repository.IngestionLogRepository
	Engine         *query.Engine
	Ingestion      *ingestion.Service
	Exporter       *export.Service
	Images         *imagelink.Validator
	Validator      *validator.BugValidator
	Logger         *zap.Logger
	MaxUploadBytes int64
	// Health reports storage reachability for /healthz.
	Health func(ctx context.Context) error
}

// Server holds the HTTP handlers.
type Server struct {
	bugs           repository.BugRepository
	logs           repository.IngestionLogRepository
	engine         *query.Engine
	ingestion      *ingestion.Service
	exporter       *export.Service
	images         *imagelink.Validator
	validator      *validator.BugValidator
	logger         *zap.Logger
	maxUploadBytes int64
	health         func(ctx context.Context) error
}

// NewServer wires a server from deps.
func NewServer(deps Deps) *Server {
	s := &Server{
		bugs:           deps.Bugs,
		logs:           deps.IngestionLogs,
		engine:         deps.Engine,
		ingestion:      deps.Ingestion,
		exporter:       deps.Exporter,
		images:         deps.Images,
		validator:      deps.Validator,
		logger:         deps.Logger,
		maxUploadBytes: deps.MaxUploadBytes,
		health:         deps.Health,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.engine == nil {
		s.engine = query.NewEngine(nil)
	}
	if s.ingestion == nil {
		s.ingestion = ingestion.NewService(s.bugs, s.logs, ingestion.WithLogger(s.logger))
	}
	if s.exporter == nil {
		s.exporter = export.NewService(export.WithEngine(s.engine), export.WithLogger(s.logger))
	}
	if s.validator == nil {
		s.validator = validator.NewBugValidator(s.engine.Normalizer())
	}
	if s.images == nil {
		s.images = imagelink.NewValidator(nil, 0, s.logger)
	}
	return s
}

// Routes returns the full handler tree with owner scoping and a per-request
// bug loader attached.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /bugs", s.handleList)
	mux.HandleFunc("POST /bugs/query", s.handleQuery)
	mux.HandleFunc("POST /bugs", s.handleCreate)
	mux.HandleFunc("PATCH /bugs", s.handleBulkPatch)
	mux.HandleFunc("PATCH /bugs/{id}", s.handlePatch)
	mux.HandleFunc("DELETE /bugs/delete-all", s.handleDeleteAll)
	mux.HandleFunc("DELETE /bugs/{id}", s.handleDelete)
	mux.HandleFunc("GET /bugs/summary", s.handleSummary)
	mux.HandleFunc("GET /bugs/filters", s.handleFilters)
	mux.HandleFunc("GET /bugs/ingestion-logs", s.handleIngestionLogs)
	mux.Handle("POST /bugs/upload", ingestion.NewHTTPHandler(s.ingestion, s.maxUploadBytes))
	mux.Handle("GET /bugs/export", export.NewHTTPHandler(s.exporter, s.exportSource))

	mux.HandleFunc("POST /images/validate", s.handleValidateImage)

	return auth.OwnerMiddleware(middleware.DataLoaderMiddleware(s.bugs)(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
