// Package server exposes the suggestion engine over HTTP.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zakupnik/suggestd/internal/access"
	"github.com/zakupnik/suggestd/internal/catalog"
	apperr "github.com/zakupnik/suggestd/internal/errors"
	"github.com/zakupnik/suggestd/internal/history"
	"github.com/zakupnik/suggestd/internal/replicate"
	"github.com/zakupnik/suggestd/internal/suggest"
	"github.com/zakupnik/suggestd/pkg/version"
)

// Deps bundles everything the HTTP layer serves.
type Deps struct {
	Engine     *suggest.Engine
	Estimator  *suggest.Estimator
	Catalog    *catalog.Store
	History    *history.Store
	Replicator *replicate.Replicator
	Access     *access.Checker
	JWTSecret  string
	// RequestTimeout bounds each request end to end.
	RequestTimeout time.Duration
	// FrequentMinCount and FrequentLimit shape the list suggestion.
	FrequentMinCount int
	FrequentLimit    int
	// SimilarityThreshold filters history groups in the items route.
	SimilarityThreshold float64
	// MinQueryLen gates the items-route query filter; shorter q values
	// return the unfiltered history.
	MinQueryLen int
	Logger      *slog.Logger
}

// Server is the HTTP front of suggestd.
type Server struct {
	engine           *suggest.Engine
	estimator        *suggest.Estimator
	catalog          *catalog.Store
	history          *history.Store
	replicator       *replicate.Replicator
	access           *access.Checker
	jwtSecret        string
	requestTimeout   time.Duration
	frequentMinCount int
	frequentLimit    int
	threshold        float64
	minQueryLen      int
	logger           *slog.Logger
}

// New builds the server from its dependencies.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	minCount := deps.FrequentMinCount
	if minCount <= 0 {
		minCount = 2
	}
	limit := deps.FrequentLimit
	if limit <= 0 {
		limit = 15
	}
	threshold := deps.SimilarityThreshold
	if threshold <= 0 {
		threshold = 0.2
	}
	minQueryLen := deps.MinQueryLen
	if minQueryLen <= 0 {
		minQueryLen = 2
	}
	return &Server{
		engine:           deps.Engine,
		estimator:        deps.Estimator,
		catalog:          deps.Catalog,
		history:          deps.History,
		replicator:       deps.Replicator,
		access:           deps.Access,
		jwtSecret:        deps.JWTSecret,
		requestTimeout:   timeout,
		frequentMinCount: minCount,
		frequentLimit:    limit,
		threshold:        threshold,
		minQueryLen:      minQueryLen,
		logger:           logger,
	}
}

// Router assembles the chi router with middleware and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))

	r.Get("/health", s.handleHealth)

	r.Route("/api/suggestions", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/products", s.handleSearchProducts)
		r.Post("/products", s.handleCreateProduct)
		r.Route("/profile/{profileId}", func(r chi.Router) {
			r.Get("/items", s.handleProfileItems)
			r.Get("/quantity/{productName}", s.handleQuantity)
			r.Get("/lists", s.handleListSuggestion)
		})
	})

	return r
}

// logRequests emits one structured line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "suggestd",
		"version": version.Version,
	})
}

// errorResponse is the uniform error body. Access denials and lookups of
// missing resources share this shape on purpose.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	body := errorResponse{Error: "request failed", Code: apperr.GetCode(err)}

	switch status {
	case http.StatusForbidden:
		// Same body shape as not-found; the status is the only
		// difference and the text reveals nothing about the profile.
		body = errorResponse{Error: "access denied"}
	case http.StatusNotFound:
		body = errorResponse{Error: "not found"}
	case http.StatusBadRequest:
		body.Error = err.Error()
	case http.StatusUnauthorized:
		body.Error = "unauthorized"
	default:
		s.logger.Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		body.Error = "internal error"
	}

	s.writeJSON(w, status, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
