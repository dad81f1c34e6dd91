// Package httpapi exposes the orchestrator over HTTP for callers that do not
// speak JSON-RPC.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alucardeht/triad/internal/logger"
	"github.com/alucardeht/triad/internal/orchestrator"
	"github.com/alucardeht/triad/internal/types"
)

var log = logger.ForComponent("httpapi")

const maxBodyBytes = 1 << 20

type Service interface {
	ExecuteAISystem(ctx context.Context, aiType types.AIType, prompt string, mode types.Mode) (*types.AISystemResult, error)
	RefreshAllCaches(ctx context.Context) error
	Stats(ctx context.Context) (*orchestrator.Stats, error)
}

type Server struct {
	service     Service
	corsOrigins []string
}

func New(service Service, corsOrigins []string) *Server {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	return &Server{service: service, corsOrigins: corsOrigins}
}

type executeRequest struct {
	Prompt string `json:"prompt" validate:"required,max=32000"`
	Mode   string `json:"mode" validate:"omitempty,oneof=standard professional advanced"`
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ai/{aiType}", s.execute)
		r.Post("/admin/refresh", s.refresh)
		r.Get("/admin/stats", s.stats)
	})
	return r
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request) {
	aiType, err := types.ParseAIType(chi.URLParam(r, "aiType"))
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	var req executeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := validateStruct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.service.ExecuteAISystem(r.Context(), aiType, req.Prompt, types.Mode(req.Mode))
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if err := s.service.RefreshAllCaches(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"refreshed": true})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrUnknownAIType),
		errors.Is(err, types.ErrUnknownMode),
		errors.Is(err, orchestrator.ErrEmptyPrompt):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrMissingModelConfig):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("encode response failed", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{
		"error":   true,
		"message": message,
		"code":    status,
	})
}
