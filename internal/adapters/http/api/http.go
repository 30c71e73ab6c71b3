// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	service "github.com/okian/admit/internal/app"
	"github.com/okian/admit/internal/domain/model"
	"github.com/okian/admit/pkg/logger"
	"github.com/okian/admit/pkg/metrics"
)

// Advisor is the service surface the handlers call.
type Advisor interface {
	PredictProbability(ctx context.Context, req service.ProbabilityRequest) (model.Prediction, error)
	RecommendFields(ctx context.Context, req service.RecommendationRequest) ([]model.FieldRecommendation, error)
	RecommendInstitutions(ctx context.Context, req service.InstitutionRequest) ([]model.Recommendation, error)
	PredictBatch(ctx context.Context, items []service.ProbabilityItem) ([]service.BatchResult, error)
	RecommendBatch(ctx context.Context, items []service.RecommendationItem) ([]service.BatchResult, error)
	Health() service.Health
	StatsProvider
}

// Defaults applied by NewServer.
const (
	DefaultMaxBodyBytes   = 1 << 20
	DefaultRequestTimeout = 30 * time.Second
)

// Server wires HTTP routes for the advisor API.
type Server struct {
	advisor        Advisor
	validate       *validator.Validate
	logger         logger.Logger
	corsOrigins    []string
	maxBodyBytes   int64
	requestTimeout time.Duration
	mounts         []func(chi.Router)

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for server-side failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithCORSOrigins restricts browser origins. Empty allows any origin.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithMaxBodyBytes bounds request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithRequestTimeout bounds each request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithMount registers extra routes (e.g. API docs) on the router.
func WithMount(fn func(chi.Router)) Option {
	return func(s *Server) { s.mounts = append(s.mounts, fn) }
}

// NewServer creates a new API server with all handlers.
func NewServer(advisor Advisor, opts ...Option) *Server {
	s := &Server{
		advisor:        advisor,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		maxBodyBytes:   DefaultMaxBodyBytes,
		requestTimeout: DefaultRequestTimeout,
		healthHandler:  NewHealthHandler(advisor),
		statsHandler:   NewStatsHandler(advisor),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	r.Route("/v1", func(v chi.Router) {
		v.Post("/probability", MetricsMiddleware(s.handleProbability, "probability"))
		v.Post("/probability/batch", MetricsMiddleware(s.handleProbabilityBatch, "probability_batch"))
		v.Post("/recommendations", MetricsMiddleware(s.handleRecommendations, "recommendations"))
		v.Post("/recommendations/batch", MetricsMiddleware(s.handleRecommendationBatch, "recommendations_batch"))
		v.Post("/institutions", MetricsMiddleware(s.handleInstitutions, "institutions"))
	})

	for _, mount := range s.mounts {
		mount(r)
	}
	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.corsOrigins) == 0 {
		return []string{"*"}
	}
	return s.corsOrigins
}

// decode reads a JSON body into v and validates its tags.
func (s *Server) decode(r *http.Request, w http.ResponseWriter, op string, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return WrapKind(op, service.KindValidation, fmt.Errorf("%w: invalid JSON body: %w", ErrBadRequest, err))
	}
	if err := s.validate.StructCtx(r.Context(), v); err != nil {
		return WrapKind(op, service.KindValidation, fmt.Errorf("%w: %s", ErrBadRequest, describe(err)))
	}
	return nil
}

// describe flattens validator errors into one readable line.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code and writes the error body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := Wrap("", err)
	code, name := status(e.Kind)
	if code >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err))
	}
	writeJSON(w, code, errorResponse{
		Code:        name,
		Message:     err.Error(),
		RequestID:   middleware.GetReqID(r.Context()),
		Suggestions: suggestions(err),
	})
}
