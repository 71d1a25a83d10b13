package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"grecy-client/internal/infra/worker"
	"grecy-client/internal/usecase"
)

type ServerOptions struct {
	Auth           *AuthManager // nil disables bearer auth
	Limiter        Limiter      // nil disables rate limiting
	RateLimit      int
	RateWindow     time.Duration
	RateKey        func(clientID, route string) string
	MaxBatch       int
	HandlerTimeout time.Duration
}

// Server exposes the analysis use case over HTTP.
type Server struct {
	analysis usecase.AnalysisUseCase
	batch    *worker.BatchProcessor
	opts     ServerOptions
	log      *zerolog.Logger
}

func NewServer(analysis usecase.AnalysisUseCase, batch *worker.BatchProcessor, opts ServerOptions, logger *zerolog.Logger) *Server {
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = 64
	}
	if opts.RateKey == nil {
		opts.RateKey = func(clientID, route string) string { return clientID + ":" + route }
	}
	l := logger.With().Str("component", "api").Logger()
	return &Server{analysis: analysis, batch: batch, opts: opts, log: &l}
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequireAuth(s.opts.Auth, s.log), Timeout(s.opts.HandlerTimeout))

		limited := r.With(RateLimit(s.opts.Limiter, s.opts.RateLimit, s.opts.RateWindow, s.opts.RateKey, s.log))
		limited.Post("/analyze", s.handleAnalyze)
		limited.Post("/analyze/batch", s.handleBatch)
		limited.Get("/jobs", s.handleListJobs)
		limited.Get("/jobs/{id}", s.handleGetJob)
		limited.Get("/models", s.handleModels)
	})
	return r
}
