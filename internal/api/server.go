// Package api exposes the compositing pipeline over HTTP: a render
// endpoint, streamed progress, engine and cache introspection, and
// Prometheus metrics.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gifsmith/internal/cache"
	"gifsmith/internal/config"
	"gifsmith/internal/logging"
	"gifsmith/internal/pipeline"
)

// Server hosts the HTTP surface around one shared Processor.
type Server struct {
	cfg    *config.Config
	proc   *pipeline.Processor
	store  *cache.Store
	logger *slog.Logger
	http   *http.Server
}

// New wires a Server. store may be nil when the cache is disabled.
func New(cfg *config.Config, proc *pipeline.Processor, store *cache.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		cfg:    cfg,
		proc:   proc,
		store:  store,
		logger: logging.NewComponentLogger(logger, "api"),
	}
	s.http = &http.Server{
		Addr:        cfg.HTTP.Bind,
		Handler:     s.requestLogger(s.Router()),
		ReadTimeout: 15 * time.Second,
		// Render and progress responses outlive any fixed write budget.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router builds the route table. Exposed for tests.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	apiRoutes := r.PathPrefix("/api").Subrouter()
	apiRoutes.HandleFunc("/render", s.handleRender).Methods(http.MethodPost)
	apiRoutes.HandleFunc("/render", s.handleCancel).Methods(http.MethodDelete)
	apiRoutes.HandleFunc("/progress", s.handleProgress).Methods(http.MethodGet)
	// Jobs share one serialized pipeline, so every job id maps onto the
	// same stream; the id-scoped route exists for client symmetry.
	apiRoutes.HandleFunc("/render/{id}/progress", s.handleProgress).Methods(http.MethodGet)
	apiRoutes.HandleFunc("/engine", s.handleEngine).Methods(http.MethodGet)
	apiRoutes.HandleFunc("/cache", s.handleCacheList).Methods(http.MethodGet)
	apiRoutes.HandleFunc("/cache", s.handleCacheClear).Methods(http.MethodDelete)

	return r
}

// ListenAndServe blocks until the listener fails or Shutdown runs.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "bind", s.cfg.HTTP.Bind)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and cancels any running job.
func (s *Server) Shutdown(ctx context.Context) error {
	s.proc.Cancel()
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
