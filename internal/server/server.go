// Package server exposes the evaluation engine and batch store over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sitescore/internal/engine"
	"github.com/sells-group/sitescore/internal/store"
)

// Server wires the engine and store behind a chi router.
type Server struct {
	engine      *engine.Engine
	store       store.Store
	concurrency int
	srv         *http.Server
}

// Options configures the HTTP server.
type Options struct {
	Host        string
	Port        int
	Concurrency int // batch evaluation parallelism
}

// New builds a Server. The store may be nil, in which case batch persistence
// endpoints respond 503.
func New(eng *engine.Engine, st store.Store, opts Options) *Server {
	s := &Server{
		engine:      eng,
		store:       st,
		concurrency: opts.Concurrency,
	}

	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Routes assembles the router. Exposed separately so tests can drive the
// handler stack without binding a port.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/parcels/evaluate", s.handleEvaluate)
		r.Post("/batches", s.handleCreateBatch)
		r.Get("/batches/{batchID}", s.handleGetBatch)
		r.Get("/batches/{batchID}/summary", s.handleGetBatchSummary)
	})

	return r
}

// Start runs the server until it fails or Shutdown is called.
func (s *Server) Start() error {
	zap.L().Info("starting server", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	zap.L().Info("shutting down server")
	return eris.Wrap(s.srv.Shutdown(ctx), "server: shutdown")
}

// requestLogger logs each request with method, path, status, and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
