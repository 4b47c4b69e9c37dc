// Package server exposes anchor selection and prediction over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/zen-systems/anchorfill/pkg/archive"
	"github.com/zen-systems/anchorfill/pkg/catalog"
	"github.com/zen-systems/anchorfill/pkg/inference"
)

// Server serves the JSON API.
type Server struct {
	holder       *catalog.Holder
	engine       *inference.Engine
	store        *archive.Store
	profile      string
	maxQuestions int
	logger       *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithArchive records predictions in store and enables /v1/runs.
func WithArchive(store *archive.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxQuestions sets the default anchor selection size.
func WithMaxQuestions(n int) Option {
	return func(s *Server) {
		s.maxQuestions = n
	}
}

// WithDefaultsProfile names the defaults profile the engine was built
// with; it is part of each archived run's input hash.
func WithDefaultsProfile(name string) Option {
	return func(s *Server) {
		s.profile = name
	}
}

// New creates a server reading the catalog from holder.
func New(holder *catalog.Holder, engine *inference.Engine, opts ...Option) *Server {
	s := &Server{
		holder: holder,
		engine: engine,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.health).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/catalog", s.getCatalog).Methods("GET")
	v1.HandleFunc("/catalog/questions/{id}", s.getQuestion).Methods("GET")
	v1.HandleFunc("/anchors", s.selectAnchors).Methods("POST")
	v1.HandleFunc("/predict", s.predict).Methods("POST")
	v1.HandleFunc("/rules", s.listRules).Methods("GET")
	v1.HandleFunc("/runs", s.listRuns).Methods("GET")
	v1.HandleFunc("/runs/{id}", s.getRun).Methods("GET")

	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
