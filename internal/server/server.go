// Package server exposes the pipeline service over HTTP.
//
// Endpoints accept multipart forms and answer with JSON. Failures are
// reported as {"error": message} with 400 for bad input, 404 for unknown
// files or templates, 501 when image rendering is disabled and 500 for
// everything else.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/matzehuels/sheetblocks/pkg/pipeline"
)

// Options configures the HTTP server.
type Options struct {
	Addr            string
	MaxUploadBytes  int64
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

const defaultMaxUpload = 32 << 20

// Server serves the API for one pipeline service.
type Server struct {
	svc    *pipeline.Service
	opts   Options
	logger *log.Logger
	router chi.Router
}

// New creates a server. Zero options fall back to ":8000", 32 MiB uploads,
// any CORS origin and a 10s shutdown timeout.
func New(svc *pipeline.Service, opts Options, logger *log.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8000"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{svc: svc, opts: opts, logger: logger}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Post("/upload/", s.handleUpload)
	r.Post("/annotate/", s.handleAnnotate)
	r.Post("/save_template/", s.handleSaveTemplate)
	r.Get("/load_template/{template_id}", s.handleLoadTemplate)
	r.Post("/apply_template/", s.handleApplyTemplate)
	r.Post("/export_csv/", s.handleExport)
	r.Post("/batch_process/", s.handleBatch)

	r.Get("/templates/", s.handleListTemplates)
	r.Get("/layout/{file_id}/{filename}", s.handleLayout)
	r.Get("/layout/{file_id}/{filename}/image", s.handleImage)

	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "timeout", s.opts.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
