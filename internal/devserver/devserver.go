// Package devserver implements a minimal static file server over a
// build's output tree: the thin concrete adapter that makes `kiln
// serve` runnable end to end. It is not a watch-mode rebuild loop —
// just chi.Router construction, a middleware stack, and a
// Start/Shutdown lifecycle around http.FileServer.
package devserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Server serves a built site's output directory over HTTP.
type Server struct {
	router  chi.Router
	addr    string
	httpSrv *http.Server
}

// NewServer builds a Server rooted at outputDir, listening on addr
// (e.g. "localhost:8080").
func NewServer(outputDir, addr string) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	fileServer := http.FileServer(http.Dir(outputDir))
	r.Handle("/*", fileServer)

	srv := &Server{
		router: r,
		addr:   addr,
	}
	srv.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}

// Router returns the underlying chi.Router, useful for tests that want
// to mount additional routes or exercise it without binding a socket.
func (s *Server) Router() chi.Router {
	return s.router
}

// Start begins listening for HTTP connections on the configured
// address. It blocks until the server is shut down or encounters a
// fatal error.
func (s *Server) Start() error {
	log.Info().Str("addr", s.addr).Msg("devserver: serving build output")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("devserver: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests
// to complete within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("devserver: request")
	})
}
