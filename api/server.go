// Package api contains the optional HTTP server exposing metrics and probes
// while a freeze is running
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type HTTPServerConfig struct {
	ListenAddr string
	Log        *zap.SugaredLogger

	// Status returns the progress document served on /status, optional
	Status func() any

	GracefulShutdownDuration time.Duration
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
}

type Server struct {
	cfg     *HTTPServerConfig
	isReady atomic.Bool
	log     *zap.SugaredLogger

	srv *http.Server
}

func New(cfg *HTTPServerConfig) (srv *Server) {
	srv = &Server{ //nolint:exhaustruct
		cfg: cfg,
		log: cfg.Log,
		srv: nil,
	}

	srv.srv = &http.Server{ //nolint:exhaustruct
		Addr:         cfg.ListenAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return srv
}

// Handler returns the router, also used by tests
func (s *Server) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(s.httpLogger)
	mux.Get("/metrics", s.handleMetrics)
	mux.Get("/status", s.handleStatus)
	mux.HandleFunc("/livez", s.handleLivez)
	mux.HandleFunc("/readyz", s.handleReadyz)
	return mux
}

func (s *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareZap(s.log.Desugar(), next)
}

// SetReady flips /readyz, e.g. once the RPC endpoint answered
func (s *Server) SetReady(ready bool) {
	s.isReady.Store(ready)
}

func (s *Server) RunInBackground() {
	go func() {
		s.log.With("listenAddress", s.cfg.ListenAddr).Info("Starting HTTP server")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.With("err", err).Error("HTTP server failed")
		}
	}()
}

func (s *Server) Shutdown() {
	s.SetReady(false)
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.With("err", err).Error("Graceful HTTP server shutdown failed")
	} else {
		s.log.Info("HTTP server gracefully stopped")
	}
}
