package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marque-app/marque/internal/config"
	"github.com/marque-app/marque/internal/httpserver/deps"
	"github.com/marque-app/marque/internal/httpserver/mw"
	"github.com/marque-app/marque/internal/httpserver/routes"
	"github.com/marque-app/marque/internal/logger"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	http    *http.Server
	logger  logger.Logger
	started time.Time
}

// New builds the HTTP server (router, middlewares, route registration).
func New(cfg *config.Config, loggerClient logger.Logger, d deps.Deps) *Server {
	r := chi.NewRouter()

	// --- Global middlewares (safe defaults)
	r.Use(middleware.GetHead)
	r.Use(middleware.RequestID)                   // X-Request-ID on each request
	r.Use(middleware.Recoverer)                   // never crash the process on panic
	r.Use(middleware.Timeout(cfg.RequestTimeout)) // per-request timeout
	r.Use(mw.Log(loggerClient))                   // structured access logs
	r.Use(mw.EnforceHost(cfg.AllowedHosts, loggerClient))

	// One limiter per surface: the public forwarding route gets a much
	// tighter budget than the API. Route files pick them off deps.
	d.APILimiter = mw.RateLimit(mw.RateLimitConfig{
		Burst:             cfg.APIBurst,
		RefillPerIPPerMin: cfg.APIPerMin,
		TrustProxy:        cfg.TrustProxy,
		KeyPrefix:         "api",
	}, d.RedisClient, loggerClient)
	d.ForwardLimiter = mw.RateLimit(mw.RateLimitConfig{
		Burst:             cfg.ForwardBurst,
		RefillPerIPPerMin: cfg.ForwardPerMin,
		TrustProxy:        cfg.TrustProxy,
		KeyPrefix:         "fwd",
	}, d.RedisClient, loggerClient)

	routes.RegisterAll(r, d)

	s := &http.Server{
		Addr:              cfg.ListenPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return &Server{
		http:    s,
		logger:  loggerClient,
		started: d.StartTime,
	}
}

// Start runs the HTTP server (blocks until error or shutdown).
func (s *Server) Start() error {
	s.logger.Infof("HTTP server listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	// http.ErrServerClosed is expected on graceful shutdown.
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server with the provided context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down...")
	return s.http.Shutdown(ctx)
}
