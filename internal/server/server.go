package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/haskel/raimetrics/internal/config"
	"github.com/haskel/raimetrics/internal/metric"
	"github.com/haskel/raimetrics/internal/recorder"
	"github.com/haskel/raimetrics/internal/server/middleware"
)

type Server struct {
	httpServer *http.Server
	recorder   *recorder.Recorder
	metrics    http.Handler
	config     *config.Config
	logger     *slog.Logger
	version    string
	authConfig *middleware.AuthConfig

	labelCodes  metric.Codebook
	labelColumn string
}

type Option func(*Server)

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLabelCodes encodes text prediction labels with the categories of the
// dataset label column.
func WithLabelCodes(codes metric.Codebook, column string) Option {
	return func(s *Server) {
		s.labelCodes = codes
		s.labelColumn = column
	}
}

func New(cfg *config.Config, rec *recorder.Recorder, logger *slog.Logger, version string, opts ...Option) *Server {
	authConfig := &middleware.AuthConfig{
		Enabled:  cfg.Auth.Enabled,
		User:     cfg.Auth.User,
		Password: cfg.Auth.Password,
	}

	s := &Server{
		recorder:   rec,
		config:     cfg,
		logger:     logger,
		version:    version,
		authConfig: authConfig,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := s.setupRoutes()

	handler := middleware.Chain(
		mux,
		middleware.Recovery(logger),
		middleware.Logging(logger),
		middleware.SecurityHeaders(),
		middleware.PerIPRateLimit(&middleware.PerIPRateLimitConfig{
			Enabled:           cfg.Server.RateLimit.Enabled,
			RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
			Burst:             cfg.Server.RateLimit.Burst,
		}),
		middleware.MaxBody(cfg.Server.MaxBodyBytes),
		middleware.Auth(authConfig, "/health", "/debug/pprof/*"),
	)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port)),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// ReloadConfig applies the settings that can change at runtime. Host, port,
// the session and its publishers require a restart.
func (s *Server) ReloadConfig(cfg *config.Config) {
	s.logger.Info("reloading configuration")

	s.authConfig.Update(cfg.Auth.Enabled, cfg.Auth.User, cfg.Auth.Password)
	s.config = cfg

	s.logger.Info("configuration reloaded",
		"auth_enabled", cfg.Auth.Enabled,
	)
}

func (s *Server) Start() error {
	s.logger.Info("server starting",
		"addr", s.httpServer.Addr,
		"system", s.recorder.System().Name(),
	)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
