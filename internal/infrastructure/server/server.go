// Package server is the HTTP proxy between the background and the model
// provider. It answers chat requests with a UI message stream over SSE.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog"
	"golang.org/x/time/rate"

	"zenix/internal/application/port/input"
	"zenix/internal/application/port/output"
	"zenix/internal/domain/fault"
	"zenix/internal/infrastructure/metrics"
)

const (
	StreamRoute    = "/api/ai/stream"
	AIHealthRoute  = "/api/ai/health"
	HealthRoute    = "/health"
	MetricsRoute   = "/metrics"
	PanelRoute     = "/ws/panel"
	shutdownPeriod = 10 * time.Second
)

type Config struct {
	Addr         string `yaml:"addr" split_words:"true"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" split_words:"true"`
	// RateLimit is the number of stream requests per second across all callers.
	RateLimit float64 `yaml:"rate_limit" split_words:"true"`
	RateBurst int     `yaml:"rate_burst" split_words:"true"`
	LogJSON   bool    `yaml:"log_json" split_words:"true"`
}

func DefaultConfig() Config {
	return Config{
		Addr:         ":3000",
		MaxBodyBytes: 10 << 20,
		RateLimit:    5,
		RateBurst:    10,
	}
}

type Server struct {
	cfg      Config
	streamer input.ChatStreamer
	metrics  *metrics.Metrics
	logger   output.LoggerPort
	limiter  *rate.Limiter
	panel    http.Handler
	router   chi.Router
	now      func() time.Time
}

type Option func(*Server)

// WithPanelBridge mounts a websocket endpoint for remote panels.
func WithPanelBridge(h http.Handler) Option {
	return func(s *Server) { s.panel = h }
}

func New(cfg Config, streamer input.ChatStreamer, m *metrics.Metrics, logger output.LoggerPort, opts ...Option) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}

	s := &Server{
		cfg:      cfg,
		streamer: streamer,
		metrics:  m,
		logger:   logger.WithField("component", "server"),
		limiter:  rate.NewLimiter(limit, cfg.RateBurst),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	accessLog := httplog.NewLogger("zenix", httplog.Options{
		JSON:    s.cfg.LogJSON,
		Concise: true,
	})
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(accessLog))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept", "Authorization", "Cache-Control", "X-Requested-With"},
		MaxAge:         300,
	}))
	r.Use(s.observe)

	r.Get(HealthRoute, s.handleHealth)
	r.Route("/api/ai", func(r chi.Router) {
		r.Get("/health", s.handleAIHealth)
		r.With(s.rateLimit).Post("/stream", s.handleStream)
	})
	r.Handle(MetricsRoute, s.metrics.Handler())
	if s.panel != nil {
		r.Handle(PanelRoute, s.panel)
	}
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Zenix AI Server running", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
	defer cancel()
	s.logger.Info("Shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveRequest(route, status, time.Since(start))
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.metrics.RateLimited.Inc()
			writeError(w, http.StatusTooManyRequests, fault.MsgRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
