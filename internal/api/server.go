package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/shohag/smsrelay/internal/config"
	"github.com/shohag/smsrelay/internal/models"
)

// Instructions accepts decoded push data records.
type Instructions interface {
	HandleInstruction(ctx context.Context, data map[string]string) error
}

type QuotaReader interface {
	Snapshot(ctx context.Context) models.QuotaState
	Details(ctx context.Context) string
}

type Deps struct {
	Instructions Instructions
	Quota        QuotaReader
	// Signals receives telephony completion callbacks.
	Signals  chan<- models.Signal
	Gatherer prometheus.Gatherer
}

type Server struct {
	cfg    config.ServerConfig
	secret string
	deps   Deps
	router *chi.Mux
	log    zerolog.Logger
	http   *http.Server
}

func NewServer(cfg config.ServerConfig, ingress config.IngressConfig, deps Deps, log zerolog.Logger) *Server {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		cfg:    cfg,
		secret: ingress.Secret,
		deps:   deps,
		log:    log.With().Str("component", "api").Logger(),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(s.log))

	relayHandler := NewRelayHandler(s.deps.Instructions, s.deps.Signals, s.log)
	quotaHandler := NewQuotaHandler(s.deps.Quota)

	// Health and metrics: no signature
	r.Get("/health", quotaHandler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		if s.secret != "" {
			r.Use(SignatureMiddleware(s.secret, time.Now))
		}

		r.Post("/instructions", relayHandler.Instruction)
		r.Post("/telephony/{phase}", relayHandler.Telephony)
		r.Get("/quota", quotaHandler.Get)
	})

	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info().Str("addr", addr).Bool("signed", s.secret != "").Msg("starting HTTP server")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(timeout time.Duration) error {
	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
