package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/esledger/internal/adapter/http/handler"
	"github.com/iho/esledger/internal/adapter/http/middleware"
	"github.com/iho/esledger/internal/infrastructure/metrics"
)

// RouterConfig holds dependencies for the router. Optional parts are
// skipped when nil.
type RouterConfig struct {
	AccountHandler  *handler.AccountHandler
	TransferHandler *handler.TransferHandler
	BalanceHandler  *handler.BalanceHandler
	HealthHandler   *handler.HealthHandler

	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Idempotency *middleware.IdempotencyMiddleware
	RateLimiter *middleware.RateLimiter
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Limit)
		}
		// Idempotency middleware for mutating requests
		if cfg.Idempotency != nil {
			r.Use(cfg.Idempotency.Wrap)
		}

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", cfg.AccountHandler.Register)

			r.Group(func(r chi.Router) {
				r.Use(middleware.AccountContext)

				r.Get("/{id}", cfg.AccountHandler.Get)
				r.Get("/{id}/events", cfg.AccountHandler.ListEvents)
				r.Post("/{id}/credits", cfg.AccountHandler.Provision)
				r.Post("/{id}/withdrawals", cfg.AccountHandler.Withdraw)

				r.Post("/{id}/transfers", cfg.TransferHandler.Request)
				r.Delete("/{id}/transfers/{transferID}", cfg.TransferHandler.Cancel)

				if cfg.BalanceHandler != nil {
					r.Get("/{id}/balance", cfg.BalanceHandler.Get)
					r.Get("/{id}/reconciliation", cfg.BalanceHandler.Check)
					r.Post("/{id}/reconciliation", cfg.BalanceHandler.Repair)
				}
			})
		})
	})

	return r
}
