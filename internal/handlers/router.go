package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/ukydev/road-vision/internal/auth"
	"github.com/ukydev/road-vision/internal/gateway"
	"github.com/ukydev/road-vision/internal/hub"
	"github.com/ukydev/road-vision/internal/middleware"
)

// RouterConfig collects what the HTTP surface needs.
type RouterConfig struct {
	Gateway  *gateway.Gateway
	Registry *hub.Registry
	// Auth protects write routes when set.
	Auth *auth.Service
	// RateLimiter throttles API routes when set.
	RateLimiter *middleware.RateLimitMiddleware
	// Gatherer backs GET /metrics when set.
	Gatherer prometheus.Gatherer
	Logger   logrus.FieldLogger
}

// NewRouter wires every route and returns the root handler together with the
// subscription handler, which the caller closes on shutdown.
func NewRouter(cfg RouterConfig) (http.Handler, *SubscriptionHandler) {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	records := NewProcessedAgentDataHandler(cfg.Gateway, logger)
	subs := NewSubscriptionHandler(cfg.Registry, logger)

	api := func(h http.Handler) http.Handler {
		if cfg.RateLimiter != nil {
			return cfg.RateLimiter.RateLimit(h)
		}
		return h
	}
	write := func(h http.HandlerFunc) http.Handler {
		if cfg.Auth == nil {
			return api(h)
		}
		authMw := middleware.NewAuthMiddleware(cfg.Auth)
		return api(authMw.Authenticate(authMw.RequirePermission("write_records")(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /processed_agent_data/{$}", write(records.Create))
	mux.Handle("GET /processed_agent_data/{$}", api(http.HandlerFunc(records.List)))
	mux.Handle("GET /processed_agent_data/{id}", api(http.HandlerFunc(records.Get)))
	mux.Handle("PUT /processed_agent_data/{id}", write(records.Update))
	mux.Handle("DELETE /processed_agent_data/{id}", write(records.Delete))
	mux.HandleFunc("GET /ws/{user_id}", subs.Subscribe)
	mux.HandleFunc("GET /health", Health(cfg.Gateway))

	if cfg.Auth != nil {
		mux.Handle("POST /api/auth/login", api(http.HandlerFunc(NewAuthHandler(cfg.Auth, logger).Login)))
	}
	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	return middleware.RequestLogger(logger)(mux), subs
}
