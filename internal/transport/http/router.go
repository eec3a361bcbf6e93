package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jwttoken "lifeline/internal/jwt_token"
	"lifeline/internal/platform/metrics"
	"lifeline/internal/platform/middleware"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck probes one dependency for /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RouterConfig carries the cross-cutting collaborators of the router.
type RouterConfig struct {
	Validator      middleware.TokenValidator
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	Readiness      []ReadinessCheck
}

// NewRouter wires every endpoint. Driver-facing routes (public details,
// code verification, location pings) are unauthenticated; the delivery code is
// the driver's credential.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Latency(cfg.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(cfg.Readiness, logger))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	staff := []string{jwttoken.RoleBloodBank, jwttoken.RoleAdmin}
	lab := []string{jwttoken.RoleLab, jwttoken.RoleBloodBank, jwttoken.RoleAdmin}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Use(middleware.ContentTypeJSON)

		r.Get("/requests/{id}/public", h.handlePublicDetails)
		r.Post("/requests/{id}/verify-code", h.handleVerifyCode)
		r.Post("/requests/{id}/location", h.handleLocation)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(cfg.Validator, logger))

			r.Route("/inventory", func(r chi.Router) {
				r.Use(middleware.RequireRole(logger, lab...))
				r.Post("/", h.handleCreateUnit)
				r.Get("/", h.handleListUnits)
				r.Get("/stats", h.handleStats)
				r.Get("/{id}", h.handleGetUnit)
			})

			r.Route("/lab", func(r chi.Router) {
				r.Use(middleware.RequireRole(logger, lab...))
				r.Get("/untested", h.handleUntested)
				r.Get("/safe", h.handleSeparable)
				r.Post("/results", h.handleTestResults)
				r.Post("/separate", h.handleSeparate)
			})

			r.Post("/requests", h.handleCreateRequest)
			r.Get("/requests", h.handleListRequests)
			r.Get("/requests/{id}", h.handleGetRequest)
			r.Put("/requests/{id}/payment", h.handleUpdatePayment)
			r.With(middleware.RequireRole(logger, staff...)).
				Put("/requests/{id}/status", h.handleUpdateStatus)
		})
	})
	return r
}

// readiness fails with 503 when any dependency check fails.
func readiness(checks []ReadinessCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "check", c.Name, "error", err)
				results[c.Name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[c.Name] = "ok"
		}
		state := "ready"
		if status != http.StatusOK {
			state = "not_ready"
		}
		writeJSON(w, status, map[string]any{"status": state, "checks": results})
	}
}
