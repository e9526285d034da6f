// Package httpapi assembles the service's HTTP surface.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	hosthandler "gatepass/internal/host/handler"
	oidchandler "gatepass/internal/oidc/handler"
	"gatepass/internal/platform/metrics"
	"gatepass/internal/platform/middleware"
	visithandler "gatepass/internal/visit/handler"
	"gatepass/pkg/platform/httputil"
	"gatepass/pkg/platform/middleware/requestid"
	"gatepass/pkg/platform/middleware/requesttime"
)

// HealthChecker reports whether a backing store is reachable.
type HealthChecker func(ctx context.Context) error

// Deps are the wired feature handlers and cross-cutting pieces the router
// mounts.
type Deps struct {
	OIDC    *oidchandler.Handler
	Visits  *visithandler.Handler
	Hosts   *hosthandler.Handler
	Metrics *metrics.HTTP
	// InitiateLimit guards POST /auth/initiate. Nil disables limiting.
	InitiateLimit *middleware.RateLimiter
	// Health checks run on /healthz, keyed by dependency name.
	Health map[string]HealthChecker
}

// NewRouter builds the chi router with the standard middleware stack.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Get("/healthz", healthHandler(deps.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// The initiate endpoint is the only one that accepts an unauthenticated
	// claimed identifier, so it alone carries the rate limit.
	if deps.InitiateLimit != nil {
		r.With(deps.InitiateLimit.Middleware).Post("/auth/initiate", deps.OIDC.HandleInitiate)
	} else {
		r.Post("/auth/initiate", deps.OIDC.HandleInitiate)
	}
	r.Post("/auth/callback", deps.OIDC.HandleCallback)

	deps.Visits.Register(r)
	deps.Hosts.Register(r)

	return r
}

func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
			} else {
				body[name] = "ok"
			}
		}
		httputil.WriteJSON(w, status, body)
	}
}
