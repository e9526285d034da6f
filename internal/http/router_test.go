package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hosthandler "gatepass/internal/host/handler"
	hostservice "gatepass/internal/host/service"
	hoststore "gatepass/internal/host/store/host"
	oidchandler "gatepass/internal/oidc/handler"
	oidcmodels "gatepass/internal/oidc/models"
	"gatepass/internal/platform/middleware"
	visithandler "gatepass/internal/visit/handler"
	visitservice "gatepass/internal/visit/service"
	visitstore "gatepass/internal/visit/store/visit"
	"gatepass/pkg/testutil"
)

type stubFlowService struct{}

func (stubFlowService) Initiate(context.Context, string, oidcmodels.AuthMode) (*oidcmodels.InitiateResult, error) {
	return &oidcmodels.InitiateResult{AuthorizationURL: "https://esignet.example/authorize", State: "st_1"}, nil
}

func (stubFlowService) CompleteCallback(context.Context, string, string) (*oidcmodels.UserProfile, error) {
	return &oidcmodels.UserProfile{FaydaID: "612345678901"}, nil
}

func newTestRouter(deps Deps) http.Handler {
	logger := slog.Default()
	if deps.OIDC == nil {
		deps.OIDC = oidchandler.New(stubFlowService{}, logger)
	}
	if deps.Hosts == nil || deps.Visits == nil {
		hosts := hostservice.New(hoststore.NewInMemory(), logger)
		visits := visitservice.New(visitstore.NewInMemory(), hosts, visitservice.WithLogger(logger))
		deps.Hosts = hosthandler.New(hosts, logger)
		deps.Visits = visithandler.New(visits, logger)
	}
	return NewRouter(deps)
}

func TestHealthz(t *testing.T) {
	t.Run("reports ok with no checks", func(t *testing.T) {
		router := newTestRouter(Deps{})

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))

		require.Equal(t, http.StatusOK, rr.Code)
		body := testutil.UnmarshalErrorResponse(t, rr)
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("reports each dependency", func(t *testing.T) {
		router := newTestRouter(Deps{
			Health: map[string]HealthChecker{
				"postgres": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return errors.New("connection refused") },
			},
		})

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))

		require.Equal(t, http.StatusServiceUnavailable, rr.Code)
		body := testutil.UnmarshalErrorResponse(t, rr)
		assert.Equal(t, "degraded", body["status"])
		assert.Equal(t, "ok", body["postgres"])
		assert.Contains(t, body["redis"], "connection refused")
	})
}

func TestRouterWiring(t *testing.T) {
	router := newTestRouter(Deps{})

	t.Run("assigns a request id", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
	})

	t.Run("flow endpoints are mounted", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/initiate",
			map[string]string{"fayda_id": "612345678901"}))
		require.Equal(t, http.StatusOK, rr.Code)

		rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/callback",
			map[string]string{"state": "st_1", "code": "c"}))
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("register and directory endpoints are mounted", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/visits/"))
		require.Equal(t, http.StatusOK, rr.Code)

		rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/hosts/"))
		require.Equal(t, http.StatusOK, rr.Code)

		rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/dashboard/stats"))
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("metrics endpoint is exposed", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
		require.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestInitiateRateLimit(t *testing.T) {
	router := newTestRouter(Deps{
		InitiateLimit: middleware.NewRateLimiter(1, 2),
	})

	initiate := func() int {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/initiate",
			map[string]string{"fayda_id": "612345678901"})
		req.RemoteAddr = "203.0.113.7:40000"
		return testutil.DoRequest(router, req).Code
	}

	assert.Equal(t, http.StatusOK, initiate())
	assert.Equal(t, http.StatusOK, initiate())
	assert.Equal(t, http.StatusTooManyRequests, initiate(), "third request exceeds the burst")

	t.Run("other clients are unaffected", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/initiate",
			map[string]string{"fayda_id": "612345678901"})
		req.RemoteAddr = "198.51.100.9:40000"
		assert.Equal(t, http.StatusOK, testutil.DoRequest(router, req).Code)
	})

	t.Run("callback is not limited", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/callback",
			map[string]string{"state": "st_1", "code": "c"})
		req.RemoteAddr = "203.0.113.7:40000"
		assert.Equal(t, http.StatusOK, testutil.DoRequest(router, req).Code)
	})
}
