package handler

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatepass/internal/host/models"
	id "gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/testutil"
)

type fakeHostService struct {
	createFunc     func(ctx context.Context, name, department string) (*models.Host, error)
	listFunc       func(ctx context.Context, activeOnly bool) ([]*models.Host, error)
	getFunc        func(ctx context.Context, hostID id.HostID) (*models.Host, error)
	deactivateFunc func(ctx context.Context, hostID id.HostID) (*models.Host, error)
	reactivateFunc func(ctx context.Context, hostID id.HostID) (*models.Host, error)
}

func (f *fakeHostService) CreateHost(ctx context.Context, name, department string) (*models.Host, error) {
	return f.createFunc(ctx, name, department)
}

func (f *fakeHostService) ListHosts(ctx context.Context, activeOnly bool) ([]*models.Host, error) {
	return f.listFunc(ctx, activeOnly)
}

func (f *fakeHostService) GetHost(ctx context.Context, hostID id.HostID) (*models.Host, error) {
	return f.getFunc(ctx, hostID)
}

func (f *fakeHostService) DeactivateHost(ctx context.Context, hostID id.HostID) (*models.Host, error) {
	return f.deactivateFunc(ctx, hostID)
}

func (f *fakeHostService) ReactivateHost(ctx context.Context, hostID id.HostID) (*models.Host, error) {
	return f.reactivateFunc(ctx, hostID)
}

func newHostRouter(service Service) http.Handler {
	r := chi.NewRouter()
	New(service, slog.Default()).Register(r)
	return r
}

func sampleHost() *models.Host {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return &models.Host{
		ID:         id.NewHostID(),
		Name:       "Sara Tesfaye",
		Department: "Engineering",
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestHandleCreate(t *testing.T) {
	t.Run("creates the host and returns 201", func(t *testing.T) {
		router := newHostRouter(&fakeHostService{
			createFunc: func(_ context.Context, name, department string) (*models.Host, error) {
				assert.Equal(t, "Sara Tesfaye", name)
				assert.Equal(t, "Engineering", department)
				return sampleHost(), nil
			},
		})

		req := testutil.NewJSONRequest(t, http.MethodPost, "/hosts/", map[string]string{
			"name":       "Sara Tesfaye",
			"department": "Engineering",
		})
		rr := testutil.DoRequest(router, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		resp := testutil.UnmarshalResponse[models.Host](t, rr)
		assert.True(t, resp.Active)
	})

	t.Run("maps a too-short name to 400", func(t *testing.T) {
		router := newHostRouter(&fakeHostService{
			createFunc: func(context.Context, string, string) (*models.Host, error) {
				return nil, dErrors.New(dErrors.CodeInvalidInput, "host name must be at least 2 characters")
			},
		})

		req := testutil.NewJSONRequest(t, http.MethodPost, "/hosts/", map[string]string{"name": "S"})
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
	})
}

func TestHandleHostList(t *testing.T) {
	t.Run("passes the active filter through", func(t *testing.T) {
		router := newHostRouter(&fakeHostService{
			listFunc: func(_ context.Context, activeOnly bool) ([]*models.Host, error) {
				assert.True(t, activeOnly)
				return []*models.Host{sampleHost()}, nil
			},
		})

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/hosts/?active=true"))

		require.Equal(t, http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[[]*models.Host](t, rr)
		assert.Len(t, *resp, 1)
	})

	t.Run("empty directory returns an empty array, not null", func(t *testing.T) {
		router := newHostRouter(&fakeHostService{
			listFunc: func(context.Context, bool) ([]*models.Host, error) {
				return nil, nil
			},
		})

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/hosts/"))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, "[]", rr.Body.String())
	})
}

func TestHandleHostGet(t *testing.T) {
	t.Run("returns the host", func(t *testing.T) {
		host := sampleHost()
		router := newHostRouter(&fakeHostService{
			getFunc: func(_ context.Context, hostID id.HostID) (*models.Host, error) {
				assert.Equal(t, host.ID, hostID)
				return host, nil
			},
		})

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/hosts/"+host.ID.String()))

		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("rejects a malformed id", func(t *testing.T) {
		router := newHostRouter(&fakeHostService{})

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/hosts/not-a-uuid"))

		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
	})

	t.Run("maps an unknown host to 404", func(t *testing.T) {
		router := newHostRouter(&fakeHostService{
			getFunc: func(context.Context, id.HostID) (*models.Host, error) {
				return nil, dErrors.New(dErrors.CodeNotFound, "host not found")
			},
		})

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/hosts/"+id.NewHostID().String()))

		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})
}

func TestHandleLifecycle(t *testing.T) {
	t.Run("deactivate returns the updated host", func(t *testing.T) {
		host := sampleHost()
		host.Active = false
		router := newHostRouter(&fakeHostService{
			deactivateFunc: func(context.Context, id.HostID) (*models.Host, error) {
				return host, nil
			},
		})

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, "/hosts/"+host.ID.String()+"/deactivate"))

		require.Equal(t, http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[models.Host](t, rr)
		assert.False(t, resp.Active)
	})

	t.Run("reactivating an active host conflicts", func(t *testing.T) {
		router := newHostRouter(&fakeHostService{
			reactivateFunc: func(context.Context, id.HostID) (*models.Host, error) {
				return nil, dErrors.New(dErrors.CodeConflict, "host is already active")
			},
		})

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, "/hosts/"+id.NewHostID().String()+"/reactivate"))

		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
	})
}
