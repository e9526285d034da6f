// Package handler wires the host directory endpoints to the host service.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gatepass/internal/host/models"
	id "gatepass/pkg/domain"
	"gatepass/pkg/platform/httputil"
	"gatepass/pkg/requestcontext"
)

// Service defines the host directory operations the handler exposes.
type Service interface {
	CreateHost(ctx context.Context, name, department string) (*models.Host, error)
	ListHosts(ctx context.Context, activeOnly bool) ([]*models.Host, error)
	GetHost(ctx context.Context, hostID id.HostID) (*models.Host, error)
	DeactivateHost(ctx context.Context, hostID id.HostID) (*models.Host, error)
	ReactivateHost(ctx context.Context, hostID id.HostID) (*models.Host, error)
}

// Handler exposes the host directory over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a host handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts host endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/hosts", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{hostID}", h.HandleGet)
		r.Post("/{hostID}/deactivate", h.HandleDeactivate)
		r.Post("/{hostID}/reactivate", h.HandleReactivate)
	})
}

// CreateRequest is the POST /hosts body.
type CreateRequest struct {
	Name       string `json:"name"`
	Department string `json:"department"`
}

// HandleCreate handles POST /hosts requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	host, err := h.service.CreateHost(ctx, req.Name, req.Department)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, host)
}

// HandleList handles GET /hosts requests. ?active=true restricts the listing
// to hosts who can currently receive visitors.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	hosts, err := h.service.ListHosts(r.Context(), activeOnly)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if hosts == nil {
		hosts = []*models.Host{}
	}
	httputil.WriteJSON(w, http.StatusOK, hosts)
}

// HandleGet handles GET /hosts/{hostID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	hostID, err := id.ParseHostID(chi.URLParam(r, "hostID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	host, err := h.service.GetHost(r.Context(), hostID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, host)
}

// HandleDeactivate handles POST /hosts/{hostID}/deactivate requests.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.DeactivateHost)
}

// HandleReactivate handles POST /hosts/{hostID}/reactivate requests.
func (h *Handler) HandleReactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ReactivateHost)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, id.HostID) (*models.Host, error)) {
	hostID, err := id.ParseHostID(chi.URLParam(r, "hostID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	host, err := op(r.Context(), hostID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, host)
}
