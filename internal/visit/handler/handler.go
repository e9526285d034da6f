// Package handler wires the visit register endpoints to the visit service.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gatepass/internal/visit/models"
	"gatepass/internal/visit/service"
	id "gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/httputil"
	"gatepass/pkg/requestcontext"
)

// Service defines the register operations the handler exposes.
type Service interface {
	CheckIn(ctx context.Context, params service.CheckInParams) (*models.VisitRecord, error)
	FindActive(ctx context.Context, faydaID, visitID string) (*models.VisitRecord, error)
	CheckOut(ctx context.Context, faydaID, visitID string) (*models.VisitRecord, error)
	ForceCheckOut(ctx context.Context, visitID string) (*models.VisitRecord, error)
	ListVisits(ctx context.Context, query service.ListQuery) ([]*models.VisitRecord, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// Handler exposes the visit register over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a visit handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the register endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/visits", func(r chi.Router) {
		r.Post("/checkin", h.HandleCheckIn)
		r.Post("/find-active", h.HandleFindActive)
		r.Post("/checkout", h.HandleCheckOut)
		r.Post("/force-checkout", h.HandleForceCheckOut)
		r.Get("/", h.HandleList)
	})
	r.Get("/dashboard/stats", h.HandleStats)
}

// CheckInRequest is the POST /visits/checkin body. FaydaID and Name come
// from the completed verification flow on the client side.
type CheckInRequest struct {
	FaydaID  string            `json:"fayda_id"`
	Name     string            `json:"name"`
	PhotoURL string            `json:"photo_url"`
	HostID   string            `json:"host_id"`
	Reason   string            `json:"reason"`
	Extra    map[string]string `json:"extra"`
}

// LookupRequest identifies an open visit by subject or by visit ID. It is
// shared by find-active and checkout.
type LookupRequest struct {
	FaydaID string `json:"fayda_id"`
	VisitID string `json:"visit_id"`
}

// ForceCheckOutRequest is the POST /visits/force-checkout body.
type ForceCheckOutRequest struct {
	VisitID string `json:"visit_id"`
}

// HandleCheckIn handles POST /visits/checkin requests.
func (h *Handler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CheckInRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	hostID, err := id.ParseHostID(req.HostID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.service.CheckIn(ctx, service.CheckInParams{
		FaydaID:  req.FaydaID,
		Name:     req.Name,
		PhotoURL: req.PhotoURL,
		HostID:   hostID,
		Reason:   req.Reason,
		Extra:    req.Extra,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "check-in failed",
			"request_id", requestID,
			"host_id", req.HostID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, record)
}

// HandleFindActive handles POST /visits/find-active requests.
func (h *Handler) HandleFindActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LookupRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.FindActive(ctx, req.FaydaID, req.VisitID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.WarnContext(ctx, "active visit lookup failed",
				"request_id", requestID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, record)
}

// HandleCheckOut handles POST /visits/checkout requests.
func (h *Handler) HandleCheckOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LookupRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.CheckOut(ctx, req.FaydaID, req.VisitID)
	if err != nil {
		h.logger.WarnContext(ctx, "checkout failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, record)
}

// HandleForceCheckOut handles POST /visits/force-checkout requests.
func (h *Handler) HandleForceCheckOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ForceCheckOutRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.ForceCheckOut(ctx, req.VisitID)
	if err != nil {
		h.logger.WarnContext(ctx, "force checkout failed",
			"request_id", requestID,
			"visit_id", req.VisitID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "visit force-closed",
		"request_id", requestID,
		"visit_id", record.ID,
	)
	httputil.WriteJSON(w, http.StatusOK, record)
}

// HandleList handles GET /visits requests. Filters come in as query
// parameters: status, host_id, date_range, search.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	q := r.URL.Query()
	records, err := h.service.ListVisits(ctx, service.ListQuery{
		Status:    models.VisitStatus(q.Get("status")),
		HostID:    q.Get("host_id"),
		DateRange: q.Get("date_range"),
		Search:    q.Get("search"),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "visit listing failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	if records == nil {
		records = []*models.VisitRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

// HandleStats handles GET /dashboard/stats requests.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.service.Stats(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "dashboard stats failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, stats)
}
