// Package handler wires the verification flow endpoints to the flow service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"gatepass/internal/oidc/models"
	"gatepass/pkg/platform/httputil"
	"gatepass/pkg/requestcontext"
)

// Service defines the flow operations the handler exposes.
type Service interface {
	Initiate(ctx context.Context, faydaID string, mode models.AuthMode) (*models.InitiateResult, error)
	CompleteCallback(ctx context.Context, state, code string) (*models.UserProfile, error)
}

// Handler exposes the verification flow over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a flow handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// InitiateRequest is the POST /auth/initiate body.
type InitiateRequest struct {
	FaydaID string `json:"fayda_id"`
	Mode    string `json:"mode"`
}

// CallbackRequest is the POST /auth/callback body, carrying the query
// parameters the provider appended to the redirect URI.
type CallbackRequest struct {
	State string `json:"state"`
	Code  string `json:"code"`
}

// HandleInitiate handles POST /auth/initiate requests.
func (h *Handler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[InitiateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Initiate(ctx, req.FaydaID, models.AuthMode(req.Mode))
	if err != nil {
		h.logger.WarnContext(ctx, "verification initiate failed",
			"request_id", requestID,
			"mode", req.Mode,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleCallback handles POST /auth/callback requests.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[CallbackRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	profile, err := h.service.CompleteCallback(ctx, req.State, req.Code)
	if err != nil {
		h.logger.WarnContext(ctx, "verification callback failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "verification callback completed",
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, profile)
}
