// Package service orchestrates the VeriFayda verification flow: initiating
// the authorization redirect, completing the callback, and sweeping stale
// handshake sessions.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"gatepass/internal/oidc/assertion"
	oidcmetrics "gatepass/internal/oidc/metrics"
	"gatepass/internal/oidc/models"
	"gatepass/internal/oidc/provider"
	"gatepass/internal/platform/config"
	id "gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/jwk"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/requestcontext"
)

// SessionStore persists the per-attempt handshake state.
type SessionStore interface {
	Create(ctx context.Context, session *models.AuthSession) error
	Resolve(ctx context.Context, state string, now time.Time) (*models.AuthSession, error)
	Consume(ctx context.Context, state string) error
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// Provider is the outbound surface of the identity provider.
type Provider interface {
	ExchangeCode(ctx context.Context, req provider.TokenRequest) (*models.TokenResponse, error)
	FetchUserInfo(ctx context.Context, accessToken string) (string, error)
	FetchJWKS(ctx context.Context) (*jwk.Set, error)
}

// Service runs the verification flow.
type Service struct {
	cfg      config.OIDC
	sessions SessionStore
	provider Provider
	signer   *assertion.Signer
	logger   *slog.Logger
	metrics  *oidcmetrics.Metrics

	// jwksMu guards the cached provider key set used in strict verification.
	jwksMu sync.Mutex
	jwks   *jwk.Set
}

// Option configures optional service collaborators.
type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *oidcmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New builds the flow service. The signing key is parsed here so a
// misconfigured deployment fails at startup, not on the first visitor.
func New(cfg config.OIDC, sessions SessionStore, p Provider, opts ...Option) (*Service, error) {
	if cfg.ClientID == "" {
		return nil, dErrors.New(dErrors.CodeMisconfigured, "OIDC client id is required")
	}
	if cfg.PrivateKeyJWK == "" {
		return nil, dErrors.New(dErrors.CodeMisconfigured, "OIDC private key JWK is required")
	}
	signer, err := assertion.NewSigner(cfg.ClientID, cfg.TokenEndpoint, cfg.PrivateKeyJWK)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeMisconfigured, "invalid OIDC private key JWK")
	}

	s := &Service{
		cfg:      cfg,
		sessions: sessions,
		provider: p,
		signer:   signer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Initiate starts a verification attempt: it validates the FIN, generates the
// PKCE pair and state, persists the handshake session, and returns the
// provider authorization URL for the visitor's browser.
func (s *Service) Initiate(ctx context.Context, rawFaydaID string, mode models.AuthMode) (*models.InitiateResult, error) {
	faydaID, err := id.ParseFaydaID(rawFaydaID)
	if err != nil {
		return nil, err
	}
	if mode == "" {
		mode = models.AuthModeFull
	}
	if mode != models.AuthModeFull && mode != models.AuthModeYesNo {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "auth mode must be %q or %q", models.AuthModeFull, models.AuthModeYesNo)
	}

	verifier, challenge, err := assertion.GeneratePKCEPair()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate PKCE pair")
	}
	state, err := assertion.GenerateState()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate state")
	}

	now := requestcontext.Now(ctx)
	session := &models.AuthSession{
		State:        state,
		FaydaID:      faydaID,
		CodeVerifier: verifier,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.SessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store auth session")
	}

	authURL, err := s.buildAuthorizationURL(mode, state, challenge)
	if err != nil {
		return nil, err
	}

	s.incrementInitiated()
	s.logger.InfoContext(ctx, "verification flow initiated",
		"mode", string(mode),
		"session_expires_at", session.ExpiresAt,
	)
	return &models.InitiateResult{
		AuthorizationURL: authURL,
		State:            state,
	}, nil
}

// fullModeClaims is the userinfo claim request sent in full mode. Address is
// requested but not essential; visitors without a registered address can
// still check in.
type claimRequest struct {
	Essential bool `json:"essential"`
}

func fullModeClaims() map[string]any {
	return map[string]any{
		"userinfo": map[string]claimRequest{
			"name":         {Essential: true},
			"phone_number": {Essential: true},
			"email":        {Essential: true},
			"picture":      {Essential: true},
			"gender":       {Essential: true},
			"birthdate":    {Essential: true},
			"address":      {Essential: false},
		},
		"id_token": map[string]claimRequest{},
	}
}

func (s *Service) buildAuthorizationURL(mode models.AuthMode, state, challenge string) (string, error) {
	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {s.cfg.ClientID},
		"redirect_uri":          {s.cfg.RedirectURI},
		"state":                 {state},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
		"claims_locales":        {s.cfg.ClaimsLocales},
	}
	if mode == models.AuthModeYesNo {
		params.Set("scope", "openid")
	} else {
		params.Set("scope", "openid profile email")
		claims, err := json.Marshal(fullModeClaims())
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode claim request")
		}
		params.Set("claims", string(claims))
	}
	return s.cfg.AuthorizationEndpoint + "?" + params.Encode(), nil
}

// SweepExpired removes handshake sessions past their expiry and reports how
// many were removed.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	swept, err := s.sessions.SweepExpired(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sweep expired sessions")
	}
	if swept > 0 {
		s.logger.InfoContext(ctx, "swept expired auth sessions", "count", swept)
		if s.metrics != nil {
			s.metrics.AddSessionsSwept(swept)
		}
	}
	return swept, nil
}

func (s *Service) incrementInitiated() {
	if s.metrics != nil {
		s.metrics.IncrementInitiated()
	}
}

func (s *Service) incrementCompleted() {
	if s.metrics != nil {
		s.metrics.IncrementCompleted()
	}
}

func (s *Service) incrementFailed(stage string) {
	if s.metrics != nil {
		s.metrics.IncrementFailed(stage)
	}
}

// translateSessionErr converts store sentinel errors into flow errors.
func translateSessionErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeInvalidState, "unknown or already used state")
	case errors.Is(err, sentinel.ErrExpired):
		return dErrors.New(dErrors.CodeExpired, "verification session expired")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve auth session")
	}
}
