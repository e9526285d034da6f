package service

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gatepass/internal/oidc/models"
	"gatepass/internal/oidc/provider"
	"gatepass/internal/platform/config"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/requestcontext"
)

// CompleteCallback finishes a verification attempt: it resolves the handshake
// session, exchanges the authorization code, verifies the ID token, fetches
// the userinfo document, and returns the normalized profile.
//
// The session is consumed only after a successful exchange, so a visitor
// whose exchange failed transiently can retry the same callback once before
// the session expires.
func (s *Service) CompleteCallback(ctx context.Context, state, code string) (*models.UserProfile, error) {
	if state == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "state is required")
	}
	if code == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "code is required")
	}

	start := time.Now()
	now := requestcontext.Now(ctx)

	session, err := s.sessions.Resolve(ctx, state, now)
	if err != nil {
		s.incrementFailed("resolve_session")
		return nil, translateSessionErr(err)
	}

	clientAssertion, err := s.signer.Sign(now)
	if err != nil {
		s.incrementFailed("sign_assertion")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign client assertion")
	}

	tokens, err := s.provider.ExchangeCode(ctx, provider.TokenRequest{
		Code:                code,
		RedirectURI:         s.cfg.RedirectURI,
		ClientID:            s.cfg.ClientID,
		ClientAssertionType: s.cfg.ClientAssertionType,
		ClientAssertion:     clientAssertion,
		CodeVerifier:        session.CodeVerifier,
	})
	if err != nil {
		s.incrementFailed("token_exchange")
		return nil, translateProviderErr(err, "token exchange failed")
	}

	// The code is spent; the session has done its job. A failed consume only
	// means the sweeper removes it later.
	if err := s.sessions.Consume(ctx, state); err != nil {
		s.logger.WarnContext(ctx, "failed to consume auth session", "error", err)
	}

	if tokens.IDToken != "" {
		if err := s.verifyIDToken(ctx, tokens.IDToken, now); err != nil {
			s.incrementFailed("verify_id_token")
			return nil, err
		}
	}

	rawUserinfo, err := s.provider.FetchUserInfo(ctx, tokens.AccessToken)
	if err != nil {
		s.incrementFailed("fetch_userinfo")
		return nil, translateProviderErr(err, "userinfo fetch failed")
	}

	claims, err := s.decodeUserinfo(ctx, rawUserinfo)
	if err != nil {
		s.incrementFailed("decode_userinfo")
		return nil, err
	}

	profile := normalizeClaims(claims)
	if profile.FaydaID == "" {
		s.incrementFailed("decode_userinfo")
		return nil, dErrors.New(dErrors.CodeUpstream, "userinfo carried no subject")
	}

	s.incrementCompleted()
	if s.metrics != nil {
		s.metrics.ObserveCallback(start)
	}
	s.logger.InfoContext(ctx, "verification flow completed")
	return profile, nil
}

// translateProviderErr maps outbound failures to upstream errors, preserving
// the provider's error_description when it sent one.
func translateProviderErr(err error, msg string) error {
	var perr *provider.Error
	if errors.As(err, &perr) && perr.Description != "" {
		return dErrors.Wrap(err, dErrors.CodeUpstream, msg+": "+perr.Description)
	}
	return dErrors.Wrap(err, dErrors.CodeUpstream, msg)
}

// verifyIDToken validates the ID token per the configured mode. Strict mode
// verifies the RS256 signature against the provider JWKS and fails on issuer
// mismatch; lenient mode decodes without signature verification and only
// warns on issuer mismatch.
func (s *Service) verifyIDToken(ctx context.Context, rawToken string, now time.Time) error {
	var claims jwt.MapClaims

	if s.cfg.Verification == config.VerificationStrict {
		parsed, err := jwt.ParseWithClaims(rawToken, jwt.MapClaims{}, func(token *jwt.Token) (any, error) {
			kid, _ := token.Header["kid"].(string)
			return s.providerKey(ctx, kid)
		}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithoutClaimsValidation())
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnauthorized, "ID token signature verification failed")
		}
		claims = parsed.Claims.(jwt.MapClaims)
	} else {
		parsed, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnauthorized, "malformed ID token")
		}
		claims = parsed.Claims.(jwt.MapClaims)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return dErrors.New(dErrors.CodeUnauthorized, "ID token carries no expiry")
	}
	if exp.Before(now) {
		return dErrors.New(dErrors.CodeExpired, "ID token expired")
	}

	aud, err := claims.GetAudience()
	if err != nil || !slices.Contains(aud, s.cfg.ClientID) {
		return dErrors.New(dErrors.CodeUnauthorized, "ID token audience mismatch")
	}

	if iss := claimString(claims, "iss"); iss != s.cfg.Issuer {
		if s.cfg.Verification == config.VerificationStrict {
			return dErrors.New(dErrors.CodeUnauthorized, "ID token issuer mismatch")
		}
		s.logger.WarnContext(ctx, "ID token issuer mismatch",
			"expected", s.cfg.Issuer,
			"got", iss,
		)
	}
	return nil
}

// decodeUserinfo turns the userinfo JWT into a claims map. Strict mode
// verifies its signature with the same provider keys as the ID token.
func (s *Service) decodeUserinfo(ctx context.Context, rawToken string) (jwt.MapClaims, error) {
	if s.cfg.Verification == config.VerificationStrict {
		parsed, err := jwt.ParseWithClaims(rawToken, jwt.MapClaims{}, func(token *jwt.Token) (any, error) {
			kid, _ := token.Header["kid"].(string)
			return s.providerKey(ctx, kid)
		}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithoutClaimsValidation())
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "userinfo signature verification failed")
		}
		return parsed.Claims.(jwt.MapClaims), nil
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "malformed userinfo document")
	}
	return parsed.Claims.(jwt.MapClaims), nil
}

// providerKey returns the provider's public key for a kid, fetching the JWKS
// on first use and refetching once when the kid is unknown (key rotation).
func (s *Service) providerKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.jwksMu.Lock()
	defer s.jwksMu.Unlock()

	if s.jwks != nil {
		if key, err := s.jwks.Find(kid); err == nil {
			return key.PublicKey()
		}
	}

	set, err := s.provider.FetchJWKS(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch provider JWKS: %w", err)
	}
	s.jwks = set

	key, err := set.Find(kid)
	if err != nil {
		return nil, fmt.Errorf("provider JWKS: %w", err)
	}
	return key.PublicKey()
}

// normalizeClaims maps the provider claim set onto the profile shape.
// The subject arrives as "fayda:XXXXXXXXXXXX"; the prefix is stripped. The
// display name prefers the unlocalized claim, then English, then Amharic.
func normalizeClaims(claims jwt.MapClaims) *models.UserProfile {
	name := claimString(claims, "name")
	if name == "" {
		name = claimString(claims, "name#en")
	}
	if name == "" {
		name = claimString(claims, "name#am")
	}

	return &models.UserProfile{
		FaydaID:   strings.TrimPrefix(claimString(claims, "sub"), "fayda:"),
		Name:      name,
		Picture:   claimString(claims, "picture"),
		Birthdate: claimString(claims, "birthdate"),
		Gender:    claimString(claims, "gender"),
		Email:     claimString(claims, "email"),
		Phone:     claimString(claims, "phone_number"),
		Address:   addressString(claims["address"]),
		NameEN:    claimString(claims, "name#en"),
		NameAM:    claimString(claims, "name#am"),
	}
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// addressString accepts both the plain-string form and the structured OIDC
// address claim, preferring its formatted member.
func addressString(v any) string {
	switch addr := v.(type) {
	case string:
		return addr
	case map[string]any:
		if formatted, ok := addr["formatted"].(string); ok {
			return formatted
		}
	}
	return ""
}
