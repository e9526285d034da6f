// Package models holds the OIDC handshake aggregates.
package models

import (
	"time"

	id "gatepass/pkg/domain"
)

// AuthMode selects how much identity data the flow requests.
type AuthMode string

const (
	// AuthModeFull requests the profile attributes needed for a visitor
	// badge: name, phone, email, picture, gender, birthdate.
	AuthModeFull AuthMode = "full"
	// AuthModeYesNo requests only a bare openid verification: the provider
	// confirms the person controls the identity, nothing more.
	AuthModeYesNo AuthMode = "yes_no"
)

// AuthSession is the ephemeral per-attempt handshake state. It lives from
// initiate until the code exchange consumes it, or until the expiry sweep
// removes it.
//
// Invariants:
//   - at most one live session per State
//   - consumed exactly once: by a successful exchange or by the sweep
type AuthSession struct {
	State        string        `json:"state"`
	FaydaID      id.FaydaID    `json:"fayda_id"`
	CodeVerifier string        `json:"code_verifier"`
	CreatedAt    time.Time     `json:"created_at"`
	ExpiresAt    time.Time     `json:"expires_at"`
}

// IsExpired reports whether the session is past its validity window.
func (s *AuthSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// InitiateResult is returned by Initiate: the caller redirects the visitor
// to AuthorizationURL and later correlates the callback via State.
type InitiateResult struct {
	AuthorizationURL string `json:"auth_url"`
	State            string `json:"state"`
}

// TokenResponse is the token endpoint's success body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
}

// UserProfile is the normalized outcome of a completed verification.
// All fields default to empty strings; absence of a claim is never fatal.
type UserProfile struct {
	FaydaID   string `json:"fayda_id"`
	Name      string `json:"name"`
	Picture   string `json:"picture"`
	Birthdate string `json:"birthdate"`
	Gender    string `json:"gender"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	NameEN    string `json:"name_en"`
	NameAM    string `json:"name_am"`
}
