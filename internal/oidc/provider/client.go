// Package provider is the outbound HTTP client for the VeriFayda (eSignet)
// identity provider: token exchange, userinfo fetch, and JWKS retrieval.
// All calls run under a bounded timeout and never hold locks.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gatepass/internal/oidc/models"
	"gatepass/internal/platform/config"
	"gatepass/pkg/jwk"
)

// Error is a non-success outcome from a provider endpoint. The provider's
// error_description is preserved when the body carries one.
type Error struct {
	Endpoint    string
	Status      int
	Code        string
	Description string
}

func (e *Error) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s returned %d: %s", e.Endpoint, e.Status, e.Description)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s returned %d: %s", e.Endpoint, e.Status, e.Code)
	}
	return fmt.Sprintf("%s returned %d", e.Endpoint, e.Status)
}

// TokenRequest carries the authorization_code grant parameters.
type TokenRequest struct {
	Code                string
	RedirectURI         string
	ClientID            string
	ClientAssertionType string
	ClientAssertion     string
	CodeVerifier        string
}

// Client talks to the provider's token, userinfo, and JWKS endpoints.
type Client struct {
	tokenEndpoint    string
	userinfoEndpoint string
	jwksEndpoint     string
	http             *http.Client
}

// NewClient builds a provider client with the configured endpoints and a
// bounded request timeout.
func NewClient(cfg config.OIDC) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		tokenEndpoint:    cfg.TokenEndpoint,
		userinfoEndpoint: cfg.UserinfoEndpoint,
		jwksEndpoint:     cfg.JWKSEndpoint,
		http:             &http.Client{Timeout: timeout},
	}
}

// ExchangeCode swaps an authorization code for tokens using the signed
// client assertion and the PKCE code verifier.
func (c *Client) ExchangeCode(ctx context.Context, req TokenRequest) (*models.TokenResponse, error) {
	form := url.Values{
		"grant_type":            {"authorization_code"},
		"code":                  {req.Code},
		"redirect_uri":          {req.RedirectURI},
		"client_id":             {req.ClientID},
		"client_assertion_type": {req.ClientAssertionType},
		"client_assertion":      {req.ClientAssertion},
		"code_verifier":         {req.CodeVerifier},
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, providerError("token endpoint", resp, body)
	}

	var tokens models.TokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tokens.AccessToken == "" {
		return nil, &Error{Endpoint: "token endpoint", Status: resp.StatusCode, Description: "response carried no access_token"}
	}
	return &tokens, nil
}

// FetchUserInfo retrieves the userinfo document. The response body is itself
// a signed JWT whose payload is the claims set; it is returned raw for the
// flow controller to verify and decode.
func (c *Client) FetchUserInfo(ctx context.Context, accessToken string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userinfoEndpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build userinfo request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Accept", "application/jwt, application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read userinfo response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", providerError("userinfo endpoint", resp, body)
	}
	return strings.TrimSpace(string(body)), nil
}

// FetchJWKS retrieves the provider's published verification keys.
func (c *Client) FetchJWKS(ctx context.Context) (*jwk.Set, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build jwks request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("jwks request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read jwks response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, providerError("jwks endpoint", resp, body)
	}
	return jwk.ParseSet(body)
}

// providerError extracts the OAuth error fields when the body is JSON,
// falling back to the raw body text.
func providerError(endpoint string, resp *http.Response, body []byte) *Error {
	perr := &Error{Endpoint: endpoint, Status: resp.StatusCode}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var payload struct {
			ErrorCode   string `json:"error"`
			Description string `json:"error_description"`
		}
		if json.Unmarshal(body, &payload) == nil {
			perr.Code = payload.ErrorCode
			perr.Description = payload.Description
			return perr
		}
	}
	if len(body) > 0 {
		perr.Description = strings.TrimSpace(string(body))
	}
	return perr
}
