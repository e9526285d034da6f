// Package config builds the process configuration from the environment.
// Everything is injected as an explicit struct; no package reads the
// environment at request time.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// IDTokenVerificationMode controls how ID tokens from the provider are
// validated.
type IDTokenVerificationMode string

const (
	// VerificationStrict fetches the provider JWKS, verifies the RS256
	// signature, and fails on issuer mismatch. Default.
	VerificationStrict IDTokenVerificationMode = "strict"
	// VerificationLenient decodes claims without signature verification and
	// only warns on issuer mismatch. For development against test
	// environments that rotate keys out-of-band.
	VerificationLenient IDTokenVerificationMode = "lenient"
)

// OIDC captures the VeriFayda (eSignet) relying-party settings.
type OIDC struct {
	ClientID              string
	RedirectURI           string
	PrivateKeyJWK         string // base64-encoded JWK JSON with private parameters
	AuthorizationEndpoint string
	TokenEndpoint         string
	UserinfoEndpoint      string
	JWKSEndpoint          string
	Issuer                string
	ClientAssertionType   string
	ClaimsLocales         string
	SessionTTL            time.Duration
	HTTPTimeout           time.Duration
	Verification          IDTokenVerificationMode
}

// Server is the top-level process configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	SweepInterval time.Duration
	OIDC          OIDC
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	authzEndpoint := getenv("OIDC_AUTHORIZATION_ENDPOINT", "https://esignet.ida.fayda.et/authorize")

	issuer := os.Getenv("OIDC_ISSUER")
	if issuer == "" {
		// The provider does not publish a separate issuer value; it is the
		// authorization endpoint minus the /authorize suffix.
		issuer = strings.TrimSuffix(authzEndpoint, "/authorize")
	}

	verification := VerificationStrict
	if os.Getenv("OIDC_ID_TOKEN_VERIFICATION") == string(VerificationLenient) {
		verification = VerificationLenient
	}

	return Server{
		Addr:          getenv("GATEPASS_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		SweepInterval: getduration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		OIDC: OIDC{
			ClientID:              os.Getenv("OIDC_CLIENT_ID"),
			RedirectURI:           getenv("OIDC_REDIRECT_URI", "http://localhost:3000/callback"),
			PrivateKeyJWK:         os.Getenv("OIDC_PRIVATE_KEY_JWK"),
			AuthorizationEndpoint: authzEndpoint,
			TokenEndpoint:         getenv("OIDC_TOKEN_ENDPOINT", "https://esignet.ida.fayda.et/v1/esignet/oauth/v2/token"),
			UserinfoEndpoint:      getenv("OIDC_USERINFO_ENDPOINT", "https://esignet.ida.fayda.et/v1/esignet/oidc/userinfo"),
			JWKSEndpoint:          getenv("OIDC_JWKS_ENDPOINT", "https://esignet.ida.fayda.et/v1/esignet/oauth/.well-known/jwks.json"),
			Issuer:                issuer,
			ClientAssertionType:   getenv("OIDC_CLIENT_ASSERTION_TYPE", "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"),
			ClaimsLocales:         getenv("OIDC_CLAIMS_LOCALES", "en am"),
			SessionTTL:            getduration("OIDC_SESSION_TTL", 15*time.Minute),
			HTTPTimeout:           getduration("OIDC_HTTP_TIMEOUT", 30*time.Second),
			Verification:          verification,
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Bare integers are treated as seconds.
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
