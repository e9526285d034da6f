package assertion

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gatepass/pkg/jwk"
)

// assertionLifetime bounds how long a client assertion stays valid.
const assertionLifetime = 5 * time.Minute

// Signer produces RS256 client assertions proving this relying party's
// identity to the token endpoint. The key is parsed once at construction;
// a malformed JWK fails fast instead of on the first sign.
type Signer struct {
	key      *rsa.PrivateKey
	kid      string
	clientID string
	audience string
}

// NewSigner parses the base64-encoded JWK private key from configuration.
// audience is the token endpoint URL the assertions are addressed to.
func NewSigner(clientID, audience, privateKeyJWK string) (*Signer, error) {
	key, kid, err := jwk.ParsePrivateKeyBase64(privateKeyJWK)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return &Signer{
		key:      key,
		kid:      kid,
		clientID: clientID,
		audience: audience,
	}, nil
}

// KeyID returns the declared key ID of the signing key.
func (s *Signer) KeyID() string { return s.kid }

// Sign builds and signs a client assertion valid for five minutes from now.
// The kid header echoes the JWK's declared key ID so the provider selects
// the matching verification key.
func (s *Signer) Sign(now time.Time) (string, error) {
	jti, err := randomURLSafe(16)
	if err != nil {
		return "", fmt.Errorf("generate jti: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": s.clientID,
		"sub": s.clientID,
		"aud": s.audience,
		"jti": jti,
		"iat": now.Unix(),
		"exp": now.Add(assertionLifetime).Unix(),
	})
	if s.kid != "" {
		token.Header["kid"] = s.kid
	}

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign client assertion: %w", err)
	}
	return signed, nil
}
