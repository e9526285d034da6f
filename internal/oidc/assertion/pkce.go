// Package assertion holds the pure cryptographic routines of the OIDC flow:
// PKCE pair generation, state token generation, and private-key-JWT client
// assertion signing. Nothing here touches storage or the network.
package assertion

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// randomURLSafe returns n cryptographically random bytes, base64url-encoded
// without padding.
func randomURLSafe(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GeneratePKCEPair generates a PKCE code verifier and its S256 challenge.
// The verifier carries 32 bytes of entropy; the challenge is the base64url
// SHA-256 of the verifier string and is derivable from nothing else.
func GeneratePKCEPair() (verifier, challenge string, err error) {
	verifier, err = randomURLSafe(32)
	if err != nil {
		return "", "", err
	}
	sum := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(sum[:])
	return verifier, challenge, nil
}

// GenerateState generates the opaque correlation token for one auth attempt.
// It only needs to be unguessable, not secret after use.
func GenerateState() (string, error) {
	return randomURLSafe(32)
}
