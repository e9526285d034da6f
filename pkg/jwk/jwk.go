// Package jwk parses RSA key material in JSON Web Key form.
//
// The private signing key arrives from configuration as base64-encoded JWK
// JSON carrying the full CRT parameter set (n/e/d/p/q/dp/dq/qi). The provider
// publishes verification keys as a JWKS document with public parameters only.
// Big-integer decoding is kept as a pure utility, independent of any signing
// call; callers wrap failures into their own error taxonomy.
package jwk

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
)

// RSAKey mirrors the JWK fields for an RSA key. Private fields are empty on
// public-only keys.
type RSAKey struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`
	N   string `json:"n"`
	E   string `json:"e"`
	D   string `json:"d,omitempty"`
	P   string `json:"p,omitempty"`
	Q   string `json:"q,omitempty"`
	Dp  string `json:"dp,omitempty"`
	Dq  string `json:"dq,omitempty"`
	Qi  string `json:"qi,omitempty"`
}

// Set is a JWKS document.
type Set struct {
	Keys []RSAKey `json:"keys"`
}

// decodeBigInt decodes a base64url (unpadded) JWK field into a big integer.
func decodeBigInt(field, value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("jwk: missing field %q", field)
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		// Some issuers emit padded values; tolerate them.
		raw, err = base64.URLEncoding.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("jwk: field %q is not base64url: %w", field, err)
		}
	}
	return new(big.Int).SetBytes(raw), nil
}

// ParsePrivateKey builds an *rsa.PrivateKey from JWK JSON, returning the
// declared key ID alongside so signers can echo it in the kid header.
func ParsePrivateKey(raw []byte) (*rsa.PrivateKey, string, error) {
	var k RSAKey
	if err := json.Unmarshal(raw, &k); err != nil {
		return nil, "", fmt.Errorf("jwk: invalid JSON: %w", err)
	}
	if k.Kty != "RSA" {
		return nil, "", fmt.Errorf("jwk: unsupported key type %q", k.Kty)
	}

	n, err := decodeBigInt("n", k.N)
	if err != nil {
		return nil, "", err
	}
	e, err := decodeBigInt("e", k.E)
	if err != nil {
		return nil, "", err
	}
	d, err := decodeBigInt("d", k.D)
	if err != nil {
		return nil, "", err
	}
	p, err := decodeBigInt("p", k.P)
	if err != nil {
		return nil, "", err
	}
	q, err := decodeBigInt("q", k.Q)
	if err != nil {
		return nil, "", err
	}

	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: n, E: int(e.Int64())},
		D:         d,
		Primes:    []*big.Int{p, q},
	}
	// Recomputing the CRT values validates the dp/dq/qi the key declares.
	key.Precompute()
	if err := key.Validate(); err != nil {
		return nil, "", fmt.Errorf("jwk: key fails validation: %w", err)
	}
	return key, k.Kid, nil
}

// ParsePrivateKeyBase64 decodes the configuration form: base64(JWK JSON).
// Standard and URL-safe alphabets are both accepted.
func ParsePrivateKeyBase64(encoded string) (*rsa.PrivateKey, string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("jwk: key material is not base64: %w", err)
		}
	}
	return ParsePrivateKey(raw)
}

// PublicKey builds an *rsa.PublicKey from the public JWK parameters.
func (k RSAKey) PublicKey() (*rsa.PublicKey, error) {
	if k.Kty != "RSA" {
		return nil, fmt.Errorf("jwk: unsupported key type %q", k.Kty)
	}
	n, err := decodeBigInt("n", k.N)
	if err != nil {
		return nil, err
	}
	e, err := decodeBigInt("e", k.E)
	if err != nil {
		return nil, err
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

// ParseSet parses a JWKS document.
func ParseSet(raw []byte) (*Set, error) {
	var s Set
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("jwk: invalid JWKS JSON: %w", err)
	}
	return &s, nil
}

// Find returns the key with the given kid. When kid is empty and the set
// holds exactly one key, that key is returned.
func (s *Set) Find(kid string) (*RSAKey, error) {
	if kid == "" && len(s.Keys) == 1 {
		return &s.Keys[0], nil
	}
	for i := range s.Keys {
		if s.Keys[i].Kid == kid {
			return &s.Keys[i], nil
		}
	}
	return nil, fmt.Errorf("jwk: no key with kid %q", kid)
}
