package jwk

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func b64(i *big.Int) string {
	return base64.RawURLEncoding.EncodeToString(i.Bytes())
}

// jwkFromKey serializes a generated RSA key into its JWK form.
func jwkFromKey(t *testing.T, key *rsa.PrivateKey, kid string) []byte {
	t.Helper()
	key.Precompute()
	doc := RSAKey{
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		Kid: kid,
		N:   b64(key.N),
		E:   b64(big.NewInt(int64(key.E))),
		D:   b64(key.D),
		P:   b64(key.Primes[0]),
		Q:   b64(key.Primes[1]),
		Dp:  b64(key.Precomputed.Dp),
		Dq:  b64(key.Precomputed.Dq),
		Qi:  b64(key.Precomputed.Qinv),
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return raw
}

func TestParsePrivateKey(t *testing.T) {
	generated, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	t.Run("round-trips a generated key", func(t *testing.T) {
		raw := jwkFromKey(t, generated, "test-kid")

		key, kid, err := ParsePrivateKey(raw)
		require.NoError(t, err)
		assert.Equal(t, "test-kid", kid)
		assert.Equal(t, 0, generated.N.Cmp(key.N))
		assert.Equal(t, 0, generated.D.Cmp(key.D))
		require.NoError(t, key.Validate())
	})

	t.Run("accepts base64-wrapped configuration form", func(t *testing.T) {
		raw := jwkFromKey(t, generated, "wrapped")
		encoded := base64.StdEncoding.EncodeToString(raw)

		key, kid, err := ParsePrivateKeyBase64(encoded)
		require.NoError(t, err)
		assert.Equal(t, "wrapped", kid)
		assert.Equal(t, 0, generated.N.Cmp(key.N))
	})

	t.Run("rejects non-RSA key types", func(t *testing.T) {
		_, _, err := ParsePrivateKey([]byte(`{"kty":"EC","crv":"P-256"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported key type")
	})

	t.Run("rejects missing private exponent", func(t *testing.T) {
		var doc RSAKey
		require.NoError(t, json.Unmarshal(jwkFromKey(t, generated, ""), &doc))
		doc.D = ""
		raw, err := json.Marshal(doc)
		require.NoError(t, err)

		_, _, err = ParsePrivateKey(raw)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `missing field "d"`)
	})

	t.Run("rejects garbage base64 fields", func(t *testing.T) {
		var doc RSAKey
		require.NoError(t, json.Unmarshal(jwkFromKey(t, generated, ""), &doc))
		doc.N = "!!not-base64!!"
		raw, err := json.Marshal(doc)
		require.NoError(t, err)

		_, _, err = ParsePrivateKey(raw)
		require.Error(t, err)
	})

	t.Run("rejects inconsistent key material", func(t *testing.T) {
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		var doc RSAKey
		require.NoError(t, json.Unmarshal(jwkFromKey(t, generated, ""), &doc))
		// Swap in a prime from an unrelated key; validation must fail.
		doc.P = b64(other.Primes[0])
		raw, err := json.Marshal(doc)
		require.NoError(t, err)

		_, _, err = ParsePrivateKey(raw)
		require.Error(t, err)
	})

	t.Run("rejects non-base64 wrapper", func(t *testing.T) {
		_, _, err := ParsePrivateKeyBase64("%%%")
		require.Error(t, err)
	})
}

func TestSetFind(t *testing.T) {
	generated, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pub := RSAKey{
		Kty: "RSA",
		Kid: "signer-1",
		N:   b64(generated.N),
		E:   b64(big.NewInt(int64(generated.E))),
	}
	other := pub
	other.Kid = "signer-2"

	t.Run("finds key by kid", func(t *testing.T) {
		set := &Set{Keys: []RSAKey{pub, other}}
		k, err := set.Find("signer-2")
		require.NoError(t, err)
		assert.Equal(t, "signer-2", k.Kid)
	})

	t.Run("empty kid selects sole key", func(t *testing.T) {
		set := &Set{Keys: []RSAKey{pub}}
		k, err := set.Find("")
		require.NoError(t, err)
		assert.Equal(t, "signer-1", k.Kid)
	})

	t.Run("unknown kid fails", func(t *testing.T) {
		set := &Set{Keys: []RSAKey{pub}}
		_, err := set.Find("missing")
		require.Error(t, err)
	})

	t.Run("public parameters build a usable key", func(t *testing.T) {
		key, err := pub.PublicKey()
		require.NoError(t, err)
		assert.Equal(t, 0, generated.N.Cmp(key.N))
		assert.Equal(t, generated.E, key.E)
	})

	t.Run("parses a JWKS document", func(t *testing.T) {
		raw, err := json.Marshal(Set{Keys: []RSAKey{pub}})
		require.NoError(t, err)
		set, err := ParseSet(raw)
		require.NoError(t, err)
		require.Len(t, set.Keys, 1)
	})
}
