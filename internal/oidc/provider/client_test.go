package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatepass/internal/platform/config"
)

func testClient(tokenURL, userinfoURL, jwksURL string) *Client {
	return NewClient(config.OIDC{
		TokenEndpoint:    tokenURL,
		UserinfoEndpoint: userinfoURL,
		JWKSEndpoint:     jwksURL,
	})
}

func TestExchangeCode(t *testing.T) {
	t.Run("posts the full grant form and decodes tokens", func(t *testing.T) {
		var gotForm map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			gotForm = map[string]string{
				"grant_type":            r.PostFormValue("grant_type"),
				"code":                  r.PostFormValue("code"),
				"redirect_uri":          r.PostFormValue("redirect_uri"),
				"client_id":             r.PostFormValue("client_id"),
				"client_assertion_type": r.PostFormValue("client_assertion_type"),
				"client_assertion":      r.PostFormValue("client_assertion"),
				"code_verifier":         r.PostFormValue("code_verifier"),
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"at-123","id_token":"idt-456","token_type":"Bearer","expires_in":3600}`))
		}))
		defer srv.Close()

		client := testClient(srv.URL, "", "")
		tokens, err := client.ExchangeCode(context.Background(), TokenRequest{
			Code:                "auth-code",
			RedirectURI:         "http://localhost:3000/callback",
			ClientID:            "visitor-register",
			ClientAssertionType: "urn:ietf:params:oauth:client-assertion-type:jwt-bearer",
			ClientAssertion:     "signed.jwt.assertion",
			CodeVerifier:        "verifier",
		})
		require.NoError(t, err)

		assert.Equal(t, "authorization_code", gotForm["grant_type"])
		assert.Equal(t, "auth-code", gotForm["code"])
		assert.Equal(t, "visitor-register", gotForm["client_id"])
		assert.Equal(t, "signed.jwt.assertion", gotForm["client_assertion"])
		assert.Equal(t, "verifier", gotForm["code_verifier"])
		assert.Equal(t, "at-123", tokens.AccessToken)
		assert.Equal(t, "idt-456", tokens.IDToken)
	})

	t.Run("surfaces the provider error description", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"authorization code expired"}`))
		}))
		defer srv.Close()

		client := testClient(srv.URL, "", "")
		_, err := client.ExchangeCode(context.Background(), TokenRequest{Code: "stale"})
		require.Error(t, err)

		var perr *Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, http.StatusBadRequest, perr.Status)
		assert.Equal(t, "invalid_grant", perr.Code)
		assert.Equal(t, "authorization code expired", perr.Description)
	})

	t.Run("rejects a success body with no access token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		client := testClient(srv.URL, "", "")
		_, err := client.ExchangeCode(context.Background(), TokenRequest{Code: "code"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no access_token")
	})
}

func TestFetchUserInfo(t *testing.T) {
	t.Run("sends the bearer token and returns the raw JWT body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer at-123", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte("header.payload.signature\n"))
		}))
		defer srv.Close()

		client := testClient("", srv.URL, "")
		raw, err := client.FetchUserInfo(context.Background(), "at-123")
		require.NoError(t, err)
		assert.Equal(t, "header.payload.signature", raw)
	})

	t.Run("non-success responses fail with status context", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("invalid token"))
		}))
		defer srv.Close()

		client := testClient("", srv.URL, "")
		_, err := client.FetchUserInfo(context.Background(), "expired")
		require.Error(t, err)

		var perr *Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, http.StatusUnauthorized, perr.Status)
		assert.Equal(t, "invalid token", perr.Description)
	})
}

func TestFetchJWKS(t *testing.T) {
	t.Run("parses the published key set", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"keys":[{"kty":"RSA","kid":"prov-1","n":"AQAB","e":"AQAB"}]}`))
		}))
		defer srv.Close()

		client := testClient("", "", srv.URL)
		set, err := client.FetchJWKS(context.Background())
		require.NoError(t, err)
		require.Len(t, set.Keys, 1)
		assert.Equal(t, "prov-1", set.Keys[0].Kid)
	})
}
