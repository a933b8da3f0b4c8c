package dataverse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenServer answers the client-credentials exchange with body and counts calls.
func tokenServer(t *testing.T, status int, body func(n int32) string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tenant/oauth2/v2.0/token", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		n := hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body(n))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testConfig(url string) Config {
	return Config{
		BaseURL:       url,
		AuthorityHost: url,
		TenantID:      "tenant",
		ClientID:      "client",
		ClientSecret:  "secret",
		TokenSkew:     60 * time.Second,
	}
}

func TestTokenReusedWhileFresh(t *testing.T) {
	srv, hits := tokenServer(t, http.StatusOK, func(n int32) string {
		return fmt.Sprintf(`{"access_token":"tok-%d","expires_in":3600}`, n)
	})
	now := time.Unix(1_700_000_000, 0)
	ts := NewTokenSource(testConfig(srv.URL))
	ts.now = func() time.Time { return now }

	first, err := ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-1", first.Token)
	require.Equal(t, now.Add(3540*time.Second), first.ExpiresAt)

	now = now.Add(3539 * time.Second)
	again, err := ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, again)
	require.EqualValues(t, 1, hits.Load())

	now = now.Add(2 * time.Second)
	renewed, err := ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-2", renewed.Token)
	require.EqualValues(t, 2, hits.Load())
}

func TestTokenZeroSkewUsesDeclaredExpiry(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusOK, func(int32) string {
		return `{"access_token":"tok","expires_in":3600}`
	})
	now := time.Unix(1_700_000_000, 0)
	cfg := testConfig(srv.URL)
	cfg.TokenSkew = 0
	ts := NewTokenSource(cfg)
	ts.now = func() time.Time { return now }

	cred, err := ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Hour), cred.ExpiresAt)
}

func TestTokenLifetimeFloor(t *testing.T) {
	srv, hits := tokenServer(t, http.StatusOK, func(int32) string {
		return `{"access_token":"opaque","expires_in":"0"}`
	})
	now := time.Unix(1_700_000_000, 0)
	ts := NewTokenSource(testConfig(srv.URL))
	ts.now = func() time.Time { return now }

	cred, err := ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, now.Add(minTokenLifetime), cred.ExpiresAt)

	now = now.Add(59 * time.Second)
	_, err = ts.Token(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, hits.Load())
}

func TestTokenLifetimeFromExpClaim(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": now.Add(10 * time.Minute).Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	srv, _ := tokenServer(t, http.StatusOK, func(int32) string {
		return fmt.Sprintf(`{"access_token":%q}`, signed)
	})
	ts := NewTokenSource(testConfig(srv.URL))
	ts.now = func() time.Time { return now }

	cred, err := ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, signed, cred.Token)
	require.Equal(t, now.Add(9*time.Minute), cred.ExpiresAt)
}

func TestTokenMissingConfiguration(t *testing.T) {
	ts := NewTokenSource(Config{BaseURL: "https://org.example"})

	_, err := ts.Token(context.Background())
	require.ErrorIs(t, err, ErrConfiguration)

	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, []string{"TENANT_ID", "CLIENT_ID", "CLIENT_SECRET"}, ce.Missing)
}

func TestTokenExchangeRejected(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusBadRequest, func(int32) string {
		return `{"error":"invalid_client"}`
	})
	ts := NewTokenSource(testConfig(srv.URL))

	_, err := ts.Token(context.Background())
	require.ErrorIs(t, err, ErrUpstreamAuth)

	var ae *AuthError
	require.True(t, errors.As(err, &ae))
	require.Equal(t, http.StatusBadRequest, ae.Status)
}

func TestInvalidateIgnoresOtherTokens(t *testing.T) {
	srv, hits := tokenServer(t, http.StatusOK, func(n int32) string {
		return fmt.Sprintf(`{"access_token":"tok-%d","expires_in":3600}`, n)
	})
	ts := NewTokenSource(testConfig(srv.URL))

	_, err := ts.Token(context.Background())
	require.NoError(t, err)

	ts.Invalidate("some-older-token")
	cred, err := ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-1", cred.Token)

	ts.Invalidate("tok-1")
	cred, err = ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-2", cred.Token)
	require.EqualValues(t, 2, hits.Load())
}
