package dataverse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// minTokenLifetime keeps a credential usable for at least this long, even when
// the identity provider declares a tiny or zero lifetime.
const minTokenLifetime = 60 * time.Second

// Credential is a bearer token and the instant after which it must not be reused.
// ExpiresAt already has the skew margin subtracted.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// TokenSource acquires client-credentials tokens and shares one cached
// credential between all callers.
type TokenSource struct {
	cfg  Config
	now  func() time.Time
	mu   sync.Mutex
	cred *Credential
}

func NewTokenSource(cfg Config) *TokenSource {
	return &TokenSource{cfg: cfg.withDefaults(), now: time.Now}
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

// Token returns the cached credential while it is fresh, and performs a
// credential exchange otherwise.
func (ts *TokenSource) Token(ctx context.Context) (Credential, error) {
	if err := ts.cfg.validate(); err != nil {
		return Credential{}, err
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.cred != nil && ts.now().Before(ts.cred.ExpiresAt) {
		return *ts.cred, nil
	}
	return ts.refreshLocked(ctx)
}

// Invalidate drops the cached credential if it still holds token. Callers that
// were rejected with a stale token therefore trigger at most one refresh.
func (ts *TokenSource) Invalidate(token string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.cred != nil && ts.cred.Token == token {
		ts.cred = nil
	}
}

func (ts *TokenSource) refreshLocked(ctx context.Context) (Credential, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {ts.cfg.ClientID},
		"client_secret": {ts.cfg.ClientSecret},
		"scope":         {ts.cfg.BaseURL + "/.default"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.cfg.tokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := ts.cfg.HTTPClient.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Credential{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Credential{}, &AuthError{Status: resp.StatusCode, Body: truncate(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Credential{}, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return Credential{}, &AuthError{Status: resp.StatusCode, Body: "response carried no access_token"}
	}

	now := ts.now()
	lifetime := ts.declaredLifetime(tr, now)
	ttl := lifetime - ts.cfg.TokenSkew
	if ttl < minTokenLifetime {
		ttl = minTokenLifetime
	}
	ts.cred = &Credential{Token: tr.AccessToken, ExpiresAt: now.Add(ttl)}

	slog.Debug("dataverse token acquired", "lifetime", lifetime.String(), "reuse_for", ttl.String())
	return *ts.cred, nil
}

// declaredLifetime prefers expires_in and falls back to the exp claim of the
// access token when the provider leaves expires_in out.
func (ts *TokenSource) declaredLifetime(tr tokenResponse, now time.Time) time.Duration {
	if secs, err := tr.ExpiresIn.Int64(); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tr.AccessToken, claims); err != nil {
		return 0
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	return exp.Sub(now)
}
