package dataverse

import (
	"net/http"
	"strings"
	"time"
)

// DefaultBackoff is the delay ladder between attempts of one page request.
var DefaultBackoff = []time.Duration{
	200 * time.Millisecond,
	500 * time.Millisecond,
	1 * time.Second,
	2 * time.Second,
}

// Config carries everything the client needs to reach one Dataverse environment.
type Config struct {
	BaseURL       string
	TenantID      string
	ClientID      string
	ClientSecret  string
	AuthorityHost string
	APIVersion    string

	// TokenSkew is subtracted from a credential's lifetime; zero reuses it
	// until the declared expiry.
	TokenSkew      time.Duration
	RequestTimeout time.Duration
	PageTimeout    time.Duration
	PageSize       int
	MaxConcurrent  int
	Backoff        []time.Duration

	// HTTPClient overrides the client built from RequestTimeout.
	HTTPClient *http.Client
}

// Missing lists the environment keys of the identity settings that are unset.
func (c Config) Missing() []string {
	var missing []string
	if c.BaseURL == "" {
		missing = append(missing, "DATAVERSE_URL")
	}
	if c.TenantID == "" {
		missing = append(missing, "TENANT_ID")
	}
	if c.ClientID == "" {
		missing = append(missing, "CLIENT_ID")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "CLIENT_SECRET")
	}
	return missing
}

func (c Config) validate() error {
	if missing := c.Missing(); len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.AuthorityHost == "" {
		c.AuthorityHost = "https://login.microsoftonline.com"
	}
	c.AuthorityHost = strings.TrimRight(c.AuthorityHost, "/")
	if c.APIVersion == "" {
		c.APIVersion = "v9.2"
	}
	if c.TokenSkew < 0 {
		c.TokenSkew = 0
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.PageTimeout == 0 {
		c.PageTimeout = 30 * time.Second
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
	if c.Backoff == nil {
		c.Backoff = DefaultBackoff
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.RequestTimeout}
	}
	return c
}

// requestBudget is the longest one retried request can take: every attempt
// running to PageTimeout plus every backoff delay.
func (c Config) requestBudget() time.Duration {
	budget := time.Duration(len(c.Backoff)+1) * c.PageTimeout
	for _, d := range c.Backoff {
		budget += d
	}
	return budget
}

func (c Config) apiBase() string {
	return c.BaseURL + "/api/data/" + c.APIVersion
}

func (c Config) tokenURL() string {
	return c.AuthorityHost + "/" + c.TenantID + "/oauth2/v2.0/token"
}
