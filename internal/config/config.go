package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/jdasdash/internal/dataverse"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string
	// Dataverse identity and endpoint settings
	DataverseURL  string
	TenantID      string
	ClientID      string
	ClientSecret  string
	AuthorityHost string
	APIVersion    string
	// Fetch defaults and budgets
	DefaultTop           int
	DefaultOrderBy       string
	CacheTTL             time.Duration
	MaxConcurrentFetches int
	RequestTimeout       time.Duration
	PageTimeout          time.Duration
	FetchTimeout         time.Duration
	PageSize             int
	TokenSkew            time.Duration
	RegistryFile         string
	// HTTP boundary
	APIKeyHash         string
	RateLimitPerMinute int
	AllowedOrigins     []string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getint(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, v)
	}
	return n, nil
}

// getduration accepts Go durations ("90s") or a bare number of seconds ("300").
func getduration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, v)
	}
	return d, nil
}

// Dataverse maps the identity and budget settings onto the client configuration.
func (c *Config) Dataverse() dataverse.Config {
	return dataverse.Config{
		BaseURL:        c.DataverseURL,
		TenantID:       c.TenantID,
		ClientID:       c.ClientID,
		ClientSecret:   c.ClientSecret,
		AuthorityHost:  c.AuthorityHost,
		APIVersion:     c.APIVersion,
		TokenSkew:      c.TokenSkew,
		RequestTimeout: c.RequestTimeout,
		PageTimeout:    c.PageTimeout,
		PageSize:       c.PageSize,
		MaxConcurrent:  c.MaxConcurrentFetches,
	}
}

// MissingDataverseSettings lists the environment keys that must be set before any
// upstream call can be made.
func (c *Config) MissingDataverseSettings() []string {
	return c.Dataverse().Missing()
}

// New loads configuration from the environment. A .env file in the working
// directory, if present, is loaded first and never overrides variables that are
// already set.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	c := &Config{
		Port:           getenv("PORT", "8000"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFormat:      getenv("LOG_FORMAT", "text"),
		DataverseURL:   strings.TrimRight(getenv("DATAVERSE_URL", ""), "/"),
		TenantID:       getenv("TENANT_ID", ""),
		ClientID:       getenv("CLIENT_ID", ""),
		ClientSecret:   getenv("CLIENT_SECRET", ""),
		AuthorityHost:  strings.TrimRight(getenv("AUTHORITY_HOST", "https://login.microsoftonline.com"), "/"),
		APIVersion:     getenv("DATAVERSE_API_VERSION", "v9.2"),
		DefaultOrderBy: getenv("DEFAULT_ORDERBY", ""),
		RegistryFile:   getenv("REGISTRY_FILE", ""),
		APIKeyHash:     getenv("API_KEY_HASH", ""),
	}

	var err error
	if c.DefaultTop, err = getint("DEFAULT_TOP", 10); err != nil {
		return nil, err
	}
	if c.MaxConcurrentFetches, err = getint("MAX_CONCURRENT_FETCHES", 4); err != nil {
		return nil, err
	}
	if c.PageSize, err = getint("PAGE_SIZE", 0); err != nil {
		return nil, err
	}
	if c.RateLimitPerMinute, err = getint("RATE_LIMIT_PER_MINUTE", 600); err != nil {
		return nil, err
	}
	if c.CacheTTL, err = getduration("CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if c.RequestTimeout, err = getduration("REQUEST_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if c.PageTimeout, err = getduration("PAGE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if c.FetchTimeout, err = getduration("FETCH_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}
	if c.TokenSkew, err = getduration("TOKEN_SKEW", 60*time.Second); err != nil {
		return nil, err
	}

	if origins := getenv("ALLOWED_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}

	if c.DefaultTop <= 0 {
		return nil, fmt.Errorf("invalid DEFAULT_TOP: %d", c.DefaultTop)
	}
	if c.TokenSkew < 0 {
		return nil, fmt.Errorf("invalid TOKEN_SKEW: %s", c.TokenSkew)
	}
	if c.MaxConcurrentFetches <= 0 {
		return nil, fmt.Errorf("invalid MAX_CONCURRENT_FETCHES: %d", c.MaxConcurrentFetches)
	}

	// normalize port
	if _, err := strconv.Atoi(c.Port); err != nil {
		return nil, fmt.Errorf("invalid PORT: %s", c.Port)
	}

	return c, nil
}
