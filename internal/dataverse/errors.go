package dataverse

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration       = errors.New("dataverse is not configured")
	ErrUpstreamAuth        = errors.New("upstream authentication failed")
	ErrResourceNotFound    = errors.New("resource not found")
	ErrUpstreamTimeout     = errors.New("upstream timed out")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// ConfigError reports which identity settings are absent.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: missing %s", ErrConfiguration, strings.Join(e.Missing, ", "))
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// AuthError is returned when the credential exchange is rejected, or when a
// data request is still unauthorized after one credential refresh.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%v (status %d): %s", ErrUpstreamAuth, e.Status, e.Body)
}

func (e *AuthError) Unwrap() error { return ErrUpstreamAuth }

// NotFoundError is returned when a logical name has no physical collection.
type NotFoundError struct {
	LogicalName string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v: no collection for logical name %q", ErrResourceNotFound, e.LogicalName)
}

func (e *NotFoundError) Unwrap() error { return ErrResourceNotFound }

// UpstreamError is a non-retryable rejection from the upstream API.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error (status %d): %s", e.Status, e.Body)
}

// truncate keeps upstream bodies readable inside error messages.
func truncate(b []byte) string {
	const max = 512
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
