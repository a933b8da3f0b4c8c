package main

import (
	"errors"
	"net/http"

	"github.com/example/jdasdash/internal/dashboard"
	"github.com/example/jdasdash/internal/dataverse"
)

// APIError represents a structured API error response
type APIError struct {
	OK      *bool  `json:"ok,omitempty"`
	Code    string `json:"error_code"`
	Message string `json:"error_message"`
}

// writeError writes a structured error response with a real status code. It is
// used for requests rejected before they reach the dashboard.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIError{Code: code, Message: message})
}

// writeFailure reports an application-level failure. The status is always 200
// so embedding dashboards can parse the body; ok is false.
func writeFailure(w http.ResponseWriter, err error) {
	ok := false
	writeJSON(w, http.StatusOK, APIError{OK: &ok, Code: errorCode(err), Message: err.Error()})
}

func errorCode(err error) string {
	var ue *dataverse.UpstreamError
	switch {
	case errors.Is(err, dataverse.ErrConfiguration):
		return "CONFIGURATION_ERROR"
	case errors.Is(err, dataverse.ErrUpstreamAuth):
		return "UPSTREAM_AUTH_ERROR"
	case errors.Is(err, dataverse.ErrResourceNotFound):
		return "RESOURCE_NOT_FOUND"
	case errors.Is(err, dataverse.ErrUpstreamTimeout):
		return "UPSTREAM_TIMEOUT"
	case errors.Is(err, dataverse.ErrUpstreamUnavailable):
		return "UPSTREAM_UNAVAILABLE"
	case errors.Is(err, dashboard.ErrUnknownTable):
		return "UNKNOWN_TABLE"
	case errors.Is(err, dashboard.ErrUnknownIndustry):
		return "UNKNOWN_INDUSTRY"
	case errors.As(err, &ue):
		return "UPSTREAM_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}
