package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/sift/internal/common"
)

// ErrorResponse is the standard error format for REST API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Error codes returned alongside mapped service errors
const (
	CodeNoData        = "no_data"
	CodeRateLimited   = "rate_limited"
	CodeInvalidSymbol = "invalid_symbol"
	CodeTimeout       = "timeout"
	CodeInternal      = "internal"
)

// WriteJSON writes a JSON response with the given status code. Non-finite
// floats are zeroed first since encoding/json rejects them.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	common.SanitizeValue(data)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// WriteErrorWithCode writes a JSON error response with an error code.
func WriteErrorWithCode(w http.ResponseWriter, statusCode int, message, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// WriteServiceError maps a service error onto a status code.
// Rate limiting is checked before missing data since an exhausted waterfall
// wraps the last provider error.
func WriteServiceError(w http.ResponseWriter, err error) {
	status, code := ServiceErrorStatus(err)
	WriteErrorWithCode(w, status, err.Error(), code)
}

// ServiceErrorStatus returns the HTTP status and code for a service error
func ServiceErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrNoValidSymbols):
		return http.StatusBadRequest, CodeInvalidSymbol
	case common.IsRateLimited(err):
		return http.StatusTooManyRequests, CodeRateLimited
	case errors.Is(err, common.ErrNoDataAvailable):
		return http.StatusNotFound, CodeNoData
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// RequireMethod validates the HTTP method and returns true if it matches.
// If it doesn't match, it writes a 405 response and returns false.
func RequireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

// DecodeJSON reads and decodes JSON from the request body into v.
// Returns false and writes a 400 error if decoding fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		WriteError(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

// PathParam extracts a path parameter from the URL path.
// For a pattern like /api/series/{symbol}, calling PathParam(r, "/api/series/", "")
// extracts the {symbol} part.
func PathParam(r *http.Request, prefix, suffix string) string {
	path := r.URL.Path
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := path[len(prefix):]
	if suffix != "" {
		idx := strings.Index(rest, suffix)
		if idx < 0 {
			return rest
		}
		return rest[:idx]
	}
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return rest[:idx]
	}
	return rest
}

// QueryBool parses a boolean query parameter, returning fallback when absent
// or malformed
func QueryBool(r *http.Request, name string, fallback bool) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// ParseTimeout parses a duration such as "30s", returning zero when empty or
// invalid so the configured default applies
func ParseTimeout(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}
