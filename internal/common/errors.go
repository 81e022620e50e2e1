package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error taxonomy shared by providers, the chain and the services.
var (
	ErrNoDataAvailable  = errors.New("no data available")
	ErrRateLimited      = errors.New("rate limited")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrSerialization    = errors.New("serialization error")
	ErrProvider         = errors.New("provider error")
	ErrNoValidSymbols   = errors.New("no valid symbols")
)

// NoDataError is returned when every provider is exhausted for a symbol.
type NoDataError struct {
	Symbol   string
	Kind     string
	Attempts int
	Last     error
}

func (e *NoDataError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("no %s data available for %s after %d attempts: %v", e.Kind, e.Symbol, e.Attempts, e.Last)
	}
	return fmt.Sprintf("no %s data available for %s", e.Kind, e.Symbol)
}

// Is reports ErrNoDataAvailable so callers can match the category.
func (e *NoDataError) Is(target error) bool {
	return target == ErrNoDataAvailable
}

func (e *NoDataError) Unwrap() error {
	return e.Last
}

// ProviderError wraps a failure from an upstream vendor or language model.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

// Is matches ErrProvider, and ErrRateLimited for 429 responses.
func (e *ProviderError) Is(target error) bool {
	if target == ErrProvider {
		return true
	}
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err signals upstream throttling: the
// ErrRateLimited sentinel, a ProviderError with status 429, or a language
// model quota message. Vendor bodies are not scanned for status numbers.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted")
}
