package provider

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
)

// Error codes shared by all providers
const (
	CodeAuthFailed     = "AUTH_FAILED"
	CodeNotFound       = "NOT_FOUND"
	CodeRateLimited    = "RATE_LIMITED"
	CodeUnavailable    = "UNAVAILABLE"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnknown        = "UNKNOWN"
)

// ProviderError represents an error from a provider
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	Retry      bool
	RetryAfter int // Seconds to wait before retry
	StatusCode int
}

func (e *ProviderError) Error() string {
	return e.Message
}

// NotFound builds the error providers return when a search comes back empty
func NotFound(providerName, message string) *ProviderError {
	return &ProviderError{
		Provider: providerName,
		Code:     CodeNotFound,
		Message:  message,
	}
}

// IsNotFound reports whether err is a NOT_FOUND provider error
func IsNotFound(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.Code == CodeNotFound
}

// IsTransient reports whether a failed call is worth retrying. Rate limits,
// service outages, 5xx responses and timeouts are transient; auth failures,
// empty results and invalid requests are not. Cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var perr *ProviderError
	if errors.As(err, &perr) {
		switch perr.Code {
		case CodeRateLimited, CodeUnavailable:
			return true
		case CodeAuthFailed, CodeNotFound, CodeInvalidRequest:
			return false
		}
		if perr.StatusCode >= 500 {
			return true
		}
		return perr.Retry
	}
	return false
}

// StatusFromMessage extracts a 3 digit HTTP status embedded in a client
// error message, or 0.
func StatusFromMessage(msg string) int {
	for _, field := range strings.FieldsFunc(msg, func(r rune) bool {
		return r < '0' || r > '9'
	}) {
		if len(field) != 3 {
			continue
		}
		if code, err := strconv.Atoi(field); err == nil && code >= 400 && code < 600 {
			return code
		}
	}
	return 0
}
