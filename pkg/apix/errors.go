package apix

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ============================================================================
// API Error Codes
// ============================================================================

const (
	// Error codes carried in the backend's error body. When the body carries
	// no code of its own, the client falls back to ErrorCodeHTTPError.
	ErrorCodeHTTPError          = "http_error"
	ErrorCodeValidation         = "validation_error"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeTokenExpired       = "token_expired"
	ErrorCodeForbidden          = "forbidden"
	ErrorCodeNotFound           = "not_found"
	ErrorCodeRateLimited        = "rate_limited"
	ErrorCodeServerError        = "server_error"
	ErrorCodeTimeout            = "request_timeout"
	ErrorCodeNetwork            = "network_error"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// ErrNoRefreshToken is returned when a 401 triggers a refresh but the
	// token store holds no refresh token. No network call is made.
	ErrNoRefreshToken = errors.New("apix: no refresh token available")

	// ErrRefreshFailed is returned to every request waiting on a refresh
	// cycle that ended in failure. Both tokens have been cleared by then.
	ErrRefreshFailed = errors.New("apix: token refresh failed")

	// ErrRetriesExhausted wraps the last attempt's error once the retry
	// budget is spent.
	ErrRetriesExhausted = errors.New("apix: retries exhausted")
)

// ============================================================================
// APIError
// ============================================================================

// APIError represents a failed HTTP exchange with the Gatherly backend.
// It implements the error interface and is the only error shape surfaced
// for non-2xx responses; transport failures are wrapped *url.Error values.
type APIError struct {
	// Status is the HTTP status code of the response.
	Status int `json:"-"`

	// Code is the machine-readable error code from the response body
	// (e.g. "invalid_credentials"), or "http_error" when absent.
	Code string `json:"code"`

	// Message is the human-readable description from the response body.
	Message string `json:"message"`

	// Details carries field-level information, typically validation errors.
	Details map[string]string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (HTTP %d)", e.Code, e.Status)
	}
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Code, e.Message, e.Status)
}

// Retryable reports whether the failure class may succeed on a later
// attempt. First-occurrence 401s are handled by the refresh path before
// this is consulted, so 401 is non-retryable here.
func (e *APIError) Retryable() bool {
	switch {
	case e.Status == 0:
		// Transport-level failure (timeout, connection error) promoted to
		// an APIError; no response was received.
		return true
	case e.Status == http.StatusTooManyRequests:
		return true
	case e.Status >= 500:
		return true
	default:
		return false
	}
}

// AsAPIError unwraps err into an *APIError if one is in its chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// ============================================================================
// Error body parsing
// ============================================================================

// errorBody is the backend's primary error shape.
type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// legacyErrorBody is the OAuth2-style shape still emitted by the auth
// endpoints. Mapped onto APIError for a single client-facing type.
type legacyErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// parseErrorResponse converts a non-2xx response body into an *APIError.
// It tries the structured error shape first, then the OAuth2-style shape,
// and finally falls back to a generic error built from the status code.
func parseErrorResponse(status int, body []byte) *APIError {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Code != "" {
		return &APIError{
			Status:  status,
			Code:    eb.Code,
			Message: eb.Message,
			Details: eb.Details,
		}
	}

	var leb legacyErrorBody
	if err := json.Unmarshal(body, &leb); err == nil && leb.Error != "" {
		return &APIError{
			Status:  status,
			Code:    leb.Error,
			Message: leb.ErrorDescription,
		}
	}

	// Some error paths still return {success:false, message:"..."} with no code.
	var env struct {
		Message string `json:"message"`
	}
	msg := http.StatusText(status)
	if err := json.Unmarshal(body, &env); err == nil && env.Message != "" {
		msg = env.Message
	}

	return &APIError{
		Status:  status,
		Code:    ErrorCodeHTTPError,
		Message: msg,
	}
}
