// Package selectel is a client for the Selectel Cloud Storage API. It handles
// authentication against the three supported auth protocol versions, caches
// the session token and the account's storage shard, and exposes container
// and object operations on top of a single request dispatcher.
package selectel

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Use errors.Is(err, selectel.ErrAuth) to check.
var (
	ErrConfig            = errors.New("selectel: invalid configuration")
	ErrValidation        = errors.New("selectel: invalid argument")
	ErrAuth              = errors.New("selectel: authentication failed")
	ErrParse             = errors.New("selectel: malformed response")
	ErrDomainResolution  = errors.New("selectel: numeric domain resolution failed")
	ErrUnsupportedFormat = errors.New("selectel: unsupported listing format")
)

// Sentinel errors for HTTP status code classification.
var (
	ErrBadRequest   = errors.New("selectel: bad request")
	ErrUnauthorized = errors.New("selectel: unauthorized")
	ErrForbidden    = errors.New("selectel: forbidden")
	ErrNotFound     = errors.New("selectel: not found")
	ErrConflict     = errors.New("selectel: conflict")
	ErrThrottled    = errors.New("selectel: throttled")
	ErrServerError  = errors.New("selectel: server error")
	ErrUnexpected   = errors.New("selectel: unexpected status")
)

// APIError is returned for a non-2xx response. It wraps a status sentinel,
// so errors.Is(err, ErrNotFound) works on it.
type APIError struct {
	StatusCode int
	RequestID  string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("selectel: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("selectel: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		if isSuccess(code) {
			return nil
		}

		return ErrUnexpected
	}
}

func isSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}

// transactionHeader carries the Swift request id on every response.
const transactionHeader = "X-Trans-Id"

// newAPIError builds an APIError from a response whose body has already been read.
func newAPIError(resp *http.Response, body []byte) *APIError {
	return &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get(transactionHeader),
		Message:    string(body),
		Err:        classifyStatus(resp.StatusCode),
	}
}
