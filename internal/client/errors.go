// ABOUTME: Error taxonomy for portal API calls
// ABOUTME: Sentinel kinds matched with errors.Is plus APIError carrying HTTP details

package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidServerResponse means the call succeeded at the transport level
	// but the body lacked a field the operation needs.
	ErrInvalidServerResponse = errors.New("invalid server response")
	// ErrAuthenticationExpired is a 401 on an ordinary request.
	ErrAuthenticationExpired = errors.New("authentication expired")
	// ErrAuthenticationRejected is a 401 from the refresh call itself.
	ErrAuthenticationRejected = errors.New("authentication rejected")
	// ErrInvalidCredentials is a 401 from login or register.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNetworkUnavailable means no response was received.
	ErrNetworkUnavailable = errors.New("network unavailable")

	ErrBadRequest       = errors.New("bad request")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrServerError      = errors.New("server error")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Kind      error
	Status    int
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend returned status %d", e.Status)
}

// Unwrap exposes the kind so errors.Is(err, ErrNotFound) works.
func (e *APIError) Unwrap() error {
	return e.Kind
}

// StatusCode returns the HTTP status behind err, or 0 when err carries none.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// kindForStatus maps a non-2xx status to its sentinel. unauthorized is the
// kind a 401 takes for the call being made.
func kindForStatus(status int, unauthorized error) error {
	switch {
	case status == http.StatusUnauthorized:
		return unauthorized
	case status == http.StatusForbidden:
		return ErrPermissionDenied
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrConflict
	case status >= 500:
		return ErrServerError
	case status >= 400:
		return ErrBadRequest
	default:
		return ErrServerError
	}
}

// errorMessage pulls a human message out of an error body. Accepts
// {"message": ...} and {"error": ...}.
func errorMessage(body []byte) string {
	var errResp struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return ""
	}
	if errResp.Message != "" {
		return errResp.Message
	}
	return errResp.Error
}
