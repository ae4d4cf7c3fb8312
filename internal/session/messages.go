// ABOUTME: User-facing messages for failed sign-in and registration
// ABOUTME: Maps API error kinds and status codes to short explanations

package session

import (
	"errors"
	"net/http"

	"github.com/uniportal/gradeportal/internal/client"
)

const genericFailure = "Something went wrong, please try again"

// Describe turns a Login or Register error into a message for the user.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, client.ErrNetworkUnavailable) {
		return "Cannot reach the server"
	}
	if errors.Is(err, client.ErrInvalidServerResponse) {
		return "The server sent an unexpected response"
	}

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return genericFailure
	}
	switch apiErr.Status {
	case http.StatusUnauthorized:
		return "Invalid email or password"
	case http.StatusForbidden:
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return "Account is not verified or access is restricted"
	case http.StatusNotFound:
		return "No account found for that email"
	case http.StatusConflict:
		return "An account with that email already exists"
	}
	if apiErr.Message != "" {
		return apiErr.Message
	}
	return genericFailure
}
