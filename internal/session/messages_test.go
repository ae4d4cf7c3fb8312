// ABOUTME: Tests for user-facing error messages
// ABOUTME: Verifies the status and kind to message mapping

package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/uniportal/gradeportal/internal/client"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"network", fmt.Errorf("login failed: %w", client.ErrNetworkUnavailable), "Cannot reach the server"},
		{"bad payload", fmt.Errorf("%w: missing user", client.ErrInvalidServerResponse), "The server sent an unexpected response"},
		{"401", &client.APIError{Kind: client.ErrInvalidCredentials, Status: 401, Message: "nope"}, "Invalid email or password"},
		{"403 with message", &client.APIError{Kind: client.ErrPermissionDenied, Status: 403, Message: "Account is deactivated"}, "Account is deactivated"},
		{"403 bare", &client.APIError{Kind: client.ErrPermissionDenied, Status: 403}, "Account is not verified or access is restricted"},
		{"404", &client.APIError{Kind: client.ErrNotFound, Status: 404}, "No account found for that email"},
		{"409", &client.APIError{Kind: client.ErrConflict, Status: 409}, "An account with that email already exists"},
		{"400 with message", &client.APIError{Kind: client.ErrBadRequest, Status: 400, Message: "password failed min validation"}, "password failed min validation"},
		{"500 bare", &client.APIError{Kind: client.ErrServerError, Status: 500}, "Something went wrong, please try again"},
		{"unknown", errors.New("boom"), "Something went wrong, please try again"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.err); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}
