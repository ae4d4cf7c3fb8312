// ABOUTME: Authentication endpoints of the portal API
// ABOUTME: Login, register, who-am-I, refresh, logout and password reset calls

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/uniportal/gradeportal/internal/identity"
)

// Credentials is the login request body
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the account creation request body
type Registration struct {
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Email     string        `json:"email"`
	Password  string        `json:"password"`
	Role      identity.Role `json:"role"`
}

// Login calls POST /api/auth/login. A 401 here means bad credentials, so it
// never triggers a token refresh.
func (c *Client) Login(ctx context.Context, creds Credentials) (*identity.Identity, string, error) {
	body, err := c.call(ctx, Request{
		Method:       http.MethodPost,
		Path:         "/api/auth/login",
		Body:         creds,
		SkipRecovery: true,
	}, ErrInvalidCredentials)
	if err != nil {
		return nil, "", err
	}
	ident, token, err := identity.DecodeAuthPayload(body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidServerResponse, err)
	}
	return ident, token, nil
}

// Register calls POST /api/auth/register
func (c *Client) Register(ctx context.Context, reg Registration) (*identity.Identity, string, error) {
	body, err := c.call(ctx, Request{
		Method:       http.MethodPost,
		Path:         "/api/auth/register",
		Body:         reg,
		SkipRecovery: true,
	}, ErrInvalidCredentials)
	if err != nil {
		return nil, "", err
	}
	ident, token, err := identity.DecodeAuthPayload(body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidServerResponse, err)
	}
	return ident, token, nil
}

// Me calls GET /api/auth/me with the stored token
func (c *Client) Me(ctx context.Context) (*identity.Identity, error) {
	body, err := c.call(ctx, Request{
		Method: http.MethodGet,
		Path:   "/api/auth/me",
	}, ErrAuthenticationExpired)
	if err != nil {
		return nil, err
	}
	ident, err := identity.DecodeUserPayload(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidServerResponse, err)
	}
	return ident, nil
}

// Refresh calls POST /api/auth/refresh with the stored token and returns the
// new token. It does not persist it.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	body, err := c.call(ctx, Request{
		Method:       http.MethodPost,
		Path:         "/api/auth/refresh",
		SkipRecovery: true,
	}, ErrAuthenticationRejected)
	if err != nil {
		return "", err
	}
	token, err := identity.DecodeTokenPayload(body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidServerResponse, err)
	}
	return token, nil
}

// Logout calls POST /api/auth/logout
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.call(ctx, Request{
		Method:       http.MethodPost,
		Path:         "/api/auth/logout",
		SkipRecovery: true,
	}, ErrAuthenticationExpired)
	return err
}

// ForgotPassword calls POST /api/auth/forgot-password
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	_, err := c.call(ctx, Request{
		Method:       http.MethodPost,
		Path:         "/api/auth/forgot-password",
		Body:         map[string]string{"email": identity.NormalizeEmail(email)},
		SkipRecovery: true,
	}, ErrAuthenticationExpired)
	return err
}

// ResetPassword calls POST /api/auth/reset-password/:token
func (c *Client) ResetPassword(ctx context.Context, resetToken, password string) error {
	_, err := c.call(ctx, Request{
		Method:       http.MethodPost,
		Path:         "/api/auth/reset-password/" + url.PathEscape(resetToken),
		Body:         map[string]string{"password": password},
		SkipRecovery: true,
	}, ErrAuthenticationExpired)
	return err
}
