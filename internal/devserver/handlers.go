// ABOUTME: Auth handlers for the development API server
// ABOUTME: Login, register, me, refresh, logout, password reset and role overviews

package devserver

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/uniportal/gradeportal/internal/identity"
)

const maxRequestBody = 1 << 20

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	Role      string `json:"role" validate:"required,oneof=admin teacher student"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// decode reads and validates a JSON body. It writes the error response and
// returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(dst); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(w, fmt.Sprintf("%s failed %s validation", verrs[0].Field(), verrs[0].Tag()), http.StatusBadRequest)
			return false
		}
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// issue signs a token for user and wraps it with the user payload.
func (s *Server) issue(w http.ResponseWriter, status int, user *User) {
	token, _, err := s.tokens.Issue(user, 0)
	if err != nil {
		slog.Error("Failed to sign token", "error", err)
		writeError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, status, map[string]interface{}{
		"data": map[string]interface{}{
			"token": token,
			"user":  user.toJSON(),
		},
	})
}

// handleLogin authenticates with email and password
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}

	user, ok := s.users.ByEmail(req.Email)
	if !ok || !user.CheckPassword(req.Password) {
		slog.Warn("Authentication failed", "email", identity.NormalizeEmail(req.Email))
		writeError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	if !user.IsActive {
		writeError(w, "Account is deactivated", http.StatusForbidden)
		return
	}

	s.issue(w, http.StatusOK, user)
}

// handleRegister creates an account and signs it in
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}
	role, _ := identity.ParseRole(req.Role)

	user, err := s.users.Create(&User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      role,
		IsActive:  true,
	}, req.Password, s.cfg.MaxAdmins)
	switch {
	case errors.Is(err, ErrEmailTaken):
		writeError(w, "An account with that email already exists", http.StatusConflict)
		return
	case errors.Is(err, ErrAdminSeatsFull):
		writeError(w, "Admin seats are full", http.StatusForbidden)
		return
	case err != nil:
		slog.Error("Failed to create user", "error", err)
		writeError(w, "Failed to create account", http.StatusInternalServerError)
		return
	}

	slog.Info("Account registered", "user_id", user.ID, "role", user.Role.String())
	s.issue(w, http.StatusCreated, user)
}

// handleMe returns the caller's user record
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": currentUser(r).toJSON()})
}

// handleRefresh exchanges a signed, possibly expired token for a new one
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	raw := bearerToken(r)
	if raw == "" {
		s.metrics.refreshes.WithLabelValues("rejected").Inc()
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	claims, err := s.tokens.VerifyForRefresh(raw)
	if err != nil {
		slog.Warn("Token refresh rejected", "error", err)
		s.metrics.refreshes.WithLabelValues("rejected").Inc()
		writeError(w, "Token refresh failed", http.StatusUnauthorized)
		return
	}
	if s.ttl.Has(revokedKey(claims.ID)) {
		s.metrics.refreshes.WithLabelValues("revoked").Inc()
		writeError(w, "Token has been revoked", http.StatusUnauthorized)
		return
	}
	user, ok := s.users.ByID(claims.UserID)
	if !ok || !user.IsActive {
		s.metrics.refreshes.WithLabelValues("rejected").Inc()
		writeError(w, "Account not available", http.StatusUnauthorized)
		return
	}

	token, _, err := s.tokens.Issue(user, claims.OrigIssuedAt)
	if err != nil {
		slog.Error("Failed to sign token", "error", err)
		writeError(w, "Failed to refresh session", http.StatusInternalServerError)
		return
	}
	s.revoke(claims)
	s.metrics.refreshes.WithLabelValues("ok").Inc()

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]string{"token": token}})
}

// revoke blocks a token id until it could no longer be refreshed anyway.
func (s *Server) revoke(claims *Claims) {
	until := time.Unix(claims.OrigIssuedAt, 0).Add(s.cfg.RefreshWindow)
	ttl := until.Sub(s.now())
	if ttl < time.Minute {
		ttl = time.Minute
	}
	s.ttl.SetWithTTL(revokedKey(claims.ID), true, ttl)
}

// handleLogout revokes the presented token. It always succeeds.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if raw := bearerToken(r); raw != "" {
		if claims, err := s.tokens.VerifyForRefresh(raw); err == nil {
			s.revoke(claims)
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleForgotPassword issues a reset token for a known email. The response
// is the same whether or not the account exists.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !s.decode(w, r, &req) {
		return
	}

	if user, ok := s.users.ByEmail(req.Email); ok {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			slog.Error("Failed to generate reset token", "error", err)
			writeError(w, "Failed to start password reset", http.StatusInternalServerError)
			return
		}
		token := hex.EncodeToString(b)
		s.ttl.SetWithTTL(resetKey(token), user.ID, s.cfg.ResetTokenTTL)
		s.notifyReset(user.Email, token)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "If that email is registered, a reset link has been sent",
	})
}

// handleResetPassword sets a new password using a one-time reset token
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !s.decode(w, r, &req) {
		return
	}

	v, ok := s.ttl.Take(resetKey(chi.URLParam(r, "token")))
	if !ok {
		writeError(w, "Reset token is invalid or has expired", http.StatusBadRequest)
		return
	}
	if err := s.users.SetPassword(v.(string), req.Password); err != nil {
		writeError(w, "Reset token is invalid or has expired", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset"})
}

// handleOverview is a protected per-role landing payload
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"role":        user.Role.String(),
			"greeting":    fmt.Sprintf("Welcome back, %s", user.FirstName),
			"generatedAt": s.now().UTC().Format(time.RFC3339),
		},
	})
}
