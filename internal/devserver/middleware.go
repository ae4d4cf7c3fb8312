// ABOUTME: Request logging, metrics, bearer authentication and role gating
// ABOUTME: chi-compatible middleware for the development API server

package devserver

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/uniportal/gradeportal/internal/identity"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// metrics are the server's Prometheus collectors.
type metrics struct {
	requests  *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	throttled *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradeportal_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradeportal_token_refreshes_total",
			Help: "Token refresh attempts by outcome.",
		}, []string{"outcome"}),
		throttled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradeportal_auth_throttled_total",
			Help: "Auth requests rejected for exceeding the attempt budget.",
		}, []string{"path"}),
	}
	reg.MustRegister(m.requests, m.refreshes, m.throttled)
	return m
}

// logRequest logs each request with a correlation ID and counts it.
// A client-supplied X-Request-ID is kept.
func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = ulid.Make().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.metrics.requests.WithLabelValues(route, r.Method, strconv.Itoa(wrapped.statusCode)).Inc()

		slog.Info("Request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"latency_ms", time.Since(start).Milliseconds(),
		)
	})
}

type contextKey string

const (
	userKey   contextKey = "user"
	claimsKey contextKey = "claims"
)

// bearerToken returns the token from the Authorization header, or "".
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}

// requireAuth rejects requests without a valid, unrevoked access token for an
// active user.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		claims, err := s.tokens.Verify(raw)
		if err != nil {
			slog.Debug("Token rejected", "error", err)
			writeError(w, "Token expired or invalid", http.StatusUnauthorized)
			return
		}
		if s.ttl.Has(revokedKey(claims.ID)) {
			writeError(w, "Token has been revoked", http.StatusUnauthorized)
			return
		}
		user, ok := s.users.ByID(claims.UserID)
		if !ok || !user.IsActive {
			writeError(w, "Account not available", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = context.WithValue(ctx, claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentUser returns the user set by requireAuth.
func currentUser(r *http.Request) *User {
	u, _ := r.Context().Value(userKey).(*User)
	return u
}

// requireRole gates a route to one role. It fails closed: no user or any
// other role gets 403.
func requireRole(role identity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := currentUser(r)
			if user == nil || user.Role != role {
				callerRole := "anonymous"
				if user != nil {
					callerRole = user.Role.String()
				}
				slog.Warn("RBAC authorization denied",
					"path", r.URL.Path,
					"required_role", role.String(),
					"user_role", callerRole,
				)
				writeError(w, "Insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
