// ABOUTME: Development API server implementing the portal's auth contract
// ABOUTME: chi router with JWT sessions, reset tokens, RBAC sample routes and metrics

package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/uniportal/gradeportal/internal/config"
	"github.com/uniportal/gradeportal/internal/identity"
)

// Server serves the auth API from memory.
type Server struct {
	cfg         *config.ServerConfig
	users       *UserStore
	tokens      *TokenIssuer
	ttl         *TTLStore
	validate    *validator.Validate
	registry    *prometheus.Registry
	metrics     *metrics
	authLimiter *AttemptLimiter
	notifyReset func(email, token string)
	now         func() time.Time
	bcryptCost  int
}

// Option configures a Server.
type Option func(*Server)

// WithClock replaces time.Now for token issue and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithResetNotifier replaces the default delivery of password reset tokens,
// which only logs them.
func WithResetNotifier(fn func(email, token string)) Option {
	return func(s *Server) {
		s.notifyReset = fn
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) {
		s.bcryptCost = cost
	}
}

// New creates a server and seeds accounts when cfg.SeedUsers is set.
func New(cfg *config.ServerConfig, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
		registry:   prometheus.NewRegistry(),
		notifyReset: func(email, token string) {
			slog.Info("Password reset requested", "email", email, "reset_path", "/api/auth/reset-password/"+token)
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.users = NewUserStore(s.bcryptCost)
	s.tokens = NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshWindow, s.now)
	s.ttl = NewTTLStore(cfg.ResetTokenTTL)
	s.metrics = newMetrics(s.registry)
	s.authLimiter = NewAttemptLimiter(cfg.RateLimitAuth, time.Minute)
	s.validate = newValidator()

	if cfg.SeedUsers {
		if err := s.users.Seed(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Users exposes the account store.
func (s *Server) Users() *UserStore {
	return s.users
}

// newValidator reports JSON field names in validation errors.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequest)
	r.Use(CORS(s.cfg.CORSAllowedOrigins))

	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.limitAttempts)
			r.Post("/login", s.handleLogin)
			r.Post("/register", s.handleRegister)
			r.Post("/forgot-password", s.handleForgotPassword)
			r.Post("/reset-password/{token}", s.handleResetPassword)
		})
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)
		r.With(s.requireAuth).Get("/me", s.handleMe)
	})

	for _, role := range identity.Roles {
		r.With(s.requireAuth, requireRole(role)).Get("/api"+role.Home()+"/overview", s.handleOverview)
	}

	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response as JSON with the given status code.
func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, struct {
		Error string `json:"error"`
		Code  int    `json:"code"`
	}{
		Error: message,
		Code:  code,
	})
}
