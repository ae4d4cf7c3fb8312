// ABOUTME: Per-client attempt budget for the credential endpoints
// ABOUTME: Budgets live in go-cache and lapse when their window ends

package devserver

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// budget is one client's spend in the current window.
type budget struct {
	spent   int
	resetAt time.Time
}

// AttemptLimiter gives each client max attempts per window. A window opens on
// the client's first attempt; go-cache drops it once it lapses.
type AttemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	budgets *gocache.Cache
}

// NewAttemptLimiter creates a limiter allowing limit attempts per window.
func NewAttemptLimiter(limit int, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{
		max:     limit,
		window:  window,
		budgets: gocache.New(window, window),
	}
}

// Take spends one attempt for client. It returns the attempts left and, when
// the budget is exhausted, false and how long until it resets.
func (l *AttemptLimiter) Take(client string) (left int, wait time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if v, found := l.budgets.Get(client); found {
		b := v.(*budget)
		if b.spent >= l.max {
			return 0, b.resetAt.Sub(now), false
		}
		b.spent++
		return l.max - b.spent, 0, true
	}

	l.budgets.Set(client, &budget{spent: 1, resetAt: now.Add(l.window)}, l.window)
	return l.max - 1, 0, true
}

// clientAddr is the caller's address: the first valid X-Forwarded-For entry,
// else the host part of RemoteAddr.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// limitAttempts rejects a client's requests with 429 once its budget is spent.
func (s *Server) limitAttempts(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := clientAddr(r)
		left, wait, ok := s.authLimiter.Take(addr)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.authLimiter.max))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(left))
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		secs := int((wait + time.Second - 1) / time.Second)
		if secs < 1 {
			secs = 1
		}
		s.metrics.throttled.WithLabelValues(r.URL.Path).Inc()
		slog.Warn("Too many auth attempts", "client", addr, "path", r.URL.Path, "retry_after", secs)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeError(w, "Rate limit exceeded", http.StatusTooManyRequests)
	})
}
