// ABOUTME: In-memory key/value store with TTL-based expiration
// ABOUTME: Holds password reset tokens and revoked token ids for the dev server

package devserver

import (
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TTLStore is a thread-safe expiring map.
type TTLStore struct {
	mu sync.Mutex
	c  *gocache.Cache
}

// NewTTLStore creates a store whose entries default to ttl and are swept
// every minute.
func NewTTLStore(ttl time.Duration) *TTLStore {
	return &TTLStore{c: gocache.New(ttl, time.Minute)}
}

// Get returns a live entry.
func (s *TTLStore) Get(key string) (interface{}, bool) {
	v, ok := s.c.Get(key)
	if !ok {
		slog.Debug("TTL store miss", "key", key)
	}
	return v, ok
}

// SetWithTTL stores a value with a custom TTL
func (s *TTLStore) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	s.c.Set(key, value, ttl)
	slog.Debug("TTL store set", "key", key, "ttl", ttl)
}

// Take returns a live entry and removes it, so it can be used once.
func (s *TTLStore) Take(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.Get(key)
	if ok {
		s.c.Delete(key)
	}
	return v, ok
}

// Has reports whether key holds a live entry.
func (s *TTLStore) Has(key string) bool {
	_, ok := s.c.Get(key)
	return ok
}

func revokedKey(jti string) string {
	return "revoked:" + jti
}

func resetKey(token string) string {
	return "reset:" + token
}
