// ABOUTME: Session provider owning identity, token and loading state
// ABOUTME: All session mutations go through login, register, logout and refresh

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/uniportal/gradeportal/internal/client"
	"github.com/uniportal/gradeportal/internal/identity"
	"github.com/uniportal/gradeportal/internal/tokenstore"
)

// DefaultSettleDelay is how long Start waits before resolving a stored token.
const DefaultSettleDelay = 50 * time.Millisecond

// Backend is the subset of the API client the provider needs.
type Backend interface {
	Login(ctx context.Context, creds client.Credentials) (*identity.Identity, string, error)
	Register(ctx context.Context, reg client.Registration) (*identity.Identity, string, error)
	Me(ctx context.Context) (*identity.Identity, error)
	Logout(ctx context.Context) error
	TokenStore() tokenstore.Store
	SetSessionExpiredHandler(fn func(error))
}

// AuthResult is returned by a successful login or registration.
type AuthResult struct {
	Identity *identity.Identity
	Token    string
}

// Provider holds the session for the running client.
type Provider struct {
	api    Backend
	store  tokenstore.Store
	settle time.Duration

	mu      sync.Mutex
	state   State
	subs    map[int]func(State)
	nextSub int

	resolve singleflight.Group
}

// Option configures a Provider.
type Option func(*Provider)

// WithSettleDelay overrides DefaultSettleDelay.
func WithSettleDelay(d time.Duration) Option {
	return func(p *Provider) {
		p.settle = d
	}
}

// New creates a provider in the unresolved phase and registers it with api so
// a failed token refresh clears the identity.
func New(api Backend, opts ...Option) *Provider {
	p := &Provider{
		api:    api,
		store:  api.TokenStore(),
		settle: DefaultSettleDelay,
		state:  State{Loading: true},
		subs:   make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(p)
	}
	api.SetSessionExpiredHandler(p.expire)
	return p
}

// State returns a snapshot of the session.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

// snapshot copies the state. Callers hold p.mu.
func (p *Provider) snapshot() State {
	s := p.state
	if s.Identity != nil {
		ident := *s.Identity
		s.Identity = &ident
	}
	return s
}

// Subscribe registers fn to receive every state change. The returned func
// unregisters it; views call it on teardown so late results are dropped.
func (p *Provider) Subscribe(fn func(State)) (cancel func()) {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// update applies fn to the state and notifies subscribers when it changed.
func (p *Provider) update(fn func(s *State)) {
	p.mu.Lock()
	before := p.state
	fn(&p.state)
	if before == p.state {
		p.mu.Unlock()
		return
	}
	snap := p.snapshot()
	subs := make([]func(State), 0, len(p.subs))
	for _, sub := range p.subs {
		subs = append(subs, sub)
	}
	p.mu.Unlock()

	for _, sub := range subs {
		sub(snap)
	}
}

func (p *Provider) setLoading(loading bool) {
	p.update(func(s *State) { s.Loading = loading })
}

// Start resolves the stored token into an identity. Without a token the
// session becomes anonymous immediately.
func (p *Provider) Start(ctx context.Context) error {
	if p.store.Read() == "" {
		p.update(func(s *State) {
			s.Identity = nil
			s.Loading = false
		})
		return nil
	}

	if p.settle > 0 {
		timer := time.NewTimer(p.settle)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			p.setLoading(false)
			return ctx.Err()
		}
	}

	if _, err := p.RefreshAuth(ctx); err != nil {
		if ctx.Err() != nil {
			slog.Debug("Session resolution abandoned, keeping stored token", "error", err)
			return err
		}
		slog.Info("Stored session could not be resolved", "error", err)
		return err
	}
	return nil
}

// Login authenticates with email and password.
func (p *Provider) Login(ctx context.Context, creds client.Credentials) (*AuthResult, error) {
	creds.Email = identity.NormalizeEmail(creds.Email)

	p.setLoading(true)
	defer p.setLoading(false)

	ident, token, err := p.api.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return p.establish(ident, token)
}

// Register creates an account and signs in as it. Server-side rules such as
// the admin seat cap come back as ordinary API errors.
func (p *Provider) Register(ctx context.Context, reg client.Registration) (*AuthResult, error) {
	reg.Email = identity.NormalizeEmail(reg.Email)

	p.setLoading(true)
	defer p.setLoading(false)

	ident, token, err := p.api.Register(ctx, reg)
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}
	return p.establish(ident, token)
}

// establish persists a freshly issued token and installs the identity.
func (p *Provider) establish(ident *identity.Identity, token string) (*AuthResult, error) {
	if err := p.store.Write(token); err != nil {
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}
	p.cacheIdentity(ident)

	p.update(func(s *State) {
		s.Identity = ident
		s.Loading = false
	})
	slog.Info("Session established", "user_id", ident.ID, "role", ident.Role.String())

	return &AuthResult{Identity: ident, Token: token}, nil
}

// Logout ends the session. The server call is best-effort: local state is
// cleared whatever it returns.
func (p *Provider) Logout(ctx context.Context) {
	if err := p.api.Logout(ctx); err != nil {
		slog.Warn("Server logout failed, clearing local session anyway", "error", err)
	}
	p.clear()
}

// RefreshAuth re-reads the identity from the server. Concurrent callers share
// one request, which runs detached from any single caller's context. A caller
// whose ctx ends gets ctx.Err() and the session is left as it was. A failed
// request clears the session and the error is returned.
func (p *Provider) RefreshAuth(ctx context.Context) (*identity.Identity, error) {
	ch := p.resolve.DoChan("me", func() (interface{}, error) {
		p.setLoading(true)
		defer p.setLoading(false)

		ident, err := p.api.Me(context.WithoutCancel(ctx))
		if err != nil {
			p.clear()
			return nil, err
		}
		p.cacheIdentity(ident)
		p.update(func(s *State) {
			s.Identity = ident
			s.Loading = false
		})
		return ident, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("refresh auth: %w", res.Err)
		}
		ident := *res.Val.(*identity.Identity)
		return &ident, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("refresh auth: %w", ctx.Err())
	}
}

// CachedIdentity returns the last identity written to the token store. It
// may be stale; the server is authoritative.
func (p *Provider) CachedIdentity() *identity.Identity {
	return p.store.ReadIdentity()
}

func (p *Provider) cacheIdentity(ident *identity.Identity) {
	if err := p.store.WriteIdentity(ident); err != nil {
		slog.Warn("Failed to cache identity", "error", err)
	}
}

// clear removes the token and identity.
func (p *Provider) clear() {
	if err := p.store.Clear(); err != nil {
		slog.Error("Failed to clear token store", "error", err)
	}
	p.update(func(s *State) {
		s.Identity = nil
		s.Loading = false
	})
}

// expire is called by the client after a refresh failed and the token store
// was cleared.
func (p *Provider) expire(err error) {
	slog.Info("Session expired", "error", err)
	p.update(func(s *State) {
		s.Identity = nil
		s.Loading = false
	})
}
