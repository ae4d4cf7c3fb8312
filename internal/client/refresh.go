// ABOUTME: Single-flight token refresh shared by concurrent requests
// ABOUTME: Queues 401'd requests behind one refresh call and drains them in order

package client

import (
	"context"
	"fmt"
	"log/slog"
)

// refreshOutcome is delivered to every request waiting on a refresh.
type refreshOutcome struct {
	token string
	err   error
}

// recoverToken returns a token to retry with after a 401. sentWith is the
// token the failed request carried.
//
// At most one refresh call is in flight. Requests that hit a 401 while it
// runs wait in c.waiters and receive its outcome in enqueue order.
func (c *Client) recoverToken(ctx context.Context, sentWith string) (string, error) {
	c.mu.Lock()
	if c.refreshing {
		ch := make(chan refreshOutcome, 1)
		c.waiters = append(c.waiters, ch)
		queued := len(c.waiters)
		c.mu.Unlock()

		slog.Debug("Request queued behind token refresh", "position", queued)
		select {
		case out := <-ch:
			return out.token, out.err
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrNetworkUnavailable, ctx.Err())
		}
	}

	current := c.store.Read()
	if current == "" {
		// Nothing to refresh: the request was anonymous or the session was
		// already cleared by an earlier failed refresh.
		c.mu.Unlock()
		return "", fmt.Errorf("%w: no session to refresh", ErrAuthenticationExpired)
	}
	if current != sentWith {
		// A refresh settled after this request was sent; retry with its token.
		c.mu.Unlock()
		return current, nil
	}

	c.refreshing = true
	c.mu.Unlock()

	// The refresh outlives the request that triggered it; other requests
	// depend on its result.
	token, err := c.Refresh(context.WithoutCancel(ctx))
	superseded := false
	if err == nil {
		// Only replace the token the refresh was for. A logout or a new
		// login while it ran owns the slot now.
		swapped, werr := c.store.Replace(sentWith, token)
		switch {
		case werr != nil:
			err = fmt.Errorf("failed to persist refreshed token: %w", werr)
		case !swapped:
			slog.Info("Session changed during token refresh, discarding refreshed token")
			superseded = true
			token = ""
			err = fmt.Errorf("%w: session ended during refresh", ErrAuthenticationExpired)
		}
	}
	if err != nil && !superseded {
		slog.Warn("Token refresh failed, clearing session", "error", err)
		if cerr := c.store.Clear(); cerr != nil {
			slog.Error("Failed to clear token store", "error", cerr)
		}
	}

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	onExpired := c.onExpired
	c.mu.Unlock()

	if err != nil && !superseded && onExpired != nil {
		onExpired(err)
	}

	for _, ch := range waiters {
		ch <- refreshOutcome{token: token, err: err}
	}
	if len(waiters) > 0 {
		slog.Debug("Drained refresh queue", "count", len(waiters), "ok", err == nil)
	}

	if err != nil {
		return "", err
	}
	return token, nil
}
