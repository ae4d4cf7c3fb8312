// ABOUTME: HTTP client for the grading portal API
// ABOUTME: Attaches the bearer token and recovers from expiry with one shared refresh

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/uniportal/gradeportal/internal/tokenstore"
)

// DefaultTimeout bounds every request so a hung server cannot stall a caller.
const DefaultTimeout = 30 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Client is the API client for the grading portal backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      tokenstore.Store

	// refresh coordination
	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshOutcome
	onExpired  func(error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithTokenStore sets where the bearer token is read from and written to.
func WithTokenStore(s tokenstore.Store) Option {
	return func(c *Client) {
		c.store = s
	}
}

// New creates a new API client with the given base URL. Without
// WithTokenStore the token lives in memory only.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		store: tokenstore.NewMemoryStore(""),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// TokenStore returns the store shared with the session layer.
func (c *Client) TokenStore() tokenstore.Store {
	return c.store
}

// SetSessionExpiredHandler registers fn to run after a failed refresh has
// cleared the token store. fn must not call back into the client synchronously.
func (c *Client) SetSessionExpiredHandler(fn func(error)) {
	c.mu.Lock()
	c.onExpired = fn
	c.mu.Unlock()
}

// Request describes one API call.
type Request struct {
	Method string
	Path   string
	// Body is JSON-encoded when non-nil.
	Body any
	// SkipRecovery surfaces a 401 directly instead of refreshing the token.
	SkipRecovery bool
}

// response is a received HTTP response with its body already read.
type response struct {
	status    int
	body      []byte
	requestID string
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

func (r *response) err(unauthorized error) error {
	return &APIError{
		Kind:      kindForStatus(r.status, unauthorized),
		Status:    r.status,
		Message:   errorMessage(r.body),
		RequestID: r.requestID,
	}
}

// Do performs req with token recovery and decodes a 2xx body into out.
// out may be nil.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	body, err := c.call(ctx, req, ErrAuthenticationExpired)
	if err != nil {
		return err
	}
	return decodeInto(body, out)
}

// GetJSON is Do for a GET request.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path}, out)
}

// PostJSON is Do for a POST request.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: in}, out)
}

func decodeInto(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidServerResponse, err)
	}
	return nil
}

// call sends req and returns the body of a 2xx response. A 401 on a
// recoverable request goes through the shared refresh and is retried once.
func (c *Client) call(ctx context.Context, req Request, unauthorized error) ([]byte, error) {
	sentWith := c.store.Read()
	resp, err := c.roundTrip(ctx, req, sentWith)
	if err != nil {
		return nil, err
	}
	if resp.ok() {
		return resp.body, nil
	}
	if resp.status != http.StatusUnauthorized || req.SkipRecovery {
		return nil, resp.err(unauthorized)
	}

	token, err := c.recoverToken(ctx, sentWith)
	if err != nil {
		return nil, err
	}

	// Retried at most once; a second 401 is final.
	resp, err = c.roundTrip(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.err(unauthorized)
	}
	return resp.body, nil
}

// roundTrip performs a single HTTP exchange with the given bearer token.
func (c *Client) roundTrip(ctx context.Context, req Request, token string) (*response, error) {
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal input: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := ulid.Make().String()
	httpReq.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.handleRequestError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrNetworkUnavailable, err)
	}

	slog.Debug("API request",
		"request_id", requestID,
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return &response{status: resp.StatusCode, body: data, requestID: requestID}, nil
}

// handleRequestError converts transport failures into ErrNetworkUnavailable
// with a user-friendly message
func (c *Client) handleRequestError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%w: request canceled", ErrNetworkUnavailable)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timed out", ErrNetworkUnavailable)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: request timed out", ErrNetworkUnavailable)
	}
	return fmt.Errorf("%w: cannot connect to backend at %s: %v", ErrNetworkUnavailable, c.baseURL, err)
}
