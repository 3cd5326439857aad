// Package client is a client for the Zenvia messaging API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/LeventeLantos/zenvia-go/model"
)

// TokenHeader carries the API token on every request.
const TokenHeader = "X-API-TOKEN"

const (
	DefaultBaseURL              = "https://api.zenvia.com"
	DefaultMaxConnections       = 100
	DefaultConnectionTimeout    = 25 * time.Second
	DefaultResponseTimeout      = 60 * time.Second
	DefaultMaxAutoRetries       = 4
	DefaultStaleConnectionCheck = 5 * time.Second
)

const subscriptionsPath = "/v1/subscriptions"

// Config holds configuration for creating a Client. Zero values select the
// defaults.
type Config struct {
	// APIToken is sent in the X-API-TOKEN header. Required.
	APIToken string

	// BaseURL defaults to "https://api.zenvia.com".
	BaseURL string

	// MaxConnections bounds the connection pool and the number of requests
	// in flight. Defaults to 100.
	MaxConnections int

	// ConnectionTimeout bounds each connection attempt and, for https, the
	// TLS handshake. Defaults to 25s.
	ConnectionTimeout time.Duration

	// ResponseTimeout bounds every wait for data from the server once
	// connected, including each read of the response body. Idle pooled
	// connections are dropped after the same period. Defaults to 60s.
	ResponseTimeout time.Duration

	// MaxAutoRetries is how many times a refused connection attempt is
	// retried. Defaults to 4; negative disables retries.
	MaxAutoRetries int

	// ConnectionPoolTimeout bounds the wait for a free pooled connection.
	// Zero waits indefinitely.
	ConnectionPoolTimeout time.Duration

	// StaleConnectionCheck is how long a connection may sit idle in the pool
	// before it is discarded instead of reused. Defaults to 5s.
	StaleConnectionCheck time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = DefaultConnectionTimeout
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = DefaultResponseTimeout
	}
	switch {
	case cfg.MaxAutoRetries == 0:
		cfg.MaxAutoRetries = DefaultMaxAutoRetries
	case cfg.MaxAutoRetries < 0:
		cfg.MaxAutoRetries = 0
	}
	if cfg.ConnectionPoolTimeout < 0 {
		cfg.ConnectionPoolTimeout = 0
	}
	if cfg.StaleConnectionCheck <= 0 {
		cfg.StaleConnectionCheck = DefaultStaleConnectionCheck
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// Client is safe for concurrent use. It must be closed once no longer needed.
type Client struct {
	cfg        Config
	transport  *http.Transport
	httpClient *http.Client
	slots      *semaphore.Weighted
	closed     atomic.Bool
	logger     *slog.Logger
}

func New(cfg Config) (*Client, error) {
	if cfg.APIToken == "" {
		return nil, errors.New("zenvia: APIToken is required")
	}
	cfg = cfg.withDefaults()
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("zenvia: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}

	transport := newTransport(cfg, cfg.Logger)
	return &Client{
		cfg:        cfg,
		transport:  transport,
		httpClient: &http.Client{Transport: transport},
		slots:      semaphore.NewWeighted(int64(cfg.MaxConnections)),
		logger:     cfg.Logger,
	}, nil
}

// Config returns the effective configuration, defaults applied.
func (c *Client) Config() Config {
	return c.cfg
}

// Close releases pooled connections. Requests made after Close, or on a nil
// *Client, fail with ErrClientClosed.
func (c *Client) Close() error {
	if c == nil || c.closed.Swap(true) {
		return nil
	}
	c.transport.CloseIdleConnections()
	return nil
}

func (c *Client) list(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) get(ctx context.Context, path, id string, out any) error {
	return c.do(ctx, http.MethodGet, path+"/"+url.PathEscape(id), nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) patch(ctx context.Context, path, id string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path+"/"+url.PathEscape(id), body, out)
}

func (c *Client) delete(ctx context.Context, path, id string) error {
	return c.do(ctx, http.MethodDelete, path+"/"+url.PathEscape(id), nil, nil)
}

// do performs one authenticated request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c == nil || c.closed.Load() {
		return ErrClientClosed
	}
	target := c.cfg.BaseURL + path

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("zenvia: encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("zenvia: create request: %w", err)
	}
	req.Header.Set(TokenHeader, c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := c.acquire(ctx); err != nil {
		kind := ErrConnectionTimeout
		if ctx.Err() != nil {
			kind = ErrIO
		}
		return &TransportError{Kind: kind, Method: method, URL: target, Err: err}
	}
	defer c.slots.Release(1)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(ctx, method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportError(ctx, method, target, err)
	}

	c.logger.Debug("zenvia request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newUnsuccessfulRequestError(method, target, resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &UnexpectedResponseError{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       string(data),
			Err:        err,
		}
	}
	return nil
}

// acquire waits for an in-flight slot, bounded by ConnectionPoolTimeout.
func (c *Client) acquire(ctx context.Context) error {
	if c.cfg.ConnectionPoolTimeout <= 0 {
		return c.slots.Acquire(ctx, 1)
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectionPoolTimeout)
	defer cancel()
	if err := c.slots.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("timed out after %s waiting for a pooled connection: %w", c.cfg.ConnectionPoolTimeout, err)
	}
	return nil
}

// transportError keeps caller cancellation distinguishable from the
// configured timeouts.
func (c *Client) transportError(ctx context.Context, method, target string, err error) error {
	if ctx.Err() != nil {
		return &TransportError{Kind: ErrIO, Method: method, URL: target, Err: ctx.Err()}
	}
	return classify(method, target, err)
}

func newUnsuccessfulRequestError(method, target string, status int, data []byte) error {
	e := &UnsuccessfulRequestError{
		Method:     method,
		URL:        target,
		StatusCode: status,
		RawBody:    string(data),
	}
	var body model.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil {
		e.Err = fmt.Errorf("decode error response: %w", err)
		return e
	}
	e.Body = &body
	return e
}
