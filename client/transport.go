package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// retryDialer retries refused or reset connection attempts. Timed out
// attempts and DNS failures are returned immediately.
type retryDialer struct {
	dial    dialFunc
	retries int
	logger  *slog.Logger
}

// connectError marks a failure to establish a connection, as opposed to a
// failure on an established one.
type connectError struct {
	addr     string
	attempts int
	err      error
}

func (e *connectError) Error() string {
	return fmt.Sprintf("connect %s (%d attempts): %v", e.addr, e.attempts, e.err)
}

func (e *connectError) Unwrap() error { return e.err }

func (d *retryDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= d.retries; attempt++ {
		attempts++
		conn, err := d.dial(ctx, network, addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil || isTimeout(err) || isDNSError(err) {
			break
		}
		if attempt < d.retries {
			d.logger.Debug("connection attempt failed, retrying", "addr", addr, "attempt", attempt+1, "error", err)
		}
	}
	return nil, &connectError{addr: addr, attempts: attempts, err: lastErr}
}

// deadlineConn pushes the read deadline forward on every read and write, so
// a peer that goes silent for longer than timeout fails the pending read.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if err == nil {
		err = c.Conn.SetReadDeadline(time.Now().Add(c.timeout))
	}
	return n, err
}

// tlsDialer performs the handshake inside the dial so that a stalled
// handshake counts against the connection, not the response.
type tlsDialer struct {
	dial    dialFunc
	config  *tls.Config
	timeout time.Duration
}

func (d *tlsDialer) DialTLSContext(ctx context.Context, network, addr string) (net.Conn, error) {
	raw, err := d.dial(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	cfg := d.config.Clone()
	if cfg.ServerName == "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		cfg.ServerName = host
	}

	hsCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	conn := tls.Client(raw, cfg)
	if err := conn.HandshakeContext(hsCtx); err != nil {
		_ = raw.Close()
		return nil, &connectError{addr: addr, attempts: 1, err: fmt.Errorf("tls handshake: %w", err)}
	}
	return conn, nil
}

func newTransport(cfg Config, logger *slog.Logger) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectionTimeout,
		KeepAlive: 30 * time.Second,
	}
	rd := &retryDialer{
		dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &deadlineConn{Conn: conn, timeout: cfg.ResponseTimeout}, nil
		},
		retries: cfg.MaxAutoRetries,
		logger:  logger,
	}
	td := &tlsDialer{
		dial:    rd.DialContext,
		config:  &tls.Config{NextProtos: []string{"h2", "http/1.1"}},
		timeout: cfg.ConnectionTimeout,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           rd.DialContext,
		DialTLSContext:        td.DialTLSContext,
		MaxConnsPerHost:       cfg.MaxConnections,
		MaxIdleConns:          cfg.MaxConnections,
		MaxIdleConnsPerHost:   cfg.MaxConnections,
		IdleConnTimeout:       cfg.StaleConnectionCheck,
		TLSHandshakeTimeout:   cfg.ConnectionTimeout,
		ResponseHeaderTimeout: cfg.ResponseTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// classify maps an error from the HTTP round trip onto a failure kind.
func classify(method, url string, err error) error {
	kind := ErrIO
	var ce *connectError
	switch {
	case errors.As(err, &ce):
		if isTimeout(ce.err) {
			kind = ErrConnectionTimeout
		} else {
			kind = ErrConnectionFailed
		}
	case isTimeout(err):
		kind = ErrResponseTimeout
	}
	return &TransportError{Kind: kind, Method: method, URL: url, Err: err}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isDNSError(err error) bool {
	var de *net.DNSError
	return errors.As(err, &de)
}
