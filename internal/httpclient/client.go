// Package httpclient is the generic transport boundary: method, URL,
// headers and body in; status and body bytes out. Everything above it
// (auth, dispatch) is agnostic to connection details.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"
)

const defaultTimeout = 15 * time.Second

// Response is the raw result of one request.
type Response struct {
	Status  int
	Body    []byte
	Elapsed time.Duration
}

// TransportError wraps a network-level failure (as opposed to an HTTP
// error status, which is a successful transport round trip).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// Client is a thin wrapper over net/http with a single automatic
// retry on transient failures (connection reset, timeout).
type Client struct {
	hc *http.Client
}

func New() *Client {
	return &Client{hc: &http.Client{Timeout: defaultTimeout}}
}

// NewWithTimeout is used for endpoints that must fail fast (the
// metadata server probe).
func NewWithTimeout(timeout time.Duration) *Client {
	return &Client{hc: &http.Client{Timeout: timeout}}
}

// Send issues one request. Network-level failures are retried once if
// transient, then surfaced as TransportError. Non-2xx statuses are not
// an error at this layer; callers decide what a status means.
func (c *Client) Send(ctx context.Context, method, url string, headers map[string]string, body []byte) (Response, error) {
	res, err := c.do(ctx, method, url, headers, body)
	if err != nil && retryable(ctx, err) {
		res, err = c.do(ctx, method, url, headers, body)
	}
	if err != nil {
		return Response{}, &TransportError{Err: err}
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, method, url string, headers map[string]string, body []byte) (Response, error) {
	var rd io.Reader
	if len(body) > 0 {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return Response{}, err
	}
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}
	return Response{Status: resp.StatusCode, Body: b, Elapsed: time.Since(start)}, nil
}

// retryable reports whether err looks like a transient network
// condition worth one more attempt. The caller's context ending never
// is; the client-level timeout is, and since it also matches
// context.DeadlineExceeded the two are told apart through ctx itself.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
