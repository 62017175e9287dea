package httpclient

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"a":1}`, string(b))
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := New()
	res, err := c.Send(context.Background(), "POST", srv.URL, map[string]string{"Authorization": "Bearer tok"}, []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, `{"ok":true}`, string(res.Body))
	assert.Greater(t, res.Elapsed.Nanoseconds(), int64(0))
}

// An HTTP error status is a successful transport round trip, not an
// error.
func TestSendNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, "nope")
	}))
	defer srv.Close()

	c := New()
	res, err := c.Send(context.Background(), "GET", srv.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Equal(t, "nope", string(res.Body))
}

// The first attempt dies mid-connection; the automatic retry lands.
func TestSendRetriesTransient(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		io.WriteString(w, "second time lucky")
	}))
	defer srv.Close()

	c := New()
	res, err := c.Send(context.Background(), "GET", srv.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "second time lucky", string(res.Body))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestSendCancelledContext(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New()
	_, err := c.Send(ctx, "GET", srv.URL, nil, nil)
	require.Error(t, err)

	var te *TransportError
	assert.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, context.Canceled)
	// cancellation is never retried
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

// A hung server trips the client's own timeout; that is transient and
// gets the one retry. Only the caller's context stops it.
func TestSendRetriesClientTimeout(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			time.Sleep(200 * time.Millisecond)
			return
		}
		io.WriteString(w, "woke up")
	}))
	defer srv.Close()

	c := NewWithTimeout(50 * time.Millisecond)
	res, err := c.Send(context.Background(), "GET", srv.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "woke up", string(res.Body))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestRetryable(t *testing.T) {
	live := context.Background()
	assert.True(t, retryable(live, io.EOF))
	assert.True(t, retryable(live, io.ErrUnexpectedEOF))
	assert.True(t, retryable(live, syscall.ECONNRESET))
	assert.True(t, retryable(live, syscall.EPIPE))
	assert.True(t, retryable(live, net.ErrClosed))
	// the client-level timeout also matches context.DeadlineExceeded;
	// it stays transient while the caller's context is live
	assert.True(t, retryable(live, context.DeadlineExceeded))

	done, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, retryable(done, context.Canceled))
	assert.False(t, retryable(done, io.EOF))
}
