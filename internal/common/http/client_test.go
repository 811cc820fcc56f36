package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type echoRequest struct {
	Prompt string `json:"prompt"`
}

type echoResponse struct {
	Text string `json:"text"`
}

// newFlakyServer fails the first `failures` requests with status, then echoes the prompt.
func newFlakyServer(t *testing.T, failures int32, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= failures {
			http.Error(w, "try later", status)
			return
		}
		var req echoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(echoResponse{Text: "echo: " + req.Prompt})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// ==========================
// PostJSON Tests
// ==========================

func TestPostJSON_Success(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, http.MethodPost, r.Method)
		_ = json.NewEncoder(w).Encode(echoResponse{Text: "ok"})
	}))
	defer srv.Close()

	c := NewClient(time.Second, WithHeader("Authorization", "Bearer k"))
	var out echoResponse
	require.NoError(t, c.PostJSON(context.Background(), srv.URL, echoRequest{Prompt: "p"}, &out))
	assert.Equal(t, "ok", out.Text)
	assert.Equal(t, "Bearer k", gotHeader)
}

func TestPostJSON_RetriesServerErrors(t *testing.T) {
	srv, calls := newFlakyServer(t, 2, http.StatusServiceUnavailable)

	c := NewClient(time.Second, WithMaxRetries(3), WithBackoff(time.Millisecond))
	var out echoResponse
	require.NoError(t, c.PostJSON(context.Background(), srv.URL, echoRequest{Prompt: "hello"}, &out))

	assert.Equal(t, "echo: hello", out.Text, "body must be resent on every attempt")
	assert.Equal(t, int32(3), calls.Load())
}

func TestPostJSON_RetriesExhausted(t *testing.T) {
	srv, calls := newFlakyServer(t, 10, http.StatusBadGateway)

	c := NewClient(time.Second, WithMaxRetries(2), WithBackoff(time.Millisecond))
	err := c.PostJSON(context.Background(), srv.URL, echoRequest{}, nil)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "try later", statusErr.Body)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPostJSON_ClientErrorNotRetried(t *testing.T) {
	srv, calls := newFlakyServer(t, 10, http.StatusUnauthorized)

	c := NewClient(time.Second, WithMaxRetries(3), WithBackoff(time.Millisecond))
	err := c.PostJSON(context.Background(), srv.URL, echoRequest{}, nil)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.False(t, statusErr.Retryable())
	assert.Equal(t, int32(1), calls.Load())
}

func TestPostJSON_RateLimitRetried(t *testing.T) {
	srv, calls := newFlakyServer(t, 1, http.StatusTooManyRequests)

	c := NewClient(time.Second, WithMaxRetries(1), WithBackoff(time.Millisecond))
	require.NoError(t, c.PostJSON(context.Background(), srv.URL, echoRequest{}, nil))
	assert.Equal(t, int32(2), calls.Load())
}

func TestPostJSON_ContextCancelledDuringBackoff(t *testing.T) {
	srv, calls := newFlakyServer(t, 10, http.StatusInternalServerError)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClient(0, WithMaxRetries(5), WithBackoff(time.Second))
	err := c.PostJSON(ctx, srv.URL, echoRequest{}, nil)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPostJSON_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	var out echoResponse
	err := NewClient(time.Second, WithMaxRetries(2)).PostJSON(context.Background(), srv.URL, echoRequest{}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}
