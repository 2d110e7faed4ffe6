package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(BotClient, Options{Retries: 3, Backoff: time.Millisecond})
	body, err := c.Get(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(BotClient, Options{Retries: 3, Backoff: time.Millisecond})
	_, err := c.Get(context.Background(), srv.URL)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStatus)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(BotClient, Options{Retries: 2, Backoff: time.Millisecond})
	_, err := c.Get(context.Background(), srv.URL)

	assert.ErrorIs(t, err, ErrStatus)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSetHeaders(t *testing.T) {
	tests := []struct {
		name       string
		clientType ClientType
		userAgent  string
		want       string
	}{
		{"cloudflare", CloudflareClient, "", "curl/8.7.1"},
		{"bot default", BotClient, "", DefaultUserAgent},
		{"override", BrowserClient, "ARS-YouTube-Bot/1.0", "ARS-YouTube-Bot/1.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make(chan string, 1)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got <- r.Header.Get("User-Agent")
			}))
			defer srv.Close()

			c := NewClient(tt.clientType, Options{UserAgent: tt.userAgent})
			_, err := c.Get(context.Background(), srv.URL)
			require.NoError(t, err)
			assert.Equal(t, tt.want, <-got)
		})
	}
}

func TestGet_StopsOnCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(BotClient, Options{Retries: 5, Backoff: time.Hour})
	_, err := c.Get(ctx, srv.URL)

	assert.ErrorIs(t, err, context.Canceled)
}
