package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otterdog/pkg/cache"
)

type recordingLimiter struct {
	mu        sync.Mutex
	waits     int
	remaining int
	resetTime time.Time
}

func (l *recordingLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.waits++
	return nil
}

func (l *recordingLimiter) Update(remaining int, resetTime time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.remaining = remaining
	l.resetTime = resetTime
}

func (l *recordingLimiter) AcquireSlot(ctx context.Context) error { return nil }
func (l *recordingLimiter) ReleaseSlot()                          {}
func (l *recordingLimiter) ConcurrencyLimit() int                 { return 1 }
func (l *recordingLimiter) Stats() RateLimiterStats               { return RateLimiterStats{} }

func TestCachingTransport_ReplaysNotModified(t *testing.T) {
	var requests int
	var lastIfNoneMatch string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		lastIfNoneMatch = r.Header.Get("If-None-Match")

		if lastIfNoneMatch == `"etag-1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", `"etag-1"`)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Link", `<https://api.github.com/repositories?page=2>; rel="next"`)
		fmt.Fprint(w, `[{"id":1,"name":"repo-1"}]`)
	}))
	defer server.Close()

	store := cache.NewMemoryStore()
	transport := newCachingTransport(nil, store, nil, zerolog.Nop())
	client := &http.Client{Transport: transport}

	// First request populates the cache
	resp, err := client.Get(server.URL + "/orgs/testorg/repos")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `[{"id":1,"name":"repo-1"}]`, string(body))
	assert.Empty(t, resp.Header.Get("X-From-Cache"))

	// Second request is validated against the cached ETag and replayed
	resp, err = client.Get(server.URL + "/orgs/testorg/repos")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, 2, requests)
	assert.Equal(t, `"etag-1"`, lastIfNoneMatch)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `[{"id":1,"name":"repo-1"}]`, string(body))
	assert.Equal(t, "1", resp.Header.Get("X-From-Cache"))
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Link"), `rel="next"`)
}

func TestCachingTransport_SkipsResponsesWithoutETag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("If-None-Match"))
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	store := cache.NewMemoryStore()
	transport := newCachingTransport(nil, store, nil, zerolog.Nop())
	client := &http.Client{Transport: transport}

	for i := 0; i < 2; i++ {
		resp, err := client.Get(server.URL + "/orgs/testorg")
		require.NoError(t, err)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		assert.Empty(t, resp.Header.Get("X-From-Cache"))
	}

	assert.Equal(t, int64(0), store.Stats().Sets)
}

func TestCachingTransport_IgnoresNonGetRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"etag-1"`)
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	store := cache.NewMemoryStore()
	transport := newCachingTransport(nil, store, nil, zerolog.Nop())
	client := &http.Client{Transport: transport}

	resp, err := client.Post(server.URL+"/orgs/testorg/hooks", "application/json", nil)
	require.NoError(t, err)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	assert.Equal(t, int64(0), store.Stats().Sets)
}

func TestCachingTransport_UpdatesRateLimiter(t *testing.T) {
	reset := time.Now().Add(30 * time.Minute).Unix()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Ratelimit-Remaining", "4321")
		w.Header().Set("X-Ratelimit-Reset", fmt.Sprintf("%d", reset))
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	limiter := &recordingLimiter{}
	transport := newCachingTransport(nil, nil, limiter, zerolog.Nop())
	client := &http.Client{Transport: transport}

	resp, err := client.Get(server.URL + "/orgs/testorg")
	require.NoError(t, err)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	assert.Equal(t, 1, limiter.waits)
	assert.Equal(t, 4321, limiter.remaining)
	assert.Equal(t, reset, limiter.resetTime.Unix())
}

func TestCachingTransport_WorksWithoutStore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"etag-1"`)
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	transport := newCachingTransport(nil, nil, nil, zerolog.Nop())
	client := &http.Client{Transport: transport}

	resp, err := client.Get(server.URL + "/orgs/testorg")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, `{"ok":true}`, string(body))
}
