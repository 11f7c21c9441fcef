package github

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"otterdog/pkg/cache"
)

// cachedHeaders are the response headers replayed from cache on 304, pagination
// depends on Link being preserved.
var cachedHeaders = []string{"Content-Type", "Link"}

// cachingTransport adds conditional requests on top of the underlying
// transport. GET responses carrying an ETag are stored, later requests send
// If-None-Match and replay the cached body on 304 Not Modified. Validated
// 304 responses do not count against the API rate limit budget.
//
// The transport also feeds rate limit headers back into the limiter before
// every response is returned.
type cachingTransport struct {
	next    http.RoundTripper
	store   cache.Store
	limiter RateLimiter
	logger  zerolog.Logger
}

func newCachingTransport(next http.RoundTripper, store cache.Store, limiter RateLimiter, logger zerolog.Logger) *cachingTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &cachingTransport{
		next:    next,
		store:   store,
		limiter: limiter,
		logger:  logger,
	}
}

// RoundTrip implements http.RoundTripper
func (t *cachingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var entry *cache.Entry
	if t.cacheable(req) {
		if cached, ok := t.store.Get(ctx, cacheKey(req)); ok && cached.ETag != "" {
			entry = cached
			req = req.Clone(ctx)
			req.Header.Set("If-None-Match", entry.ETag)
		}
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	t.updateLimiter(resp)

	if entry != nil && resp.StatusCode == http.StatusNotModified {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return t.replay(resp, entry), nil
	}

	if t.cacheable(req) && resp.StatusCode == http.StatusOK {
		if etag := resp.Header.Get("ETag"); etag != "" {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				return nil, readErr
			}
			t.store.Set(ctx, cacheKey(req), &cache.Entry{
				ETag:     etag,
				Body:     body,
				Headers:  pickHeaders(resp.Header),
				CachedAt: time.Now(),
			})
			resp.Body = io.NopCloser(bytes.NewReader(body))
		}
	}

	return resp, nil
}

func (t *cachingTransport) cacheable(req *http.Request) bool {
	return t.store != nil && req.Method == http.MethodGet
}

// replay turns a 304 response into the cached 200 response
func (t *cachingTransport) replay(resp *http.Response, entry *cache.Entry) *http.Response {
	t.logger.Debug().Str("url", resp.Request.URL.Path).Msg("replaying cached response")

	replayed := *resp
	replayed.StatusCode = http.StatusOK
	replayed.Status = "200 OK"
	replayed.Body = io.NopCloser(bytes.NewReader(entry.Body))
	replayed.ContentLength = int64(len(entry.Body))

	replayed.Header = resp.Header.Clone()
	for key, values := range entry.Headers {
		replayed.Header[key] = values
	}
	replayed.Header.Set("X-From-Cache", "1")
	return &replayed
}

func (t *cachingTransport) updateLimiter(resp *http.Response) {
	if t.limiter == nil {
		return
	}
	remaining := resp.Header.Get("X-Ratelimit-Remaining")
	reset := resp.Header.Get("X-Ratelimit-Reset")
	if remaining == "" || reset == "" {
		return
	}
	remainingN, err := strconv.Atoi(remaining)
	if err != nil {
		return
	}
	resetN, err := strconv.ParseInt(reset, 10, 64)
	if err != nil {
		return
	}
	t.limiter.Update(remainingN, time.Unix(resetN, 0))
}

func cacheKey(req *http.Request) string {
	return req.URL.String()
}

func pickHeaders(h http.Header) map[string][]string {
	picked := make(map[string][]string)
	for _, name := range cachedHeaders {
		if values := h.Values(name); len(values) > 0 {
			picked[name] = values
		}
	}
	return picked
}
