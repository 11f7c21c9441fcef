// Package github implements the provider for GitHub organizations. It wraps
// the REST API with retry handling, adaptive rate limiting and conditional
// request caching, and converts between API payloads and configuration
// resources.
package github

import (
	"context"
	"net/http"

	"github.com/google/go-github/v66/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"otterdog/pkg/cache"
	"otterdog/pkg/credentials"
)

const defaultUserAgent = "otterdog"

// Options configures the GitHub API client
type Options struct {
	// BaseURL overrides the API endpoint, used for GitHub Enterprise
	BaseURL string
	// UserAgent overrides the User-Agent header
	UserAgent string
	// Cache enables conditional requests when set
	Cache cache.Store
	// Limiter paces API calls, a default adaptive limiter is used when nil
	Limiter RateLimiter
	// Logger receives debug output
	Logger zerolog.Logger
}

// Client wraps the GitHub API client with retry and rate limit handling
type Client struct {
	client  *github.Client
	limiter RateLimiter
	retry   RetryConfig
	logger  zerolog.Logger
}

// NewClient creates a new GitHub API client with the provided token
func NewClient(token string, opts Options) (*Client, error) {
	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(DefaultRateLimiterConfig())
	}

	base := &http.Client{
		Transport: newCachingTransport(http.DefaultTransport, opts.Cache, limiter, opts.Logger),
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, ts)

	ghClient := github.NewClient(httpClient)
	if opts.BaseURL != "" {
		var err error
		ghClient, err = ghClient.WithEnterpriseURLs(opts.BaseURL, opts.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	ghClient.UserAgent = defaultUserAgent
	if opts.UserAgent != "" {
		ghClient.UserAgent = opts.UserAgent
	}

	return &Client{
		client:  ghClient,
		limiter: limiter,
		retry:   DefaultRetryConfig(),
		logger:  opts.Logger,
	}, nil
}

// ValidateTokenScopes verifies that the token carries the scopes required for
// managing an organization and returns the missing ones. Fine-grained tokens
// do not report scopes and pass validation.
func (c *Client) ValidateTokenScopes(ctx context.Context) ([]string, error) {
	var missing []string

	err := WithRetry(ctx, func() error {
		_, resp, err := c.client.Users.Get(ctx, "")
		if err != nil {
			return WrapGitHubError(err, "authenticated user")
		}
		missing = credentials.ValidateTokenScopes(resp.Header.Get("X-OAuth-Scopes"))
		return nil
	}, c.retry)

	return missing, err
}

// do issues a request against an endpoint without a typed wrapper in the
// underlying library. The path is relative to the API base URL.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (*github.Response, error) {
	req, err := c.client.NewRequest(method, path, body)
	if err != nil {
		return nil, err
	}
	return c.client.Do(ctx, req, out)
}
