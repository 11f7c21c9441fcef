package github

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
)

// ErrorType represents different categories of GitHub API errors
type ErrorType string

const (
	// ErrorTypeAuthentication indicates authentication/authorization failures
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypePermission indicates insufficient permissions
	ErrorTypePermission ErrorType = "permission"
	// ErrorTypeNotFound indicates resource not found
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeValidation indicates invalid request data
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeRateLimit indicates API rate limiting
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeNetwork indicates network connectivity issues
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeConflict indicates resource conflicts
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeUnknown indicates unclassified errors
	ErrorTypeUnknown ErrorType = "unknown"
)

// GitHubError represents a structured error from GitHub API operations
type GitHubError struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Cause     error     `json:"-"`
	Resource  string    `json:"resource,omitempty"`
	Field     string    `json:"field,omitempty"`
	Code      string    `json:"code,omitempty"`
	Retryable bool      `json:"retryable"`
}

// Error implements the error interface
func (e *GitHubError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (resource: %s)", e.Type, e.Message, e.Resource)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause error
func (e *GitHubError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether this error type can be retried
func (e *GitHubError) IsRetryable() bool {
	return e.Retryable
}

// NewGitHubError creates a new GitHubError with the specified type and message
func NewGitHubError(errorType ErrorType, message string) *GitHubError {
	return &GitHubError{
		Type:      errorType,
		Message:   message,
		Retryable: errorType == ErrorTypeRateLimit || errorType == ErrorTypeNetwork,
	}
}

// WithResource adds resource context to the error
func (e *GitHubError) WithResource(resource string) *GitHubError {
	e.Resource = resource
	return e
}

// WrapGitHubError converts GitHub API errors to structured GitHubError types
func WrapGitHubError(err error, resource string) *GitHubError {
	if err == nil {
		return nil
	}

	// Already a GitHubError, just add resource context if missing
	var ghErr *GitHubError
	if errors.As(err, &ghErr) {
		if ghErr.Resource == "" {
			ghErr.Resource = resource
		}
		return ghErr
	}

	// Handle GitHub API error responses
	var apiErr *github.ErrorResponse
	if errors.As(err, &apiErr) {
		return parseGitHubAPIError(apiErr, resource)
	}

	// Handle rate limit errors
	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return &GitHubError{
			Type:      ErrorTypeRateLimit,
			Message:   fmt.Sprintf("API rate limit exceeded, resets at %s", rateLimitErr.Rate.Reset.Format(time.RFC3339)),
			Cause:     err,
			Resource:  resource,
			Retryable: true,
		}
	}

	// Handle network and timeout errors
	if isNetworkError(err) {
		return &GitHubError{
			Type:      ErrorTypeNetwork,
			Message:   "network error communicating with GitHub API",
			Cause:     err,
			Resource:  resource,
			Retryable: true,
		}
	}

	// Default to unknown error type
	return &GitHubError{
		Type:      ErrorTypeUnknown,
		Message:   err.Error(),
		Cause:     err,
		Resource:  resource,
		Retryable: false,
	}
}

// parseGitHubAPIError maps GitHub API response errors to structured types
func parseGitHubAPIError(apiErr *github.ErrorResponse, resource string) *GitHubError {
	statusCode := apiErr.Response.StatusCode
	message := apiErr.Message

	switch statusCode {
	case 401:
		return &GitHubError{
			Type:      ErrorTypeAuthentication,
			Message:   "authentication failed, check your GitHub token",
			Cause:     apiErr,
			Resource:  resource,
			Retryable: false,
		}
	case 403:
		if strings.Contains(strings.ToLower(message), "rate limit") {
			return &GitHubError{
				Type:      ErrorTypeRateLimit,
				Message:   "API rate limit exceeded",
				Cause:     apiErr,
				Resource:  resource,
				Retryable: true,
			}
		}
		return &GitHubError{
			Type:      ErrorTypePermission,
			Message:   fmt.Sprintf("insufficient permissions: %s", message),
			Cause:     apiErr,
			Resource:  resource,
			Retryable: false,
		}
	case 404:
		return &GitHubError{
			Type:      ErrorTypeNotFound,
			Message:   fmt.Sprintf("resource not found: %s", resource),
			Cause:     apiErr,
			Resource:  resource,
			Retryable: false,
		}
	case 409:
		if strings.Contains(strings.ToLower(message), "already exists") {
			return &GitHubError{
				Type:      ErrorTypeConflict,
				Message:   fmt.Sprintf("resource already exists: %s", message),
				Cause:     apiErr,
				Resource:  resource,
				Retryable: false,
			}
		}
		return &GitHubError{
			Type:      ErrorTypeConflict,
			Message:   fmt.Sprintf("resource conflict: %s", message),
			Cause:     apiErr,
			Resource:  resource,
			Retryable: false,
		}
	case 422:
		ghErr := &GitHubError{
			Type:      ErrorTypeValidation,
			Message:   fmt.Sprintf("validation failed: %s", message),
			Cause:     apiErr,
			Resource:  resource,
			Retryable: false,
		}
		// Extract field-level validation details when present
		if len(apiErr.Errors) > 0 {
			var details []string
			for _, e := range apiErr.Errors {
				if e.Field != "" {
					ghErr.Field = e.Field
				}
				if e.Code != "" {
					ghErr.Code = e.Code
				}
				if e.Message != "" {
					details = append(details, e.Message)
				} else if e.Field != "" {
					details = append(details, fmt.Sprintf("%s: %s", e.Field, e.Code))
				}
			}
			if len(details) > 0 {
				ghErr.Message = fmt.Sprintf("validation failed: %s", strings.Join(details, "; "))
			}
		}
		return ghErr
	case 500, 502, 503, 504:
		return &GitHubError{
			Type:      ErrorTypeNetwork,
			Message:   fmt.Sprintf("GitHub API server error (status %d)", statusCode),
			Cause:     apiErr,
			Resource:  resource,
			Retryable: true,
		}
	default:
		return &GitHubError{
			Type:      ErrorTypeUnknown,
			Message:   fmt.Sprintf("unexpected API error (status %d): %s", statusCode, message),
			Cause:     apiErr,
			Resource:  resource,
			Retryable: false,
		}
	}
}

// isNetworkError checks if an error is network-related
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	networkKeywords := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"no such host",
		"network unreachable",
		"temporary failure",
		"tls handshake",
		"eof",
	}
	for _, keyword := range networkKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}

// RetryConfig defines retry behavior for transient errors
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns sensible retry defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// WithRetry executes an operation with exponential backoff for retryable errors
func WithRetry(ctx context.Context, operation func() error, config RetryConfig) error {
	var lastErr error
	delay := config.InitialDelay

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, delay); err != nil {
				return err
			}
			delay = time.Duration(float64(delay) * config.BackoffFactor)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		var ghErr *GitHubError
		if !errors.As(lastErr, &ghErr) || !ghErr.IsRetryable() {
			return lastErr
		}

		// For rate limit errors, wait until the limit resets when it is close
		var rateLimitErr *github.RateLimitError
		if errors.As(ghErr.Cause, &rateLimitErr) {
			resetTime := rateLimitErr.Rate.Reset.Time
			if waitTime := time.Until(resetTime); waitTime > 0 && waitTime < 5*time.Minute {
				if err := sleepContext(ctx, waitTime); err != nil {
					return err
				}
			}
		}
	}

	return lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PartialFailureError represents an operation where some resources succeeded and others failed
type PartialFailureError struct {
	Succeeded []string
	Failed    map[string]error
	Message   string
}

// Error implements the error interface
func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s: %d succeeded, %d failed", e.Message, len(e.Succeeded), len(e.Failed))
}

// NewPartialFailureError creates a new partial failure error
func NewPartialFailureError(message string, succeeded []string, failed map[string]error) *PartialFailureError {
	return &PartialFailureError{
		Succeeded: succeeded,
		Failed:    failed,
		Message:   message,
	}
}

// GetFailedOperations returns the names of failed operations
func (e *PartialFailureError) GetFailedOperations() []string {
	operations := make([]string, 0, len(e.Failed))
	for op := range e.Failed {
		operations = append(operations, op)
	}
	return operations
}

// GetSucceededOperations returns the names of successful operations
func (e *PartialFailureError) GetSucceededOperations() []string {
	return e.Succeeded
}
