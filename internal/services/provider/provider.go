// Package provider talks to the external generative image services.
//
// Two backends are supported: OpenRouter chat completions with image output
// and the OpenAI Images API. Each Generate call is a single attempt; the
// generation orchestrator owns retries and uses IsTransient to decide them.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"brandkit/internal/config"
	"brandkit/internal/services"
)

// Request describes one image to generate.
type Request struct {
	Prompt      string
	Width       int
	Height      int
	AspectRatio string
}

// Image is the raw provider output.
type Image struct {
	Data        []byte
	ContentType string
	Model       string
}

// Provider generates a base image from a prompt.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (Image, error)
}

// HTTPStatusError is a non-2xx provider response.
type HTTPStatusError struct {
	Provider   string
	StatusCode int
	Code       string
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	msg := fmt.Sprintf("%s: http %d", e.Provider, e.StatusCode)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + truncate(body, 300)
	}
	return msg
}

// QuotaExhausted reports whether the response is a billing failure rather
// than a rate limit.
func (e *HTTPStatusError) QuotaExhausted() bool {
	return e.Code == "insufficient_quota" || strings.Contains(e.Body, "insufficient_quota")
}

// IsTransient reports whether err is worth retrying: 408, 429 other than
// exhausted quota, 5xx, or a network timeout. The second return is the
// server's Retry-After hint. A client timeout also matches
// context.DeadlineExceeded, so callers check their own context first.
func IsTransient(err error) (bool, time.Duration) {
	if err == nil || errors.Is(err, context.Canceled) {
		return false, 0
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests && statusErr.QuotaExhausted():
			return false, 0
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			return true, statusErr.RetryAfter
		default:
			return false, 0
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true, 0
	}
	return false, 0
}

// New builds the provider selected by [provider] kind.
func New(cfg config.Provider, opts ...Option) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "provider", "new", "provider api key is not set", nil)
	}
	switch cfg.Kind {
	case "openrouter", "":
		return NewOpenRouter(cfg, opts...), nil
	case "openai":
		return NewOpenAI(cfg, opts...), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "provider", "new", fmt.Sprintf("unknown provider kind %q", cfg.Kind), nil)
	}
}

// Option configures a provider.
type Option func(*options)

type options struct {
	httpClient *http.Client
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

func buildOptions(cfg config.Provider, opts []Option) options {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	o := options{httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// providerError tags err as a ProviderError unless the caller's context
// ended, in which case the context error is returned for the caller to map.
func providerError(ctx context.Context, name, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return services.Wrap(services.ErrProvider, "provider", op, name+" request failed", err)
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
