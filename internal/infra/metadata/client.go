// Package metadata fetches now-playing documents from radio station APIs.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// DefaultUserAgent identifies the bot to station APIs.
	DefaultUserAgent = "Stellar-Radio/1.0"

	// DefaultTimeout bounds a single metadata request.
	DefaultTimeout = 8 * time.Second

	// DefaultRateLimit is the per-host request rate (requests per second).
	DefaultRateLimit = 5

	// DefaultBurst is the per-host burst size.
	DefaultBurst = 10

	// MaxBodySize caps how much of a response is read.
	MaxBodySize = 1 << 20
)

var (
	// ErrUnexpectedStatus indicates a non-success HTTP status.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrTemporaryFailure indicates the station API is briefly unavailable.
	ErrTemporaryFailure = errors.New("temporary failure")

	// ErrRateLimited indicates the station API rejected us for polling too fast.
	ErrRateLimited = errors.New("rate limited")
)

// IsTemporaryError reports whether a later retry may succeed.
func IsTemporaryError(err error) bool {
	return errors.Is(err, ErrTemporaryFailure) || errors.Is(err, ErrRateLimited)
}

// Client performs metadata GET requests with a per-host rate limit.
type Client struct {
	userAgent  string
	httpClient *http.Client
	rps        rate.Limit
	burst      int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit sets the per-host request rate and burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.rps = rate.Limit(rps)
		c.burst = burst
	}
}

// NewClient creates a new metadata client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		rps:      DefaultRateLimit,
		burst:    DefaultBurst,
		limiters: make(map[string]*rate.Limiter),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// UserAgent returns the User-Agent header sent with every request.
func (c *Client) UserAgent() string {
	return c.userAgent
}

// Fetch GETs rawURL and returns the response body.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	if err := c.limiter(u.Host).Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusTooManyRequests:
		log.Warn().Str("host", u.Host).Msg("Station API rate limit exceeded")
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusGatewayTimeout:
		return nil, fmt.Errorf("%w: %d", ErrTemporaryFailure, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(c.rps, c.burst)
		c.limiters[host] = l
	}
	return l
}
