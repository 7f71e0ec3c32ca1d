// Package artwork finds cover art for radio songs whose station feed
// does not provide any.
package artwork

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// DefaultDeezerBaseURL is the Deezer API base URL
	DefaultDeezerBaseURL = "https://api.deezer.com"

	// DefaultTimeout for HTTP requests
	DefaultTimeout = 8 * time.Second

	// DefaultRateLimit stays well under Deezer's quota.
	DefaultRateLimit = 5
)

var (
	// ErrArtworkNotFound indicates no cover was found for the song.
	ErrArtworkNotFound = errors.New("artwork not found")

	// ErrTemporaryFailure indicates a temporary failure (should retry)
	ErrTemporaryFailure = errors.New("temporary failure")

	// ErrRateLimited indicates rate limit was exceeded
	ErrRateLimited = errors.New("rate limited")
)

// DeezerClient looks up album covers through the public Deezer search API.
// Covers are hotlinked, never downloaded.
type DeezerClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// DeezerOption is a functional option for configuring the Deezer client.
type DeezerOption func(*DeezerClient)

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(u string) DeezerOption {
	return func(c *DeezerClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) DeezerOption {
	return func(c *DeezerClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) DeezerOption {
	return func(c *DeezerClient) {
		c.httpClient = client
	}
}

// NewDeezerClient creates a new Deezer API client.
// No API key required for public endpoints.
func NewDeezerClient(opts ...DeezerOption) *DeezerClient {
	c := &DeezerClient{
		baseURL:   DefaultDeezerBaseURL,
		userAgent: "Stellar-Radio",
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type searchResponse struct {
	Data  []searchTrack `json:"data"`
	Total int           `json:"total"`
}

type searchTrack struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Artist struct {
		Name string `json:"name"`
	} `json:"artist"`
	Album struct {
		Title       string `json:"title"`
		Cover       string `json:"cover"`
		CoverMedium string `json:"cover_medium"`
		CoverBig    string `json:"cover_big"`
		CoverXL     string `json:"cover_xl"`
	} `json:"album"`
}

func (t searchTrack) cover() string {
	for _, u := range []string{t.Album.CoverXL, t.Album.CoverBig, t.Album.CoverMedium, t.Album.Cover} {
		if u != "" {
			return u
		}
	}
	return ""
}

// Artwork returns a cover URL for the song.
func (c *DeezerClient) Artwork(ctx context.Context, artist, title string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	query := fmt.Sprintf("artist:%q track:%q", artist, title)
	searchURL := fmt.Sprintf("%s/search?q=%s&limit=5", c.baseURL, url.QueryEscape(query))

	log.Debug().
		Str("artist", artist).
		Str("title", title).
		Msg("Searching Deezer for cover art")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return "", ErrRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return "", ErrTemporaryFailure
	default:
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var search searchResponse
	if err := json.Unmarshal(body, &search); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	// Prefer a result whose artist matches; fall back to the first hit.
	wantArtist := strings.ToLower(artist)
	for _, t := range search.Data {
		if strings.Contains(strings.ToLower(t.Artist.Name), wantArtist) {
			if cover := t.cover(); cover != "" {
				return cover, nil
			}
		}
	}
	if len(search.Data) > 0 {
		if cover := search.Data[0].cover(); cover != "" {
			return cover, nil
		}
	}
	return "", ErrArtworkNotFound
}
