package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_Fetch(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		response   string
		wantErr    error
		wantBody   string
	}{
		{
			name:       "ok",
			statusCode: http.StatusOK,
			response:   `{"song":"Song A","interpret":"Artist A","active":true}`,
			wantBody:   `{"song":"Song A","interpret":"Artist A","active":true}`,
		},
		{
			name:       "no content is still success",
			statusCode: http.StatusNoContent,
			wantBody:   "",
		},
		{
			name:       "not found",
			statusCode: http.StatusNotFound,
			response:   `{"error":"not found"}`,
			wantErr:    ErrUnexpectedStatus,
		},
		{
			name:       "rate limited",
			statusCode: http.StatusTooManyRequests,
			wantErr:    ErrRateLimited,
		},
		{
			name:       "bad gateway",
			statusCode: http.StatusBadGateway,
			wantErr:    ErrTemporaryFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.response))
			}))
			defer server.Close()

			client := NewClient()
			body, err := client.Fetch(context.Background(), server.URL+"/now.json")

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(body) != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, string(body))
			}
		})
	}
}

func TestClient_SendsHeaders(t *testing.T) {
	var gotUA, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(WithUserAgent("Stellar-Radio/test"))
	if _, err := client.Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotUA != "Stellar-Radio/test" {
		t.Errorf("expected User-Agent %q, got %q", "Stellar-Radio/test", gotUA)
	}
	if gotAccept != "application/json" {
		t.Errorf("expected Accept application/json, got %q", gotAccept)
	}
	if client.UserAgent() != "Stellar-Radio/test" {
		t.Errorf("unexpected UserAgent() %q", client.UserAgent())
	}
}

func TestClient_DefaultUserAgent(t *testing.T) {
	client := NewClient(WithUserAgent(""))
	if client.UserAgent() != DefaultUserAgent {
		t.Errorf("expected default User-Agent, got %q", client.UserAgent())
	}
}

func TestClient_LimitsBodySize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", MaxBodySize+100)))
	}))
	defer server.Close()

	body, err := NewClient().Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(body) != MaxBodySize {
		t.Errorf("expected body capped at %d bytes, got %d", MaxBodySize, len(body))
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(WithTimeout(50 * time.Millisecond))
	if _, err := client.Fetch(context.Background(), server.URL); err == nil {
		t.Error("expected timeout error")
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewClient().Fetch(ctx, server.URL); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestClient_RateLimiterPerHost(t *testing.T) {
	client := NewClient(WithRateLimit(1, 1))

	a := client.limiter("a.example")
	if client.limiter("a.example") != a {
		t.Error("expected the same limiter for the same host")
	}
	if client.limiter("b.example") == a {
		t.Error("expected a separate limiter per host")
	}
}

func TestIsTemporaryError(t *testing.T) {
	if !IsTemporaryError(ErrRateLimited) {
		t.Error("rate limit should be temporary")
	}
	if IsTemporaryError(ErrUnexpectedStatus) {
		t.Error("unexpected status should not be temporary")
	}
}
