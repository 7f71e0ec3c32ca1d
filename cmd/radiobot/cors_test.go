package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

const dashboardOrigin = "https://radio.example.com"

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
}

func serveWithOrigin(h http.Handler, method, origin string, preflight bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/v1/radio/stations", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCORSAllowOrigin(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		want    string
	}{
		{"wildcard", []string{"*"}, "https://anywhere.example", "*"},
		{"wildcard without origin header", []string{"*"}, "", "*"},
		{"listed origin echoed", []string{dashboardOrigin}, dashboardOrigin, dashboardOrigin},
		{"case and trailing slash ignored", []string{"https://Radio.Example.com/"}, dashboardOrigin, dashboardOrigin},
		{"unlisted origin", []string{dashboardOrigin}, "https://evil.example", ""},
		{"no origin header", []string{dashboardOrigin}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newCORSPolicy(tt.origins).middleware(okHandler())
			rec := serveWithOrigin(h, http.MethodGet, tt.origin, false)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.want)
			}
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			if got := rec.Body.String(); got != `{"status":"ok"}` {
				t.Errorf("body = %q", got)
			}
		})
	}
}

func TestCORSVaryOnListedOrigins(t *testing.T) {
	rec := serveWithOrigin(newCORSPolicy([]string{dashboardOrigin}).middleware(okHandler()), http.MethodGet, dashboardOrigin, false)
	if got := rec.Header().Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want Origin", got)
	}

	rec = serveWithOrigin(newCORSPolicy([]string{"*"}).middleware(okHandler()), http.MethodGet, dashboardOrigin, false)
	if got := rec.Header().Get("Vary"); got != "" {
		t.Errorf("wildcard responses should not vary, got %q", got)
	}
}

func TestCORSHeadersOnError(t *testing.T) {
	h := newCORSPolicy([]string{dashboardOrigin}).middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))

	rec := serveWithOrigin(h, http.MethodGet, dashboardOrigin, false)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != dashboardOrigin {
		t.Errorf("Access-Control-Allow-Origin = %q on 404 response", got)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newCORSPolicy([]string{dashboardOrigin}).middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called for a preflight")
	}))

	rec := serveWithOrigin(h, http.MethodOptions, dashboardOrigin, true)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Errorf("Access-Control-Max-Age = %q", got)
	}

	rec = serveWithOrigin(h, http.MethodOptions, "https://evil.example", true)
	if rec.Code != http.StatusForbidden {
		t.Errorf("unlisted preflight status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted preflight must not be allowed, got %q", got)
	}
}

func TestCORSPlainOptionsReachesHandler(t *testing.T) {
	called := false
	h := newCORSPolicy([]string{"*"}).middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))

	serveWithOrigin(h, http.MethodOptions, "", false)
	if !called {
		t.Error("OPTIONS without a preflight header should reach the handler")
	}
}
