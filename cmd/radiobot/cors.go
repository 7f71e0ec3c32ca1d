package main

import (
	"net/http"
	"strings"
)

// corsPolicy decides which dashboard origins may read the API.
type corsPolicy struct {
	anyOrigin bool
	origins   map[string]struct{}
}

// newCORSPolicy builds a policy from the configured origins. "*" allows
// any origin; an empty list allows none.
func newCORSPolicy(origins []string) corsPolicy {
	p := corsPolicy{origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		if o == "*" {
			p.anyOrigin = true
			continue
		}
		p.origins[strings.TrimSuffix(strings.ToLower(o), "/")] = struct{}{}
	}
	return p
}

// allowedOrigin returns the Access-Control-Allow-Origin value for a
// request origin, or false when the origin may not read responses.
func (p corsPolicy) allowedOrigin(origin string) (string, bool) {
	if p.anyOrigin {
		return "*", true
	}
	if origin == "" {
		return "", false
	}
	if _, ok := p.origins[strings.ToLower(origin)]; ok {
		return origin, true
	}
	return "", false
}

// middleware sets CORS headers on every response, error responses
// included. Preflights from unknown origins are refused.
func (p corsPolicy) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed, ok := p.allowedOrigin(origin)
		if !p.anyOrigin {
			w.Header().Add("Vary", "Origin")
		}
		if ok {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if !ok {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
