package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edumarques81/stellar-radiobot/internal/domain/player"
	"github.com/edumarques81/stellar-radiobot/internal/domain/radio"
)

type stubNode struct{ connected bool }

func (s stubNode) Connected() bool { return s.connected }

type offlineFetcher struct{}

func (offlineFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return nil, errors.New("offline")
}

func newTestAPI(t *testing.T, connected bool) *api {
	t.Helper()
	players := player.NewService()
	engine := radio.NewEngine(radio.DefaultCatalog(), offlineFetcher{}, func(string) (radio.Player, bool) { return nil, false })
	t.Cleanup(engine.Close)

	return &api{
		engine:  engine,
		players: players,
		node:    stubNode{connected: connected},
		started: time.Now().Add(-time.Minute),
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		code      int
		lavalink  string
	}{
		{"node connected", true, http.StatusOK, "connected"},
		{"node down", false, http.StatusServiceUnavailable, "disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newTestAPI(t, tt.connected).routes(), "/health")
			if rec.Code != tt.code {
				t.Errorf("status = %d, want %d", rec.Code, tt.code)
			}

			var body map[string]interface{}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body["lavalink"] != tt.lavalink {
				t.Errorf("lavalink = %v, want %s", body["lavalink"], tt.lavalink)
			}
			if uptime, _ := body["uptime"].(float64); uptime < 60 {
				t.Errorf("expected uptime of at least 60s, got %v", body["uptime"])
			}
		})
	}
}

func TestStationsEndpoint(t *testing.T) {
	rec := get(t, newTestAPI(t, true).routes(), "/api/v1/radio/stations")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Stations []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			HasMetadata bool   `json:"hasMetadata"`
		} `json:"stations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(body.Stations) != 8 {
		t.Fatalf("expected 8 stations, got %d", len(body.Stations))
	}
	for _, st := range body.Stations {
		if st.ID == "radio-golem" && st.HasMetadata {
			t.Error("radio-golem has no metadata feed")
		}
		if st.ID == "evropa2" && !st.HasMetadata {
			t.Error("evropa2 should report a metadata feed")
		}
	}
}

func TestDebugEndpoint(t *testing.T) {
	rec := get(t, newTestAPI(t, true).routes(), "/api/v1/radio/debug")

	var info radio.DebugInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(info.Sessions) != 0 || info.TimerCount != 0 {
		t.Errorf("expected an idle engine, got %+v", info)
	}
	if len(info.Stations) != 8 {
		t.Errorf("expected 8 station ids, got %d", len(info.Stations))
	}
}

func TestVersionEndpoint(t *testing.T) {
	rec := get(t, newTestAPI(t, true).routes(), "/api/v1/version")

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["name"] != "Stellar Radio" {
		t.Errorf("unexpected version payload %v", body)
	}
}

func TestDashboardDisabled(t *testing.T) {
	rec := get(t, newTestAPI(t, true).routes(), "/socket.io/?EIO=4&transport=polling")
	if rec.Code != http.StatusNotFound {
		t.Errorf("socket.io should not be served when the dashboard is disabled, got %d", rec.Code)
	}
}
