package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-radiobot/internal/domain/player"
	"github.com/edumarques81/stellar-radiobot/internal/domain/radio"
	"github.com/edumarques81/stellar-radiobot/internal/version"
)

// nodeStatus reports whether the audio node session is up.
type nodeStatus interface {
	Connected() bool
}

type api struct {
	engine    *radio.Engine
	players   *player.Service
	node      nodeStatus
	dashboard http.Handler
	started   time.Time
}

type stationView struct {
	radio.Station
	Detection bool `json:"hasMetadata"`
}

func (a *api) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Socket.io endpoint
	if a.dashboard != nil {
		mux.Handle("/socket.io/", a.dashboard)
	}

	mux.HandleFunc("/health", a.health)
	mux.HandleFunc("/api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, version.GetInfo())
	})
	mux.HandleFunc("/api/v1/radio/stations", a.stations)
	mux.HandleFunc("/api/v1/radio/debug", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.engine.Debug())
	})

	return mux
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{
		"status":   "ok",
		"lavalink": "connected",
		"players":  len(a.players.List()),
		"uptime":   int64(time.Since(a.started).Seconds()),
	}
	if !a.node.Connected() {
		status = http.StatusServiceUnavailable
		body["status"] = "error"
		body["lavalink"] = "disconnected"
	}
	writeJSON(w, status, body)
}

func (a *api) stations(w http.ResponseWriter, r *http.Request) {
	all := a.engine.Stations()
	out := make([]stationView, 0, len(all))
	for _, st := range all {
		out = append(out, stationView{Station: st, Detection: st.HasMetadata()})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stations": out})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}
