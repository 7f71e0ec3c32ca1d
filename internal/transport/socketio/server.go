// Package socketio provides the Socket.io server for the web dashboard.
package socketio

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/edumarques81/stellar-radiobot/internal/domain/player"
	"github.com/edumarques81/stellar-radiobot/internal/domain/radio"
)

// Event names emitted to dashboard clients.
const (
	EventTrackStart  = "trackStart"
	EventTrackEnd    = "trackEnd"
	EventPlayerState = "playerState"
	EventStations    = "stations"
)

// Events received from dashboard clients.
const (
	EventJoinGuild  = "join-guild"
	EventLeaveGuild = "leave-guild"
)

// StateDebounceWindow bounds how often a guild's playerState is pushed.
const StateDebounceWindow = 250 * time.Millisecond

// RadioSource exposes the radio state shown on the dashboard.
type RadioSource interface {
	Stations() []radio.Station
	ActiveStation(guildID string) (radio.Station, bool)
}

// GuildRoom returns the room dashboard clients of a guild join.
func GuildRoom(guildID string) socket.Room {
	return socket.Room("guild:" + guildID)
}

// Server handles Socket.io connections and events.
type Server struct {
	io      *socket.Server
	players *player.Service
	limiter *ConnectionLimiter
	state   *StateDebouncer

	mu      sync.RWMutex
	clients map[string]*socket.Socket
	radio   RadioSource
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	origins []string
}

// WithAllowedOrigins restricts which browser origins may connect. "*" or
// no origins at all allows any.
func WithAllowedOrigins(origins ...string) ServerOption {
	return func(c *serverConfig) {
		c.origins = origins
	}
}

// corsOrigin converts allowed origins to the form socket.io expects.
func corsOrigin(origins []string) any {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return "*"
	}
	out := make([]any, 0, len(origins))
	for _, o := range origins {
		out = append(out, strings.TrimSuffix(o, "/"))
	}
	return out
}

// NewServer creates a new Socket.io server. maxRemote caps concurrent
// non-loopback clients; zero disables the cap.
func NewServer(players *player.Service, maxRemote int, options ...ServerOption) (*Server, error) {
	var cfg serverConfig
	for _, o := range options {
		o(&cfg)
	}

	opts := socket.DefaultServerOptions()
	opts.SetPingTimeout(20 * time.Second)
	opts.SetPingInterval(25 * time.Second)
	opts.SetCors(&types.Cors{
		Origin:      corsOrigin(cfg.origins),
		Credentials: true,
	})

	server := socket.NewServer(nil, opts)

	s := &Server{
		io:      server,
		players: players,
		limiter: NewConnectionLimiter(maxRemote),
		clients: make(map[string]*socket.Socket),
	}

	s.state = NewStateDebouncer(StateDebounceWindow, s.broadcastPlayerState)
	s.setupHandlers()

	return s, nil
}

// SetRadio attaches the radio state source.
func (s *Server) SetRadio(src RadioSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.radio = src
}

func (s *Server) radioSource() RadioSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.radio
}

// setupHandlers registers all Socket.io event handlers.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())
		addr := client.Handshake().Address

		log.Info().Str("id", clientID).Str("addr", addr).Msg("Dashboard client connected")

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		if evicted := s.limiter.TryAdd(clientID, addr); evicted != "" {
			s.evict(evicted)
		}

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Dashboard client disconnected")

			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
			s.limiter.Remove(clientID)
		})

		client.On(EventJoinGuild, func(args ...any) {
			guildID := guildArg(args)
			if guildID == "" {
				return
			}
			log.Debug().Str("id", clientID).Str("guild", guildID).Msg("Joined guild room")

			client.Join(GuildRoom(guildID))
			s.pushPlayerState(client, guildID)
		})

		client.On(EventLeaveGuild, func(args ...any) {
			guildID := guildArg(args)
			if guildID == "" {
				return
			}
			log.Debug().Str("id", clientID).Str("guild", guildID).Msg("Left guild room")
			client.Leave(GuildRoom(guildID))
		})

		client.On("getStations", func(args ...any) {
			src := s.radioSource()
			if src == nil {
				client.Emit(EventStations, []radio.Station{})
				return
			}
			client.Emit(EventStations, src.Stations())
		})

		client.On("getPlayerState", func(args ...any) {
			if guildID := guildArg(args); guildID != "" {
				s.pushPlayerState(client, guildID)
			}
		})
	})
}

// guildArg accepts either a bare guild id or {"guildId": "..."}.
func guildArg(args []any) string {
	if len(args) == 0 {
		return ""
	}
	switch v := args[0].(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]interface{}:
		if id, ok := v["guildId"].(string); ok {
			return strings.TrimSpace(id)
		}
	}
	return ""
}

func (s *Server) evict(clientID string) {
	s.mu.RLock()
	client, ok := s.clients[clientID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	log.Info().Str("id", clientID).Msg("Evicting oldest dashboard client")
	client.Disconnect(true)
}

// pushPlayerState sends one guild's player snapshot to a client.
func (s *Server) pushPlayerState(client *socket.Socket, guildID string) {
	client.Emit(EventPlayerState, s.playerState(guildID))
}

func (s *Server) playerState(guildID string) map[string]interface{} {
	var state map[string]interface{}
	if p := s.players.Get(guildID); p != nil {
		state = p.Snapshot()
	} else {
		state = map[string]interface{}{"guildId": guildID, "connected": false}
	}

	if src := s.radioSource(); src != nil {
		if st, ok := src.ActiveStation(guildID); ok {
			state["station"] = st
		}
	}
	return state
}

// TrackStartPayload builds the trackStart event for a radio song.
func TrackStartPayload(guildID string, song radio.SongInfo) map[string]interface{} {
	return map[string]interface{}{
		"guildId": guildID,
		"track": map[string]interface{}{
			"title":     song.Title,
			"author":    song.DisplayAuthor(),
			"duration":  0,
			"uri":       "",
			"thumbnail": song.Artwork,
		},
	}
}

// BroadcastSong sends the current radio song to the guild's dashboard room.
func (s *Server) BroadcastSong(guildID string, song radio.SongInfo) {
	payload := TrackStartPayload(guildID, song)
	s.io.To(GuildRoom(guildID)).Emit(EventTrackStart, payload)

	if log.Debug().Enabled() {
		data, _ := json.Marshal(payload)
		log.Debug().Str("guild", guildID).RawJSON("payload", data).Msg("Broadcast song")
	}
}

// BroadcastTrackEnd tells the guild's dashboard room playback stopped.
func (s *Server) BroadcastTrackEnd(guildID string) {
	s.io.To(GuildRoom(guildID)).Emit(EventTrackEnd, map[string]interface{}{"guildId": guildID})
}

// NotifyPlayerChanged schedules a playerState push to the guild's room.
func (s *Server) NotifyPlayerChanged(guildID string) {
	s.state.Trigger(guildID)
}

func (s *Server) broadcastPlayerState(guildID string) {
	s.io.To(GuildRoom(guildID)).Emit(EventPlayerState, s.playerState(guildID))
}

// ClientCount returns the number of connected dashboard clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close closes the Socket.io server.
func (s *Server) Close() error {
	s.state.Stop()
	s.io.Close(nil)
	return nil
}
