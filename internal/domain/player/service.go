package player

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// TrackStartFunc is called after a guild's player begins a new track.
type TrackStartFunc func(state *State, track Track)

// UpdateFunc is called after a periodic player update is applied.
type UpdateFunc func(guildID string)

// TrackEndFunc is called after a guild's player finishes or abandons a track.
type TrackEndFunc func(guildID string)

// Service keeps the player state of every guild and fans audio node
// lifecycle events out to registered listeners.
type Service struct {
	mu      sync.RWMutex
	players map[string]*State

	onStart  []TrackStartFunc
	onEnd    []TrackEndFunc
	onUpdate []UpdateFunc
}

// NewService creates an empty player service.
func NewService() *Service {
	return &Service{
		players: make(map[string]*State),
	}
}

// Get returns the player for a guild, or nil if the guild has none.
func (s *Service) Get(guildID string) *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.players[guildID]
}

// GetOrCreate returns the player for a guild, creating it if needed.
func (s *Service) GetOrCreate(guildID string) *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.players[guildID]; ok {
		return p
	}
	p := NewState(guildID)
	s.players[guildID] = p
	return p
}

// Remove destroys the player for a guild. Track end listeners are notified
// if the player was holding a track.
func (s *Service) Remove(guildID string) {
	s.mu.Lock()
	p, ok := s.players[guildID]
	delete(s.players, guildID)
	s.mu.Unlock()

	if !ok {
		return
	}
	if _, playing := p.CurrentTrack(); playing {
		p.ClearCurrentTrack()
		s.notifyEnd(guildID)
	}
}

// List returns all players ordered by guild ID.
func (s *Service) List() []*State {
	s.mu.RLock()
	out := make([]*State, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].GuildID() < out[j].GuildID() })
	return out
}

// OnTrackStart registers a listener for track start events.
// Listeners must be registered before events begin to flow.
func (s *Service) OnTrackStart(fn TrackStartFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStart = append(s.onStart, fn)
}

// OnTrackEnd registers a listener for track end events.
func (s *Service) OnTrackEnd(fn TrackEndFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnd = append(s.onEnd, fn)
}

// OnPlayerUpdate registers a listener for periodic player state updates.
func (s *Service) OnPlayerUpdate(fn UpdateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = append(s.onUpdate, fn)
}

// TrackStarted records a new current track and notifies listeners.
// Listeners run on the caller's goroutine so events stay ordered.
// A node only starts tracks on live players, so the player is marked connected.
func (s *Service) TrackStarted(guildID string, track Track) {
	p := s.GetOrCreate(guildID)
	p.SetCurrentTrack(track)
	p.SetConnected(true)

	log.Debug().
		Str("guild", guildID).
		Str("title", track.Title).
		Str("uri", track.URI).
		Msg("Track started")

	s.mu.RLock()
	listeners := append([]TrackStartFunc(nil), s.onStart...)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(p, track)
	}
}

// TrackEnded clears the current track and notifies listeners.
func (s *Service) TrackEnded(guildID, reason string) {
	if p := s.Get(guildID); p != nil {
		p.ClearCurrentTrack()
	}

	log.Debug().Str("guild", guildID).Str("reason", reason).Msg("Track ended")
	s.notifyEnd(guildID)
}

// PlayerUpdated applies a periodic state update from the audio node.
// A player that drops its voice connection is treated as ended.
func (s *Service) PlayerUpdated(guildID string, connected bool, position int64) {
	p := s.Get(guildID)
	if p == nil {
		return
	}

	wasConnected := p.Connected()
	p.SetConnected(connected)
	p.UpdatePosition(position)

	if wasConnected && !connected {
		log.Info().Str("guild", guildID).Msg("Player lost voice connection")
		s.notifyEnd(guildID)
	}

	s.mu.RLock()
	listeners := append([]UpdateFunc(nil), s.onUpdate...)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(guildID)
	}
}

// VoiceClosed handles the voice websocket between the audio node and
// Discord closing for a guild.
func (s *Service) VoiceClosed(guildID string, code int, reason string) {
	p := s.Get(guildID)
	if p == nil {
		return
	}
	p.SetConnected(false)

	log.Warn().
		Str("guild", guildID).
		Int("code", code).
		Str("reason", reason).
		Msg("Voice connection closed")
	s.notifyEnd(guildID)
}

// NodeDisconnected marks every player disconnected after the audio node
// session is lost, since the node discards its players with it.
func (s *Service) NodeDisconnected() {
	for _, p := range s.List() {
		if !p.Connected() {
			continue
		}
		p.SetConnected(false)
		s.notifyEnd(p.GuildID())
	}
}

func (s *Service) notifyEnd(guildID string) {
	s.mu.RLock()
	listeners := append([]TrackEndFunc(nil), s.onEnd...)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(guildID)
	}
}
