// Package player provides the per-guild playback state mirrored from the audio node.
package player

import "sync"

// Track contains metadata about a track loaded on the audio node.
type Track struct {
	Encoded    string
	Identifier string
	URI        string
	Title      string
	Author     string
	ArtworkURL string
	Length     int64 // Length in milliseconds, 0 for live streams
	IsStream   bool
}

// State represents the playback state of a single guild.
// It is safe for concurrent access.
type State struct {
	mu sync.RWMutex

	guildID        string
	textChannelID  string
	voiceChannelID string
	connected      bool
	position       int64

	current  *Track
	original *Track // current track as loaded, before any display rewrite
}

// NewState creates a new player state for a guild.
func NewState(guildID string) *State {
	return &State{guildID: guildID}
}

// GuildID returns the guild this player belongs to.
func (s *State) GuildID() string {
	return s.guildID
}

// TextChannelID returns the channel the player was started from.
func (s *State) TextChannelID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.textChannelID
}

// SetTextChannel records the channel the player was started from.
func (s *State) SetTextChannel(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.textChannelID = channelID
}

// VoiceChannelID returns the voice channel the player is bound to.
func (s *State) VoiceChannelID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voiceChannelID
}

// SetVoiceChannel records the voice channel the player is bound to.
func (s *State) SetVoiceChannel(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voiceChannelID = channelID
}

// Connected reports whether the audio node considers the player connected to voice.
func (s *State) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// SetConnected updates the voice connection flag.
func (s *State) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

// Position returns the last reported playback position in milliseconds.
func (s *State) Position() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.position
}

// UpdatePosition updates the playback position.
func (s *State) UpdatePosition(position int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = position
}

// CurrentTrack returns a copy of the current track.
func (s *State) CurrentTrack() (Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Track{}, false
	}
	return *s.current, true
}

// OriginalTrack returns the track as it was loaded, if its display
// fields have since been rewritten.
func (s *State) OriginalTrack() (Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.original == nil {
		return Track{}, false
	}
	return *s.original, true
}

// SetCurrentTrack replaces the current track and drops any stashed original.
func (s *State) SetCurrentTrack(track Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := track
	s.current = &t
	s.original = nil
	s.position = 0
}

// ClearCurrentTrack removes the current track.
func (s *State) ClearCurrentTrack() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.original = nil
	s.position = 0
}

// SetTrackDisplay rewrites the display fields of the current track.
// The first rewrite stashes the loaded values so they can be recovered.
// Empty artworkURL leaves the existing artwork untouched.
func (s *State) SetTrackDisplay(title, author, artworkURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return
	}
	if s.original == nil {
		orig := *s.current
		s.original = &orig
	}

	s.current.Title = title
	s.current.Author = author
	if artworkURL != "" {
		s.current.ArtworkURL = artworkURL
	}
}

// Snapshot returns the state as a map suitable for JSON serialization.
func (s *State) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]interface{}{
		"guildId":   s.guildID,
		"connected": s.connected,
		"position":  s.position,
	}
	if s.current != nil {
		out["track"] = map[string]interface{}{
			"title":     s.current.Title,
			"author":    s.current.Author,
			"uri":       s.current.URI,
			"thumbnail": s.current.ArtworkURL,
			"isStream":  s.current.IsStream,
		}
	}
	return out
}
