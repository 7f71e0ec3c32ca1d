package lavalink

import (
	"encoding/json"

	"github.com/edumarques81/stellar-radiobot/internal/domain/player"
)

// Websocket op codes.
const (
	OpReady        = "ready"
	OpPlayerUpdate = "playerUpdate"
	OpStats        = "stats"
	OpEvent        = "event"
)

// Event types carried by OpEvent messages.
const (
	EventTrackStart      = "TrackStartEvent"
	EventTrackEnd        = "TrackEndEvent"
	EventTrackException  = "TrackExceptionEvent"
	EventTrackStuck      = "TrackStuckEvent"
	EventWebSocketClosed = "WebSocketClosedEvent"
)

// Track end reasons.
const (
	EndReasonFinished   = "finished"
	EndReasonLoadFailed = "loadFailed"
	EndReasonStopped    = "stopped"
	EndReasonReplaced   = "replaced"
	EndReasonCleanup    = "cleanup"
)

// TrackInfo is the metadata of a loaded track.
type TrackInfo struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
	ArtworkURL string `json:"artworkUrl"`
	SourceName string `json:"sourceName"`
}

// Track is an encoded track plus its metadata.
type Track struct {
	Encoded string    `json:"encoded"`
	Info    TrackInfo `json:"info"`
}

// ToPlayerTrack converts a node track into the player domain track.
func (t Track) ToPlayerTrack() player.Track {
	return player.Track{
		Encoded:    t.Encoded,
		Identifier: t.Info.Identifier,
		URI:        t.Info.URI,
		Title:      t.Info.Title,
		Author:     t.Info.Author,
		ArtworkURL: t.Info.ArtworkURL,
		Length:     t.Info.Length,
		IsStream:   t.Info.IsStream,
	}
}

// message is the envelope of every websocket payload.
type message struct {
	Op      string `json:"op"`
	GuildID string `json:"guildId"`

	// ready
	Resumed   bool   `json:"resumed"`
	SessionID string `json:"sessionId"`

	// playerUpdate
	State *playerState `json:"state"`

	// event
	Type   string          `json:"type"`
	Track  *Track          `json:"track"`
	Reason string          `json:"reason"`
	Code   int             `json:"code"`
	Raw    json.RawMessage `json:"exception"`
}

type playerState struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
	Ping      int   `json:"ping"`
}

// Load result types.
const (
	LoadTypeTrack    = "track"
	LoadTypePlaylist = "playlist"
	LoadTypeSearch   = "search"
	LoadTypeEmpty    = "empty"
	LoadTypeError    = "error"
)

type loadResult struct {
	LoadType string          `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

type loadException struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

type playlistData struct {
	Tracks []Track `json:"tracks"`
}

// VoiceState is the Discord voice connection a player must use.
type VoiceState struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

func (v VoiceState) complete() bool {
	return v.Token != "" && v.Endpoint != "" && v.SessionID != ""
}

// PlayerUpdate is the body of a player PATCH request.
// Nil fields are left unchanged by the node.
type PlayerUpdate struct {
	Track  *TrackUpdate `json:"track,omitempty"`
	Volume *int         `json:"volume,omitempty"`
	Paused *bool        `json:"paused,omitempty"`
	Voice  *VoiceState  `json:"voice,omitempty"`
}

// TrackUpdate selects the track to play by encoded blob or identifier.
type TrackUpdate struct {
	Encoded    *string `json:"encoded,omitempty"`
	Identifier string  `json:"identifier,omitempty"`
}

type apiError struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Path    string `json:"path"`
}
