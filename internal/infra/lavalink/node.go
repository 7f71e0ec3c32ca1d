// Package lavalink is a client for a Lavalink v4 audio node: the event
// websocket plus the REST endpoints the bot needs.
package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-radiobot/internal/domain/player"
)

const (
	// DefaultClientName is sent in the Client-Name handshake header.
	DefaultClientName = "Stellar-Radio/1.0"

	// DefaultRequestTimeout bounds REST calls to the node.
	DefaultRequestTimeout = 10 * time.Second

	minReconnectDelay = 1 * time.Second
	maxReconnectDelay = 30 * time.Second
)

var (
	// ErrNotConnected is returned by REST calls before the node sent ready.
	ErrNotConnected = errors.New("lavalink node not connected")

	// ErrNoMatches is returned when a track lookup finds nothing.
	ErrNoMatches = errors.New("no matching tracks")

	// ErrLoadFailed is returned when the node fails to load a track.
	ErrLoadFailed = errors.New("track load failed")
)

// EventHandler receives player lifecycle events in the order the node sent them.
type EventHandler interface {
	TrackStarted(guildID string, track player.Track)
	TrackEnded(guildID, reason string)
	PlayerUpdated(guildID string, connected bool, position int64)
	VoiceClosed(guildID string, code int, reason string)
	NodeDisconnected()
}

// Config describes how to reach a node.
type Config struct {
	Name       string
	Host       string
	Port       int
	Password   string
	Secure     bool
	UserID     string
	ClientName string
}

func (c Config) baseURL(ws bool) string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	if ws {
		scheme = "ws"
		if c.Secure {
			scheme = "wss"
		}
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// Option is a functional option for configuring a node.
type Option func(*Node)

// WithHTTPClient sets the HTTP client used for REST calls.
func WithHTTPClient(client *http.Client) Option {
	return func(n *Node) {
		n.httpClient = client
	}
}

// WithDialer sets the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(n *Node) {
		n.dialer = d
	}
}

// WithReconnectDelay sets the initial and maximum reconnect backoff.
func WithReconnectDelay(min, max time.Duration) Option {
	return func(n *Node) {
		n.minDelay = min
		n.maxDelay = max
	}
}

// Node is a connection to one Lavalink node.
type Node struct {
	cfg        Config
	handler    EventHandler
	httpClient *http.Client
	dialer     *websocket.Dialer
	minDelay   time.Duration
	maxDelay   time.Duration

	mu        sync.RWMutex
	conn      *websocket.Conn
	sessionID string
	ready     chan struct{}

	voiceMu sync.Mutex
	voice   map[string]VoiceState

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNode creates a node client. Call Connect to open the websocket.
func NewNode(cfg Config, handler EventHandler, opts ...Option) *Node {
	if cfg.Name == "" {
		cfg.Name = "main"
	}
	if cfg.ClientName == "" {
		cfg.ClientName = DefaultClientName
	}

	n := &Node{
		cfg:     cfg,
		handler: handler,
		httpClient: &http.Client{
			Timeout: DefaultRequestTimeout,
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		minDelay: minReconnectDelay,
		maxDelay: maxReconnectDelay,
		ready:    make(chan struct{}),
		voice:    make(map[string]VoiceState),
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Name returns the configured node name.
func (n *Node) Name() string {
	return n.cfg.Name
}

// Connect starts the websocket loop. It returns immediately; the loop
// reconnects with backoff until Close is called.
func (n *Node) Connect(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.run(ctx)
	}()
}

// WaitReady blocks until the node has sent its ready message.
func (n *Node) WaitReady(ctx context.Context) error {
	n.mu.RLock()
	ready := n.ready
	n.mu.RUnlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the websocket loop and waits for it to exit.
func (n *Node) Close() error {
	if n.cancel != nil {
		n.cancel()
	}

	n.mu.Lock()
	if n.conn != nil {
		n.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		n.conn.Close()
	}
	n.mu.Unlock()

	n.wg.Wait()
	return nil
}

// Connected reports whether the node session is ready.
func (n *Node) Connected() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sessionID != ""
}

// SessionID returns the current node session, or "" before ready.
func (n *Node) SessionID() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sessionID
}

func (n *Node) run(ctx context.Context) {
	delay := n.minDelay

	for {
		started := time.Now()
		err := n.session(ctx)
		if ctx.Err() != nil {
			return
		}

		if time.Since(started) > n.maxDelay {
			delay = n.minDelay
		}

		log.Warn().
			Err(err).
			Str("node", n.cfg.Name).
			Dur("retryIn", delay).
			Msg("Lavalink connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > n.maxDelay {
			delay = n.maxDelay
		}
	}
}

// session dials the node and reads until the connection breaks.
func (n *Node) session(ctx context.Context) error {
	headers := http.Header{}
	headers.Set("Authorization", n.cfg.Password)
	headers.Set("User-Id", n.cfg.UserID)
	headers.Set("Client-Name", n.cfg.ClientName)

	wsURL := n.cfg.baseURL(true) + "/v4/websocket"
	conn, _, err := n.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}

	n.mu.Lock()
	n.conn = conn
	n.mu.Unlock()

	log.Info().Str("node", n.cfg.Name).Str("url", wsURL).Msg("Connected to Lavalink")

	defer func() {
		n.mu.Lock()
		n.conn = nil
		hadSession := n.sessionID != ""
		if hadSession {
			n.sessionID = ""
			n.ready = make(chan struct{})
		}
		n.mu.Unlock()
		conn.Close()

		// The node drops its players along with the session.
		if hadSession {
			n.handler.NodeDisconnected()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		n.handleMessage(data)
	}
}

func (n *Node) handleMessage(data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Err(err).Msg("Ignoring malformed Lavalink message")
		return
	}

	switch msg.Op {
	case OpReady:
		n.mu.Lock()
		n.sessionID = msg.SessionID
		select {
		case <-n.ready:
		default:
			close(n.ready)
		}
		n.mu.Unlock()

		log.Info().
			Str("node", n.cfg.Name).
			Str("session", msg.SessionID).
			Bool("resumed", msg.Resumed).
			Msg("Lavalink ready")

	case OpPlayerUpdate:
		if msg.State == nil || msg.GuildID == "" {
			return
		}
		n.handler.PlayerUpdated(msg.GuildID, msg.State.Connected, msg.State.Position)

	case OpEvent:
		n.handleEvent(msg)

	case OpStats:
	}
}

func (n *Node) handleEvent(msg message) {
	switch msg.Type {
	case EventTrackStart:
		if msg.Track == nil {
			return
		}
		n.handler.TrackStarted(msg.GuildID, msg.Track.ToPlayerTrack())

	case EventTrackEnd:
		n.handler.TrackEnded(msg.GuildID, msg.Reason)

	case EventTrackException:
		log.Error().
			Str("guild", msg.GuildID).
			RawJSON("exception", rawOrNull(msg.Raw)).
			Msg("Track exception")

	case EventTrackStuck:
		log.Warn().Str("guild", msg.GuildID).Msg("Track stuck")

	case EventWebSocketClosed:
		n.handler.VoiceClosed(msg.GuildID, msg.Code, msg.Reason)
	}
}

func rawOrNull(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}

// LoadTrack resolves an identifier (URL or search query) to a single track.
func (n *Node) LoadTrack(ctx context.Context, identifier string) (*Track, error) {
	var res loadResult
	path := "/v4/loadtracks?identifier=" + url.QueryEscape(identifier)
	if err := n.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}

	switch res.LoadType {
	case LoadTypeTrack:
		var t Track
		if err := json.Unmarshal(res.Data, &t); err != nil {
			return nil, fmt.Errorf("parse track: %w", err)
		}
		return &t, nil
	case LoadTypeSearch:
		var tracks []Track
		if err := json.Unmarshal(res.Data, &tracks); err != nil {
			return nil, fmt.Errorf("parse search: %w", err)
		}
		if len(tracks) == 0 {
			return nil, ErrNoMatches
		}
		return &tracks[0], nil
	case LoadTypePlaylist:
		var pl playlistData
		if err := json.Unmarshal(res.Data, &pl); err != nil {
			return nil, fmt.Errorf("parse playlist: %w", err)
		}
		if len(pl.Tracks) == 0 {
			return nil, ErrNoMatches
		}
		return &pl.Tracks[0], nil
	case LoadTypeEmpty:
		return nil, ErrNoMatches
	case LoadTypeError:
		var ex loadException
		json.Unmarshal(res.Data, &ex)
		return nil, fmt.Errorf("%w: %s", ErrLoadFailed, ex.Message)
	default:
		return nil, fmt.Errorf("%w: unknown load type %q", ErrLoadFailed, res.LoadType)
	}
}

// UpdatePlayer creates or modifies the player of a guild.
func (n *Node) UpdatePlayer(ctx context.Context, guildID string, update PlayerUpdate) error {
	sid := n.SessionID()
	if sid == "" {
		return ErrNotConnected
	}
	path := fmt.Sprintf("/v4/sessions/%s/players/%s", sid, guildID)
	return n.do(ctx, http.MethodPatch, path, update, nil)
}

// PlayTrack starts playing an encoded track, joining voice if the voice
// state for the guild is already known.
func (n *Node) PlayTrack(ctx context.Context, guildID string, track Track) error {
	encoded := track.Encoded
	update := PlayerUpdate{Track: &TrackUpdate{Encoded: &encoded}}
	if v, ok := n.voiceState(guildID); ok {
		update.Voice = &v
	}
	return n.UpdatePlayer(ctx, guildID, update)
}

// DestroyPlayer removes a guild's player from the node.
func (n *Node) DestroyPlayer(ctx context.Context, guildID string) error {
	n.voiceMu.Lock()
	delete(n.voice, guildID)
	n.voiceMu.Unlock()

	sid := n.SessionID()
	if sid == "" {
		return ErrNotConnected
	}
	path := fmt.Sprintf("/v4/sessions/%s/players/%s", sid, guildID)
	return n.do(ctx, http.MethodDelete, path, nil, nil)
}

func (n *Node) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, n.cfg.baseURL(false)+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", n.cfg.Password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr)
		if apiErr.Message != "" {
			return fmt.Errorf("lavalink %s %s: %d %s", method, path, resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("lavalink %s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
