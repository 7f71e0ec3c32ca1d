package radio

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-radiobot/internal/domain/player"
)

const (
	// DefaultPollInterval is how often an active session polls its station.
	DefaultPollInterval = 10 * time.Second
)

// DefaultProbeDelays are the extra early polls after a session starts, so a
// song change shortly after playback begins is picked up quickly.
var DefaultProbeDelays = []time.Duration{
	2 * time.Second,
	5 * time.Second,
	8 * time.Second,
	15 * time.Second,
}

// Player is the view of a guild player the engine needs.
type Player interface {
	GuildID() string
	Connected() bool
	CurrentTrack() (player.Track, bool)
	OriginalTrack() (player.Track, bool)
	SetTrackDisplay(title, author, artworkURL string)
}

// PlayerLookup resolves the live player of a guild.
type PlayerLookup func(guildID string) (Player, bool)

// Fetcher retrieves a metadata document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Announcer posts a now-playing notice for a new song.
type Announcer interface {
	AnnounceSong(ctx context.Context, guildID string, song SongInfo) error
}

// Broadcaster pushes the current song to dashboard subscribers of a guild.
type Broadcaster interface {
	BroadcastSong(guildID string, song SongInfo)
}

// SongNotifier hears about each new song. It must not block.
type SongNotifier interface {
	SongChanged(guildID string, song SongInfo)
}

// ArtworkResolver looks up a cover for songs whose feed has none.
type ArtworkResolver interface {
	Artwork(ctx context.Context, artist, title string) (string, error)
}

// Config tunes the engine's polling schedule.
type Config struct {
	PollInterval time.Duration
	ProbeDelays  []time.Duration
}

// DefaultConfig returns the production schedule.
func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		ProbeDelays:  append([]time.Duration(nil), DefaultProbeDelays...),
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig overrides the polling schedule.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		if cfg.PollInterval > 0 {
			e.cfg.PollInterval = cfg.PollInterval
		}
		if cfg.ProbeDelays != nil {
			e.cfg.ProbeDelays = append([]time.Duration(nil), cfg.ProbeDelays...)
		}
	}
}

// WithScheduler replaces the runtime scheduler.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) {
		e.scheduler = s
	}
}

// WithAnnouncer sets the chat sink.
func WithAnnouncer(a Announcer) Option {
	return func(e *Engine) {
		e.announcer = a
	}
}

// WithBroadcaster sets the dashboard sink.
func WithBroadcaster(b Broadcaster) Option {
	return func(e *Engine) {
		e.broadcaster = b
	}
}

// WithSongNotifier adds a listener told about every newly detected song.
func WithSongNotifier(n SongNotifier) Option {
	return func(e *Engine) {
		e.notifiers = append(e.notifiers, n)
	}
}

// WithArtworkResolver enables cover lookups for songs without artwork.
func WithArtworkResolver(r ArtworkResolver) Option {
	return func(e *Engine) {
		e.artwork = r
	}
}

// session is one guild's active station binding.
type session struct {
	guildID   string
	stationID string

	// pollMu serializes fetchAndUpdate for the session.
	pollMu sync.Mutex

	// Guarded by Engine.mu.
	poll            Timer
	probes          []Timer
	lastFingerprint string
	lastArtwork     string
}

// Engine tracks which guilds are playing a known station and keeps their
// displayed song current.
type Engine struct {
	catalog     *Catalog
	classifier  *Classifier
	fetcher     Fetcher
	players     PlayerLookup
	announcer   Announcer
	broadcaster Broadcaster
	artwork     ArtworkResolver
	notifiers   []SongNotifier
	scheduler   Scheduler
	cfg         Config

	timers *TimerRegistry

	mu       sync.Mutex
	sessions map[string]*session

	// starting tracks first polls still in flight. No session starts
	// once closed is set.
	starting sync.WaitGroup
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine creates a detection engine.
func NewEngine(catalog *Catalog, fetcher Fetcher, players PlayerLookup, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		catalog:    catalog,
		classifier: NewClassifier(catalog),
		fetcher:    fetcher,
		players:    players,
		scheduler:  NewScheduler(),
		cfg:        DefaultConfig(),
		timers:     NewTimerRegistry(),
		sessions:   make(map[string]*session),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnTrackStart starts a session when the track belongs to a known station.
// Any previous session of the guild is stopped first. The session is
// registered before OnTrackStart returns; its first poll runs at once on
// another goroutine, so a node event loop calling in is never held up by a
// station feed.
func (e *Engine) OnTrackStart(p Player, track player.Track) {
	stationID, ok := e.classifier.Classify(track)
	if !ok {
		return
	}
	guildID := p.GuildID()

	e.StopSession(guildID)

	sess := &session{guildID: guildID, stationID: stationID}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if prev := e.sessions[guildID]; prev != nil {
		e.disposeLocked(prev)
	}
	e.sessions[guildID] = sess
	sess.poll = e.scheduler.Every(e.cfg.PollInterval, func() { e.tick(sess) })
	e.timers.Add(sess.poll)
	e.starting.Add(1)
	e.mu.Unlock()

	log.Info().
		Str("guild", guildID).
		Str("station", stationID).
		Msg("Radio session started")

	go func() {
		defer e.starting.Done()
		e.prime(sess)
	}()
}

// prime runs a new session's first poll and then schedules its probes,
// unless the session ended in the meantime.
func (e *Engine) prime(sess *session) {
	e.fetchAndUpdate(e.ctx, sess)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sessions[sess.guildID] != sess {
		return
	}
	for _, delay := range e.cfg.ProbeDelays {
		var probe Timer
		probe = e.scheduler.After(delay, func() { e.probe(sess, probe) })
		sess.probes = append(sess.probes, probe)
		e.timers.Add(probe)
	}
}

// OnTrackEnd stops the guild's session, if any.
func (e *Engine) OnTrackEnd(guildID string) {
	e.StopSession(guildID)
}

// StopSession cancels the guild's timers and forgets its session.
// It is a no-op when the guild has no session.
func (e *Engine) StopSession(guildID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.sessions[guildID]
	if !ok {
		return
	}
	delete(e.sessions, guildID)
	e.disposeLocked(sess)

	log.Info().
		Str("guild", guildID).
		Str("station", sess.stationID).
		Msg("Radio session stopped")
}

// ForceCleanupGuild stops a single guild's session.
func (e *Engine) ForceCleanupGuild(guildID string) {
	e.StopSession(guildID)
}

// ForceUpdateNow polls the guild's station immediately.
// It reports whether the guild had a session.
func (e *Engine) ForceUpdateNow(ctx context.Context, guildID string) bool {
	e.mu.Lock()
	sess, ok := e.sessions[guildID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	e.fetchAndUpdate(ctx, sess)
	return true
}

// Cleanup stops every session and then every timer still registered,
// returning how many timers were registered beforehand.
func (e *Engine) Cleanup() int {
	registered := e.timers.Len()

	e.mu.Lock()
	sessions := e.sessions
	e.sessions = make(map[string]*session)
	for _, sess := range sessions {
		e.disposeLocked(sess)
	}
	e.mu.Unlock()

	orphans := e.timers.StopAll()

	log.Info().
		Int("sessions", len(sessions)).
		Int("timers", registered).
		Int("orphans", orphans).
		Msg("Radio detection cleaned up")
	return registered
}

// Close stops everything, aborts in-flight fetches and waits for pending
// first polls to return.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.Cleanup()
	e.cancel()
	e.starting.Wait()
}

// IsActive reports whether the guild has a session.
func (e *Engine) IsActive(guildID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sessions[guildID]
	return ok
}

// ActiveStation returns the station bound to the guild's session.
func (e *Engine) ActiveStation(guildID string) (Station, bool) {
	e.mu.Lock()
	sess, ok := e.sessions[guildID]
	e.mu.Unlock()
	if !ok {
		return Station{}, false
	}
	return e.catalog.Get(sess.stationID)
}

// Stations returns the catalog in order.
func (e *Engine) Stations() []Station {
	return e.catalog.All()
}

// Catalog returns the engine's station catalog.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// SessionInfo describes one active session.
type SessionInfo struct {
	GuildID         string `json:"guildId"`
	StationID       string `json:"stationId"`
	LastFingerprint string `json:"lastFingerprint,omitempty"`
	Polling         bool   `json:"polling"`
	PendingProbes   int    `json:"pendingProbes"`
}

// DebugInfo is a point-in-time view of the engine.
type DebugInfo struct {
	Sessions   []SessionInfo `json:"sessions"`
	TimerCount int           `json:"timerCount"`
	Stations   []string      `json:"stations"`
}

// Debug returns the engine's current sessions and timer count.
func (e *Engine) Debug() DebugInfo {
	e.mu.Lock()
	sessions := make([]SessionInfo, 0, len(e.sessions))
	for _, sess := range e.sessions {
		sessions = append(sessions, SessionInfo{
			GuildID:         sess.guildID,
			StationID:       sess.stationID,
			LastFingerprint: sess.lastFingerprint,
			Polling:         sess.poll != nil && e.timers.Contains(sess.poll),
			PendingProbes:   len(sess.probes),
		})
	}
	e.mu.Unlock()

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].GuildID < sessions[j].GuildID })

	return DebugInfo{
		Sessions:   sessions,
		TimerCount: e.timers.Len(),
		Stations:   e.catalog.IDs(),
	}
}

// disposeLocked stops and unregisters the session's timers.
// Caller must hold e.mu.
func (e *Engine) disposeLocked(sess *session) {
	if sess.poll != nil {
		sess.poll.Stop()
		e.timers.Remove(sess.poll)
	}
	for _, probe := range sess.probes {
		probe.Stop()
		e.timers.Remove(probe)
	}
	sess.probes = nil
}

// owns reports whether sess is still the guild's live session.
// Caller must hold e.mu.
func (e *Engine) ownsLocked(sess *session) bool {
	cur, ok := e.sessions[sess.guildID]
	return ok && cur == sess && cur.stationID == sess.stationID
}

// stopIfCurrent stops sess if it is still the guild's live session.
func (e *Engine) stopIfCurrent(sess *session, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ownsLocked(sess) {
		return
	}
	delete(e.sessions, sess.guildID)
	e.disposeLocked(sess)

	log.Info().
		Str("guild", sess.guildID).
		Str("station", sess.stationID).
		Str("reason", reason).
		Msg("Radio session stopped")
}

func (e *Engine) tick(sess *session) {
	e.mu.Lock()
	if !e.ownsLocked(sess) {
		if sess.poll != nil {
			sess.poll.Stop()
			e.timers.Remove(sess.poll)
		}
		e.mu.Unlock()
		log.Debug().
			Str("guild", sess.guildID).
			Str("station", sess.stationID).
			Msg("Stale radio timer cancelled")
		return
	}
	e.mu.Unlock()

	if _, ok := e.livePlayer(sess); !ok {
		return
	}

	e.fetchAndUpdate(e.ctx, sess)
}

func (e *Engine) probe(sess *session, t Timer) {
	e.mu.Lock()
	for i, p := range sess.probes {
		if p == t {
			sess.probes = append(sess.probes[:i], sess.probes[i+1:]...)
			break
		}
	}
	e.timers.Remove(t)
	owned := e.ownsLocked(sess)
	e.mu.Unlock()

	if !owned {
		return
	}
	e.fetchAndUpdate(e.ctx, sess)
}

// livePlayer returns the guild's player if it is still connected and
// playing. Otherwise the session is stopped.
func (e *Engine) livePlayer(sess *session) (Player, bool) {
	p, ok := e.players(sess.guildID)
	if !ok || p == nil {
		e.stopIfCurrent(sess, "player gone")
		return nil, false
	}
	if !p.Connected() {
		e.stopIfCurrent(sess, "player disconnected")
		return nil, false
	}
	if _, ok := p.CurrentTrack(); !ok {
		e.stopIfCurrent(sess, "nothing playing")
		return nil, false
	}
	return p, true
}

// validate re-checks that sess is live and its player still plays the
// session's station. The loaded track is used for the station check since
// the displayed one may have been rewritten.
func (e *Engine) validate(sess *session) (Player, bool) {
	e.mu.Lock()
	owned := e.ownsLocked(sess)
	e.mu.Unlock()
	if !owned {
		return nil, false
	}

	p, ok := e.livePlayer(sess)
	if !ok {
		return nil, false
	}

	track, _ := p.CurrentTrack()
	if orig, ok := p.OriginalTrack(); ok {
		track = orig
	}
	if id, ok := e.classifier.Classify(track); !ok || id != sess.stationID {
		log.Warn().
			Str("guild", sess.guildID).
			Str("station", sess.stationID).
			Str("playing", id).
			Msg("Player no longer on session station")
		e.stopIfCurrent(sess, "station mismatch")
		return nil, false
	}
	return p, true
}

func (e *Engine) fetchAndUpdate(ctx context.Context, sess *session) {
	sess.pollMu.Lock()
	defer sess.pollMu.Unlock()

	p, ok := e.validate(sess)
	if !ok {
		return
	}

	station, ok := e.catalog.Get(sess.stationID)
	if !ok {
		log.Error().
			Str("guild", sess.guildID).
			Str("station", sess.stationID).
			Msg("Session bound to unknown station")
		return
	}

	song, ok := e.currentSong(ctx, station)
	if !ok {
		return
	}

	song = e.withArtwork(ctx, sess, station, song)
	fingerprint := song.Fingerprint()

	e.mu.Lock()
	if !e.ownsLocked(sess) {
		e.mu.Unlock()
		log.Debug().
			Str("guild", sess.guildID).
			Str("station", sess.stationID).
			Msg("Discarding metadata for ended session")
		return
	}
	isNew := sess.lastFingerprint != fingerprint
	if isNew {
		sess.lastFingerprint = fingerprint
		sess.lastArtwork = song.Artwork
	}
	e.mu.Unlock()

	p.SetTrackDisplay(song.Title, song.DisplayAuthor(), song.Artwork)

	if isNew {
		log.Info().
			Str("guild", sess.guildID).
			Str("station", station.ID).
			Str("artist", song.Artist).
			Str("title", song.Title).
			Msg("Now playing")

		for _, n := range e.notifiers {
			n.SongChanged(sess.guildID, song)
		}

		if e.announcer != nil {
			if err := e.announcer.AnnounceSong(ctx, sess.guildID, song); err != nil {
				log.Warn().Err(err).Str("guild", sess.guildID).Msg("Failed to announce song")
			}
		}
	}

	if e.broadcaster != nil {
		e.broadcaster.BroadcastSong(sess.guildID, song)
	}
}

// withArtwork fills in a missing cover. A song is looked up once; later
// polls of the same song reuse the result, found or not.
func (e *Engine) withArtwork(ctx context.Context, sess *session, station Station, song SongInfo) SongInfo {
	if song.Artwork != "" || e.artwork == nil || !station.HasMetadata() {
		return song
	}

	e.mu.Lock()
	seen := sess.lastFingerprint == song.Fingerprint()
	cached := sess.lastArtwork
	e.mu.Unlock()

	if seen {
		song.Artwork = cached
		return song
	}

	url, err := e.artwork.Artwork(ctx, song.Artist, song.Title)
	if err != nil {
		log.Debug().Err(err).Str("station", station.ID).Str("title", song.Title).Msg("No fallback artwork")
		return song
	}
	song.Artwork = url
	return song
}

// currentSong fetches and parses the station's feed, or synthesizes a
// placeholder for stations without one.
func (e *Engine) currentSong(ctx context.Context, station Station) (SongInfo, bool) {
	if !station.HasMetadata() {
		return placeholderSong(station), true
	}

	body, err := e.fetcher.Fetch(ctx, station.MetadataURL)
	if err != nil {
		log.Warn().Err(err).Str("station", station.ID).Msg("Failed to fetch station metadata")
		return SongInfo{}, false
	}

	song, ok, err := ParseSong(station, body)
	if err != nil {
		log.Warn().Err(err).Str("station", station.ID).Msg("Failed to parse station metadata")
		return SongInfo{}, false
	}
	if !ok {
		log.Debug().Str("station", station.ID).Msg("Station metadata not ready")
		return SongInfo{}, false
	}
	return song, true
}
