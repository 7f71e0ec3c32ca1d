package discordbot

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/gateway"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-radiobot/internal/domain/player"
	"github.com/edumarques81/stellar-radiobot/internal/domain/radio"
)

// Presence timing.
const (
	PresenceDebounce = time.Second
	PresenceRefresh  = 2 * time.Minute
)

const (
	maxActivityLength = 120
	activityPrefixLen = 7 // "🎵 " and " in "
	maxGuildNameShown = 25
	presenceTimeout   = 5 * time.Second
)

// PresenceSetter changes the bot's gateway presence. *bot.Client satisfies it.
type PresenceSetter interface {
	SetPresence(ctx context.Context, opts ...gateway.PresenceOpt) error
}

// Presence keeps the bot's activity in line with what is playing: the
// song and server when one guild plays, a server count when several do,
// and the idle text otherwise. Bursts of changes collapse into one update.
type Presence struct {
	setter    PresenceSetter
	players   *player.Service
	guildName func(guildID string) string
	idle      string
	window    time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	last    string
	stopped bool
}

// NewPresence creates a presence updater. guildName may return "" for
// guilds it does not know.
func NewPresence(setter PresenceSetter, players *player.Service, guildName func(guildID string) string, idle string) *Presence {
	return &Presence{
		setter:    setter,
		players:   players,
		guildName: guildName,
		idle:      idle,
		window:    PresenceDebounce,
	}
}

// SongChanged schedules an update after a new song is detected.
func (p *Presence) SongChanged(guildID string, song radio.SongInfo) {
	p.Trigger()
}

// Trigger schedules an update once changes settle.
func (p *Presence) Trigger() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.window, p.flush)
}

func (p *Presence) flush() {
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	p.Update(ctx)
}

// Run refreshes the presence now and then every PresenceRefresh until ctx
// is done.
func (p *Presence) Run(ctx context.Context) {
	p.Trigger()

	ticker := time.NewTicker(PresenceRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Trigger()
		}
	}
}

// Stop cancels any pending update.
func (p *Presence) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
	}
}

// Update sets the presence immediately when the activity text changed.
func (p *Presence) Update(ctx context.Context) {
	text, playing := p.Activity()

	p.mu.Lock()
	if text == p.last {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	activity := gateway.WithCustomActivity(text)
	if playing {
		activity = gateway.WithListeningActivity(text)
	}
	if err := p.setter.SetPresence(ctx, activity, gateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		log.Warn().Err(err).Msg("Failed to update presence")
		return
	}

	p.mu.Lock()
	p.last = text
	p.mu.Unlock()

	log.Debug().Str("activity", text).Msg("Presence updated")
}

// Activity returns the text to show and whether anything is playing.
func (p *Presence) Activity() (string, bool) {
	var active []*player.State
	for _, st := range p.players.List() {
		if _, ok := st.CurrentTrack(); ok && st.Connected() {
			active = append(active, st)
		}
	}

	switch len(active) {
	case 0:
		return p.idle, false
	case 1:
		track, _ := active[0].CurrentTrack()
		return listeningText(track.Title, p.displayGuild(active[0].GuildID())), true
	default:
		return fmt.Sprintf("🎶 Music in %d servers", len(active)), true
	}
}

func (p *Presence) displayGuild(guildID string) string {
	if p.guildName != nil {
		if name := p.guildName(guildID); name != "" {
			return name
		}
	}
	suffix := guildID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return "Server " + suffix
}

// listeningText formats "🎵 <title> in <guild>" within Discord's activity
// limit, shortening the guild name first and then the title.
func listeningText(title, guild string) string {
	available := maxActivityLength - activityPrefixLen
	if utf8.RuneCountInString(title)+utf8.RuneCountInString(guild) > available {
		guild = truncate(guild, maxGuildNameShown)
		title = truncate(title, available-utf8.RuneCountInString(guild))
	}
	return "🎵 " + title + " in " + guild
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-3]) + "..."
}
