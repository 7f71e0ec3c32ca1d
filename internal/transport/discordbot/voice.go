package discordbot

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/events"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-radiobot/internal/domain/player"
)

const voiceTimeout = 10 * time.Second

// VoiceForwarder receives the bot's Discord voice credentials.
// *lavalink.Node satisfies it.
type VoiceForwarder interface {
	HandleVoiceStateUpdate(ctx context.Context, guildID, channelID, sessionID string)
	HandleVoiceServerUpdate(ctx context.Context, guildID, token, endpoint string)
}

// VoiceRelay forwards the bot's voice gateway events to the audio node
// and keeps player voice channels current.
type VoiceRelay struct {
	node    VoiceForwarder
	players *player.Service
}

// NewVoiceRelay creates a relay.
func NewVoiceRelay(node VoiceForwarder, players *player.Service) *VoiceRelay {
	return &VoiceRelay{node: node, players: players}
}

// OnVoiceStateUpdate is a disgo listener for voice state changes.
func (r *VoiceRelay) OnVoiceStateUpdate(event *events.GuildVoiceStateUpdate) {
	vs := event.VoiceState
	if vs.UserID != event.Client().ID() {
		return
	}

	channelID := ""
	if vs.ChannelID != nil {
		channelID = vs.ChannelID.String()
	}
	r.BotVoiceState(vs.GuildID.String(), channelID, vs.SessionID)
}

// OnVoiceServerUpdate is a disgo listener for voice server assignments.
func (r *VoiceRelay) OnVoiceServerUpdate(event *events.VoiceServerUpdate) {
	if event.Endpoint == nil {
		return
	}
	r.VoiceServer(event.GuildID.String(), event.Token, *event.Endpoint)
}

// BotVoiceState applies the bot's voice state in a guild. An empty
// channelID means the bot was disconnected from voice.
func (r *VoiceRelay) BotVoiceState(guildID, channelID, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), voiceTimeout)
	defer cancel()

	if channelID == "" {
		log.Info().Str("guild", guildID).Msg("Bot left voice")
		r.node.HandleVoiceStateUpdate(ctx, guildID, "", "")
		r.players.Remove(guildID)
		return
	}

	if p := r.players.Get(guildID); p != nil && p.VoiceChannelID() != channelID {
		log.Info().Str("guild", guildID).Str("channel", channelID).Msg("Bot moved voice channel")
		p.SetVoiceChannel(channelID)
	}
	r.node.HandleVoiceStateUpdate(ctx, guildID, channelID, sessionID)
}

// VoiceServer forwards a voice server assignment.
func (r *VoiceRelay) VoiceServer(guildID, token, endpoint string) {
	ctx, cancel := context.WithTimeout(context.Background(), voiceTimeout)
	defer cancel()

	r.node.HandleVoiceServerUpdate(ctx, guildID, token, endpoint)
}
