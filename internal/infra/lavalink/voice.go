package lavalink

import (
	"context"

	"github.com/rs/zerolog/log"
)

// HandleVoiceStateUpdate records the bot's own voice session for a guild.
// An empty channelID means the bot left voice and the player is destroyed.
func (n *Node) HandleVoiceStateUpdate(ctx context.Context, guildID, channelID, sessionID string) {
	if channelID == "" {
		if err := n.DestroyPlayer(ctx, guildID); err != nil {
			log.Debug().Err(err).Str("guild", guildID).Msg("Failed to destroy player after voice leave")
		}
		return
	}

	n.voiceMu.Lock()
	v := n.voice[guildID]
	v.SessionID = sessionID
	n.voice[guildID] = v
	n.voiceMu.Unlock()

	n.pushVoice(ctx, guildID, v)
}

// HandleVoiceServerUpdate records the voice server Discord assigned to a guild.
func (n *Node) HandleVoiceServerUpdate(ctx context.Context, guildID, token, endpoint string) {
	n.voiceMu.Lock()
	v := n.voice[guildID]
	v.Token = token
	v.Endpoint = endpoint
	n.voice[guildID] = v
	n.voiceMu.Unlock()

	n.pushVoice(ctx, guildID, v)
}

func (n *Node) voiceState(guildID string) (VoiceState, bool) {
	n.voiceMu.Lock()
	defer n.voiceMu.Unlock()
	v, ok := n.voice[guildID]
	if !ok || !v.complete() {
		return VoiceState{}, false
	}
	return v, true
}

// pushVoice forwards the voice state to the node once all parts are known.
func (n *Node) pushVoice(ctx context.Context, guildID string, v VoiceState) {
	if !v.complete() {
		return
	}
	if err := n.UpdatePlayer(ctx, guildID, PlayerUpdate{Voice: &v}); err != nil {
		log.Warn().Err(err).Str("guild", guildID).Msg("Failed to send voice update to Lavalink")
		return
	}
	log.Debug().Str("guild", guildID).Str("endpoint", v.Endpoint).Msg("Voice update sent to Lavalink")
}
