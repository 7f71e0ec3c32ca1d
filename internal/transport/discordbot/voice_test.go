package discordbot

import (
	"context"
	"testing"

	"github.com/edumarques81/stellar-radiobot/internal/domain/player"
)

type forwardedVoice struct {
	kind, guild, a, b string
}

type fakeForwarder struct {
	calls []forwardedVoice
}

func (f *fakeForwarder) HandleVoiceStateUpdate(ctx context.Context, guildID, channelID, sessionID string) {
	f.calls = append(f.calls, forwardedVoice{"state", guildID, channelID, sessionID})
}

func (f *fakeForwarder) HandleVoiceServerUpdate(ctx context.Context, guildID, token, endpoint string) {
	f.calls = append(f.calls, forwardedVoice{"server", guildID, token, endpoint})
}

func TestVoiceRelayForwardsJoin(t *testing.T) {
	node := &fakeForwarder{}
	players := player.NewService()
	p := players.GetOrCreate(testGuild)
	p.SetVoiceChannel(testVoice)

	relay := NewVoiceRelay(node, players)
	relay.BotVoiceState(testGuild, "555555555555555555", "session-1")
	relay.VoiceServer(testGuild, "token-1", "eu.discord.media")

	want := []forwardedVoice{
		{"state", testGuild, "555555555555555555", "session-1"},
		{"server", testGuild, "token-1", "eu.discord.media"},
	}
	if len(node.calls) != len(want) {
		t.Fatalf("expected %d forwarded events, got %+v", len(want), node.calls)
	}
	for i := range want {
		if node.calls[i] != want[i] {
			t.Errorf("call %d: expected %+v, got %+v", i, want[i], node.calls[i])
		}
	}

	if p.VoiceChannelID() != "555555555555555555" {
		t.Errorf("player voice channel should follow the bot, got %q", p.VoiceChannelID())
	}
}

func TestVoiceRelayLeaveRemovesPlayer(t *testing.T) {
	node := &fakeForwarder{}
	players := player.NewService()
	players.TrackStarted(testGuild, player.Track{Title: "Stream"})

	var ended []string
	players.OnTrackEnd(func(guildID string) { ended = append(ended, guildID) })

	NewVoiceRelay(node, players).BotVoiceState(testGuild, "", "")

	if players.Get(testGuild) != nil {
		t.Error("player should be removed after leaving voice")
	}
	if len(ended) != 1 {
		t.Errorf("expected one track end notification, got %v", ended)
	}
	if len(node.calls) != 1 || node.calls[0].a != "" {
		t.Errorf("expected a leave forwarded to the node, got %+v", node.calls)
	}
}
