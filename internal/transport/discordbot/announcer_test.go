package discordbot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"

	"github.com/edumarques81/stellar-radiobot/internal/domain/radio"
)

type sentMessage struct {
	channel snowflake.ID
	msg     discord.MessageCreate
}

type fakeMessages struct {
	sent []sentMessage
	err  error
}

func (f *fakeMessages) CreateMessage(channelID snowflake.ID, messageCreate discord.MessageCreate, opts ...rest.RequestOpt) (*discord.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, sentMessage{channel: channelID, msg: messageCreate})
	return &discord.Message{ChannelID: channelID}, nil
}

var testSong = radio.SongInfo{
	Title:   "Song A",
	Artist:  "Artist A",
	Station: "Test-FM",
	Artwork: "https://img/a.jpg",
}

func newTestAnnouncer(msgs *fakeMessages, store ChannelStore, fallback func(string) string) *Announcer {
	a := NewAnnouncer(msgs, store, fallback)
	a.now = func() time.Time { return fixedNow }
	return a
}

func TestAnnouncerPrefersConfiguredChannel(t *testing.T) {
	msgs := &fakeMessages{}
	store := &fakeStore{channels: map[string]string{testGuild: testText}}
	a := newTestAnnouncer(msgs, store, func(string) string { return testVoice })

	if err := a.AnnounceSong(context.Background(), testGuild, testSong); err != nil {
		t.Fatalf("AnnounceSong failed: %v", err)
	}
	if len(msgs.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs.sent))
	}
	if got := msgs.sent[0].channel.String(); got != testText {
		t.Errorf("expected configured channel %s, got %s", testText, got)
	}

	embeds := msgs.sent[0].msg.Embeds
	if len(embeds) != 1 || embeds[0].Author.Name != "🎵 Now Playing on Test-FM" {
		t.Errorf("unexpected embeds %+v", embeds)
	}
}

func TestAnnouncerFallsBackToPlayerChannel(t *testing.T) {
	msgs := &fakeMessages{}
	store := &fakeStore{channels: map[string]string{}}
	a := newTestAnnouncer(msgs, store, func(string) string { return testVoice })

	if err := a.AnnounceSong(context.Background(), testGuild, testSong); err != nil {
		t.Fatalf("AnnounceSong failed: %v", err)
	}
	if got := msgs.sent[0].channel.String(); got != testVoice {
		t.Errorf("expected fallback channel %s, got %s", testVoice, got)
	}
}

func TestAnnouncerStoreErrorFallsBack(t *testing.T) {
	msgs := &fakeMessages{}
	store := &fakeStore{err: errors.New("db locked")}
	a := newTestAnnouncer(msgs, store, func(string) string { return testVoice })

	if err := a.AnnounceSong(context.Background(), testGuild, testSong); err != nil {
		t.Fatalf("AnnounceSong failed: %v", err)
	}
	if len(msgs.sent) != 1 {
		t.Errorf("expected announcement through fallback, got %d", len(msgs.sent))
	}
}

func TestAnnouncerErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("no channel", func(t *testing.T) {
		a := newTestAnnouncer(&fakeMessages{}, nil, func(string) string { return "" })
		if err := a.AnnounceSong(ctx, testGuild, testSong); !errors.Is(err, ErrNoChannel) {
			t.Errorf("expected ErrNoChannel, got %v", err)
		}
	})

	t.Run("invalid channel id", func(t *testing.T) {
		a := newTestAnnouncer(&fakeMessages{}, nil, func(string) string { return "general" })
		if err := a.AnnounceSong(ctx, testGuild, testSong); err == nil {
			t.Error("expected a parse error")
		}
	})

	t.Run("send failure", func(t *testing.T) {
		sendErr := errors.New("missing access")
		a := newTestAnnouncer(&fakeMessages{err: sendErr}, nil, func(string) string { return testText })
		if err := a.AnnounceSong(ctx, testGuild, testSong); !errors.Is(err, sendErr) {
			t.Errorf("expected wrapped send error, got %v", err)
		}
	})
}
