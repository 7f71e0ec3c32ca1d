// Package discordbot connects the radio engine to Discord: song
// announcements, slash commands and voice state forwarding.
package discordbot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-radiobot/internal/domain/radio"
)

// ErrNoChannel is returned when a guild has nowhere to announce songs.
var ErrNoChannel = errors.New("no announcement channel")

// MessageCreator posts messages to a channel. rest.Rest satisfies it.
type MessageCreator interface {
	CreateMessage(channelID snowflake.ID, messageCreate discord.MessageCreate, opts ...rest.RequestOpt) (*discord.Message, error)
}

// ChannelStore returns the configured announcement channel of a guild,
// or "" when none is set.
type ChannelStore interface {
	AnnounceChannel(ctx context.Context, guildID string) (string, error)
}

// Announcer posts now-playing embeds for radio song changes.
type Announcer struct {
	messages MessageCreator
	store    ChannelStore
	fallback func(guildID string) string
	now      func() time.Time
}

// NewAnnouncer creates an announcer. fallback returns the channel a guild's
// player was started from and is used when no channel is configured.
func NewAnnouncer(messages MessageCreator, store ChannelStore, fallback func(guildID string) string) *Announcer {
	return &Announcer{
		messages: messages,
		store:    store,
		fallback: fallback,
		now:      time.Now,
	}
}

// AnnounceSong implements radio.Announcer.
func (a *Announcer) AnnounceSong(ctx context.Context, guildID string, song radio.SongInfo) error {
	channel, err := a.channel(ctx, guildID)
	if err != nil {
		return err
	}

	channelID, err := snowflake.Parse(channel)
	if err != nil {
		return fmt.Errorf("parse channel %q: %w", channel, err)
	}

	msg := discord.MessageCreate{
		Embeds: []discord.Embed{NowPlayingEmbed(song, a.now())},
	}
	if _, err := a.messages.CreateMessage(channelID, msg, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("send announcement: %w", err)
	}

	log.Info().
		Str("guild", guildID).
		Str("channel", channel).
		Str("artist", song.Artist).
		Str("title", song.Title).
		Msg("Announced radio song")
	return nil
}

// channel prefers the configured setup channel over the player's channel.
func (a *Announcer) channel(ctx context.Context, guildID string) (string, error) {
	if a.store != nil {
		ch, err := a.store.AnnounceChannel(ctx, guildID)
		if err != nil {
			log.Warn().Err(err).Str("guild", guildID).Msg("Failed to read announcement channel")
		} else if ch != "" {
			return ch, nil
		}
	}
	if a.fallback != nil {
		if ch := a.fallback(guildID); ch != "" {
			return ch, nil
		}
	}
	return "", ErrNoChannel
}
