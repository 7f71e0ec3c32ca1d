package discordbot

import (
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"

	"github.com/edumarques81/stellar-radiobot/internal/domain/radio"
)

// Embed colours.
const (
	ColorNowPlaying = 0xff6b6b
	ColorMain       = 0x5865f2
	ColorGreen      = 0x57f287
	ColorYellow     = 0xfee75c
	ColorRed        = 0xed4245
	ColorBlue       = 0x3498db
)

// NowPlayingEmbed builds the announcement posted when a station changes song.
func NowPlayingEmbed(song radio.SongInfo, now time.Time) discord.Embed {
	description := "**" + song.Title + "**"
	if song.Artwork != "" {
		description = fmt.Sprintf("**[%s](%s)**", song.Title, song.Artwork)
	}

	embed := discord.Embed{
		Author:      &discord.EmbedAuthor{Name: "🎵 Now Playing on " + song.Station},
		Color:       ColorNowPlaying,
		Description: description,
		Fields: []discord.EmbedField{
			inlineField("🎤 Artist", song.Artist),
			inlineField("📻 Station", song.Station),
		},
		Timestamp: &now,
	}

	if song.Artwork != "" {
		embed.Thumbnail = &discord.EmbedResource{URL: song.Artwork}
	}
	if d, ok := song.Duration(); ok {
		embed.Fields = append(embed.Fields, inlineField("⏱️ Duration", radio.FormatDuration(d)))
	}
	return embed
}

// StationListEmbed lists the stations a guild can tune into.
func StationListEmbed(stations []radio.Station, now time.Time) discord.Embed {
	var b strings.Builder
	for _, st := range stations {
		fmt.Fprintf(&b, "%s **%s** `%s`\n", CountryFlag(st.Country), st.Name, st.ID)
	}
	list := b.String()
	if list == "" {
		list = "No stations available"
	}

	return discord.Embed{
		Author:      &discord.EmbedAuthor{Name: "📻 Radio Stations"},
		Color:       ColorMain,
		Description: "Live song detection is available for every station below.",
		Fields: []discord.EmbedField{
			{Name: fmt.Sprintf("Stations available (%d)", len(stations)), Value: list},
			{Name: "How to use", Value: "`/radio play station:<id>` while in a voice channel."},
		},
		Timestamp: &now,
	}
}

// DebugStatusEmbed summarises the engine's sessions and timers.
func DebugStatusEmbed(info radio.DebugInfo, stations []radio.Station, now time.Time) discord.Embed {
	var description string
	if len(info.Sessions) == 0 {
		description = fmt.Sprintf("🟢 No active radio detection sessions\n🔍 Registered timers: %d", info.TimerCount)
	} else {
		lines := make([]string, 0, len(info.Sessions))
		for _, s := range info.Sessions {
			last := s.LastFingerprint
			if last == "" {
				last = "none"
			}
			lines = append(lines, fmt.Sprintf("**%s**: %s (Last: %s, probes: %d)", s.GuildID, s.StationID, last, s.PendingProbes))
		}
		description = fmt.Sprintf("🔍 **Active Radio Sessions (%d)**\n🔍 **Registered timers: %d**\n\n%s",
			len(info.Sessions), info.TimerCount, strings.Join(lines, "\n"))
	}

	var list strings.Builder
	for _, st := range stations {
		fmt.Fprintf(&list, "• %s (%s)\n", st.Name, st.ID)
	}
	value := list.String()
	if value == "" {
		value = "None"
	}

	return discord.Embed{
		Author:      &discord.EmbedAuthor{Name: "Radio Detection Debug Status"},
		Color:       ColorMain,
		Description: description,
		Fields:      []discord.EmbedField{{Name: "📻 Available Stations", Value: value}},
		Timestamp:   &now,
	}
}

// NoticeEmbed builds a single-line status embed.
func NoticeEmbed(title, description string, color int, now time.Time) discord.Embed {
	return discord.Embed{
		Author:      &discord.EmbedAuthor{Name: title},
		Color:       color,
		Description: description,
		Timestamp:   &now,
	}
}

// CountryFlag maps a station country code to a flag emoji.
func CountryFlag(country string) string {
	switch strings.ToUpper(country) {
	case "CZ":
		return "🇨🇿"
	case "SK":
		return "🇸🇰"
	default:
		return "📻"
	}
}

func inlineField(name, value string) discord.EmbedField {
	inline := true
	return discord.EmbedField{Name: name, Value: value, Inline: &inline}
}
