package discordbot

import (
	"strings"
	"testing"

	"github.com/edumarques81/stellar-radiobot/internal/domain/radio"
)

func TestNowPlayingEmbed(t *testing.T) {
	song := radio.SongInfo{
		Title:     "Song A",
		Artist:    "Artist A",
		Station:   "Test-FM",
		Artwork:   "https://img/a.jpg",
		StartTime: "2024-05-01T12:00:00Z",
		EndTime:   "2024-05-01T12:03:25Z",
	}

	embed := NowPlayingEmbed(song, fixedNow)

	if embed.Author == nil || embed.Author.Name != "🎵 Now Playing on Test-FM" {
		t.Errorf("unexpected author %+v", embed.Author)
	}
	if embed.Color != ColorNowPlaying {
		t.Errorf("expected color %#x, got %#x", ColorNowPlaying, embed.Color)
	}
	if embed.Description != "**[Song A](https://img/a.jpg)**" {
		t.Errorf("unexpected description %q", embed.Description)
	}
	if embed.Thumbnail == nil || embed.Thumbnail.URL != song.Artwork {
		t.Errorf("expected artwork thumbnail, got %+v", embed.Thumbnail)
	}
	if embed.Timestamp == nil || !embed.Timestamp.Equal(fixedNow) {
		t.Errorf("expected timestamp %v, got %v", fixedNow, embed.Timestamp)
	}

	want := [][2]string{
		{"🎤 Artist", "Artist A"},
		{"📻 Station", "Test-FM"},
		{"⏱️ Duration", "3:25"},
	}
	if len(embed.Fields) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(embed.Fields))
	}
	for i, w := range want {
		f := embed.Fields[i]
		if f.Name != w[0] || f.Value != w[1] {
			t.Errorf("field %d: expected %s=%s, got %s=%s", i, w[0], w[1], f.Name, f.Value)
		}
		if f.Inline == nil || !*f.Inline {
			t.Errorf("field %d should be inline", i)
		}
	}
}

func TestNowPlayingEmbedMinimal(t *testing.T) {
	embed := NowPlayingEmbed(radio.SongInfo{Title: "Song B", Artist: "Artist B", Station: "Test-FM"}, fixedNow)

	if embed.Description != "**Song B**" {
		t.Errorf("unexpected description %q", embed.Description)
	}
	if embed.Thumbnail != nil {
		t.Error("no thumbnail expected without artwork")
	}
	if len(embed.Fields) != 2 {
		t.Errorf("expected no duration field, got %d fields", len(embed.Fields))
	}
}

func TestDebugStatusEmbed(t *testing.T) {
	info := radio.DebugInfo{
		Sessions: []radio.SessionInfo{
			{GuildID: "g1", StationID: "test-fm", LastFingerprint: "Artist A-Song A", Polling: true, PendingProbes: 2},
			{GuildID: "g2", StationID: "other-fm", Polling: true},
		},
		TimerCount: 5,
	}
	stations := []radio.Station{{ID: "test-fm", Name: "Test-FM"}}

	embed := DebugStatusEmbed(info, stations, fixedNow)

	for _, want := range []string{
		"Active Radio Sessions (2)",
		"Registered timers: 5",
		"**g1**: test-fm (Last: Artist A-Song A, probes: 2)",
		"**g2**: other-fm (Last: none, probes: 0)",
	} {
		if !strings.Contains(embed.Description, want) {
			t.Errorf("description missing %q:\n%s", want, embed.Description)
		}
	}
	if embed.Fields[0].Value != "• Test-FM (test-fm)\n" {
		t.Errorf("unexpected station field %q", embed.Fields[0].Value)
	}
}

func TestStationListEmbedEmpty(t *testing.T) {
	embed := StationListEmbed(nil, fixedNow)
	if embed.Fields[0].Value != "No stations available" {
		t.Errorf("unexpected list %q", embed.Fields[0].Value)
	}
}

func TestCountryFlag(t *testing.T) {
	tests := map[string]string{"CZ": "🇨🇿", "sk": "🇸🇰", "": "📻", "DE": "📻"}
	for country, want := range tests {
		if got := CountryFlag(country); got != want {
			t.Errorf("CountryFlag(%q) = %q, want %q", country, got, want)
		}
	}
}
