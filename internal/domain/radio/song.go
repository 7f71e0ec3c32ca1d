package radio

import (
	"fmt"
	"time"
)

// PlaceholderTitle is shown for stations without a metadata feed.
const PlaceholderTitle = "Live Radio Stream"

// SongInfo describes the song a station is currently playing.
// Optional fields are empty when the feed does not provide them.
type SongInfo struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Album     string `json:"album,omitempty"`
	Artwork   string `json:"artwork,omitempty"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
	Station   string `json:"station"`
}

// Fingerprint identifies a song for change detection.
func (s SongInfo) Fingerprint() string {
	return s.Artist + "-" + s.Title
}

// DisplayAuthor is the author line shown on the player for a radio song.
func (s SongInfo) DisplayAuthor() string {
	return s.Artist + " • " + s.Station
}

// Duration returns the song length derived from its start and end times.
func (s SongInfo) Duration() (time.Duration, bool) {
	if s.StartTime == "" || s.EndTime == "" {
		return 0, false
	}
	start, err := parseTimestamp(s.StartTime)
	if err != nil {
		return 0, false
	}
	end, err := parseTimestamp(s.EndTime)
	if err != nil {
		return 0, false
	}
	d := end.Sub(start)
	if d <= 0 {
		return 0, false
	}
	return d, true
}

// FormatDuration renders a duration as m:ss.
func FormatDuration(d time.Duration) string {
	total := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(v string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func placeholderSong(st Station) SongInfo {
	return SongInfo{
		Title:   PlaceholderTitle,
		Artist:  st.Name,
		Station: st.Name,
	}
}
