// Package radio detects which internet radio station a guild is playing
// and keeps the displayed song in sync with the station's metadata feed.
package radio

import (
	"strconv"
	"strings"
)

// Format names the response shape of a station's metadata endpoint.
type Format string

// Supported metadata formats.
const (
	FormatNone     Format = "none"
	FormatRadiaCZ  Format = "radia_cz"
	FormatActveNet Format = "actve_net"
)

// Station is a known radio station.
type Station struct {
	ID           string   `yaml:"id" json:"id"`
	Name         string   `yaml:"name" json:"name"`
	StreamTokens []string `yaml:"streams" json:"streamTokens"`
	MetadataURL  string   `yaml:"metadata_url" json:"metadataUrl,omitempty"`
	Format       Format   `yaml:"format" json:"format"`
	Country      string   `yaml:"country" json:"country,omitempty"`
	Color        string   `yaml:"color" json:"color,omitempty"`
}

// HasMetadata reports whether the station publishes a now-playing feed.
func (s Station) HasMetadata() bool {
	return strings.TrimSpace(s.MetadataURL) != ""
}

// StreamURL returns the playable stream address, which is the first
// token that looks like a URL.
func (s Station) StreamURL() string {
	for _, tok := range s.StreamTokens {
		if strings.HasPrefix(tok, "http://") || strings.HasPrefix(tok, "https://") {
			return tok
		}
	}
	return ""
}

// ColorValue returns the station color as an RGB integer, or 0 if unset.
func (s Station) ColorValue() int {
	hex := strings.TrimPrefix(s.Color, "#")
	if hex == "" {
		return 0
	}
	v, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}

func (s Station) clone() Station {
	s.StreamTokens = append([]string(nil), s.StreamTokens...)
	return s
}
