package radio

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// parseFunc extracts the current song from a metadata response body.
// It returns false when the body is well formed but carries no usable song.
type parseFunc func(doc map[string]any) (SongInfo, bool)

var parsers = map[Format]parseFunc{
	FormatRadiaCZ:  parseRadiaCZ,
	FormatActveNet: parseActveNet,
}

// ParseSong decodes a metadata response for the station.
// Malformed JSON is an error; any other unusable body yields false.
func ParseSong(st Station, body []byte) (SongInfo, bool, error) {
	parse, ok := parsers[st.Format]
	if !ok {
		return SongInfo{}, false, fmt.Errorf("%w: %q", ErrUnknownFormat, st.Format)
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return SongInfo{}, false, fmt.Errorf("failed to decode metadata: %w", err)
	}
	doc, ok := raw.(map[string]any)
	if !ok {
		return SongInfo{}, false, nil
	}

	song, ok := parse(doc)
	if !ok {
		return SongInfo{}, false, nil
	}
	song.Station = st.Name
	return song, true, nil
}

// parseRadiaCZ reads {song, interpret, image, beginAt, endAt, active}.
func parseRadiaCZ(doc map[string]any) (SongInfo, bool) {
	if !truthy(doc["song"]) || !truthy(doc["interpret"]) || !truthy(doc["active"]) {
		return SongInfo{}, false
	}
	return SongInfo{
		Title:     text(doc["song"]),
		Artist:    text(doc["interpret"]),
		Artwork:   text(doc["image"]),
		StartTime: text(doc["beginAt"]),
		EndTime:   text(doc["endAt"]),
	}, true
}

// parseActveNet reads {status, title, artist, album, cover, songStart}.
func parseActveNet(doc map[string]any) (SongInfo, bool) {
	if status, _ := doc["status"].(string); status != "ok" {
		return SongInfo{}, false
	}
	if !truthy(doc["title"]) || !truthy(doc["artist"]) {
		return SongInfo{}, false
	}
	return SongInfo{
		Title:     text(doc["title"]),
		Artist:    text(doc["artist"]),
		Album:     text(doc["album"]),
		Artwork:   text(doc["cover"]),
		StartTime: text(doc["songStart"]),
	}, true
}

// truthy follows loose JSON truthiness: null, false, 0 and "" are false.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}

func text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}
