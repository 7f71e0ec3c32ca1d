package radio

import (
	"strings"

	"github.com/edumarques81/stellar-radiobot/internal/domain/player"
)

// Classifier maps a playing track to a catalog station.
type Classifier struct {
	entries []classifierEntry
}

type classifierEntry struct {
	id     string
	name   string
	tokens []string
}

// NewClassifier prepares lower-cased match tables for every station in
// catalog order.
func NewClassifier(catalog *Catalog) *Classifier {
	c := &Classifier{}
	for _, st := range catalog.All() {
		e := classifierEntry{
			id:   st.ID,
			name: strings.ToLower(strings.TrimSpace(st.Name)),
		}
		for _, tok := range st.StreamTokens {
			tok = strings.ToLower(strings.TrimSpace(tok))
			if tok != "" {
				e.tokens = append(e.tokens, tok)
			}
		}
		c.entries = append(c.entries, e)
	}
	return c
}

// Classify returns the id of the first station whose stream tokens occur in
// the track URI. If no URI matches, the first station whose name occurs in
// the track title wins.
func (c *Classifier) Classify(track player.Track) (string, bool) {
	uri := strings.ToLower(track.URI)
	title := strings.ToLower(track.Title)

	if uri != "" {
		for _, e := range c.entries {
			for _, tok := range e.tokens {
				if strings.Contains(uri, tok) {
					return e.id, true
				}
			}
		}
	}

	if title != "" {
		for _, e := range c.entries {
			if e.name != "" && strings.Contains(title, e.name) {
				return e.id, true
			}
		}
	}

	return "", false
}
