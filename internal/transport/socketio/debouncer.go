package socketio

import (
	"sort"
	"sync"
	"time"
)

// StateDebouncer collapses bursts of per-guild player changes into one
// broadcast per guild. Changes within the window extend it.
type StateDebouncer struct {
	window   time.Duration
	callback func(guildID string)

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	stopped bool
}

// NewStateDebouncer creates a debouncer that calls callback once for each
// guild that changed during the window.
func NewStateDebouncer(window time.Duration, callback func(guildID string)) *StateDebouncer {
	return &StateDebouncer{
		window:   window,
		callback: callback,
		pending:  make(map[string]struct{}),
	}
}

// Trigger records that a guild's player changed.
func (d *StateDebouncer) Trigger(guildID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.pending[guildID] = struct{}{}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush fires the callback for every pending guild and resets the set.
func (d *StateDebouncer) flush() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	guilds := make([]string, 0, len(d.pending))
	for id := range d.pending {
		guilds = append(guilds, id)
	}
	d.pending = make(map[string]struct{})
	d.mu.Unlock()

	sort.Strings(guilds)
	for _, id := range guilds {
		d.callback(id)
	}
}

// Stop prevents any further callbacks from firing.
func (d *StateDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = make(map[string]struct{})
}
