package socketio

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerRapidEventsCollapseToOne(t *testing.T) {
	var calls int32

	d := NewStateDebouncer(50*time.Millisecond, func(string) { atomic.AddInt32(&calls, 1) })
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Trigger("g1")
	}

	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 callback, got %d", got)
	}
}

func TestDebouncerOneCallbackPerGuild(t *testing.T) {
	var mu sync.Mutex
	var guilds []string

	d := NewStateDebouncer(50*time.Millisecond, func(id string) {
		mu.Lock()
		guilds = append(guilds, id)
		mu.Unlock()
	})
	defer d.Stop()

	d.Trigger("g2")
	d.Trigger("g1")
	d.Trigger("g2")

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(guilds) != 2 || guilds[0] != "g1" || guilds[1] != "g2" {
		t.Errorf("expected callbacks for g1 and g2, got %v", guilds)
	}
}

func TestDebouncerWindowExtends(t *testing.T) {
	var calls int32

	d := NewStateDebouncer(50*time.Millisecond, func(string) { atomic.AddInt32(&calls, 1) })
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Trigger("g1")
		time.Sleep(20 * time.Millisecond)
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("expected no callback while triggers keep coming, got %d", got)
	}

	time.Sleep(100 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 callback after quiet period, got %d", got)
	}
}

func TestDebouncerStopPreventsCallbacks(t *testing.T) {
	var calls int32

	d := NewStateDebouncer(50*time.Millisecond, func(string) { atomic.AddInt32(&calls, 1) })

	d.Trigger("g1")
	d.Stop()
	d.Trigger("g1")

	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("expected 0 callbacks after Stop, got %d", got)
	}
}
