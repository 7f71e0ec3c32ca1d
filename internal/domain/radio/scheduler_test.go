package radio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// manualScheduler records scheduled callbacks and fires them on demand.
type manualScheduler struct {
	mu     sync.Mutex
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	id       string
	interval time.Duration
	delay    time.Duration
	repeat   bool
	fn       func()

	mu      sync.Mutex
	stopped bool
	fired   bool
}

func (t *manualTimer) ID() string { return t.id }

func (t *manualTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *manualTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// fire runs the callback unless the timer was stopped or, for one-shot
// timers, already fired.
func (t *manualTimer) fire() bool {
	t.mu.Lock()
	if t.stopped || (!t.repeat && t.fired) {
		t.mu.Unlock()
		return false
	}
	t.fired = true
	t.mu.Unlock()
	t.fn()
	return true
}

func (s *manualScheduler) add(t *manualTimer) *manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t.id = fmt.Sprintf("timer-%d", s.seq)
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) Every(interval time.Duration, fn func()) Timer {
	return s.add(&manualTimer{interval: interval, repeat: true, fn: fn})
}

func (s *manualScheduler) After(delay time.Duration, fn func()) Timer {
	return s.add(&manualTimer{delay: delay, fn: fn})
}

func (s *manualScheduler) snapshot() []*manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*manualTimer(nil), s.timers...)
}

// tick fires every live repeating timer once.
func (s *manualScheduler) tick() int {
	n := 0
	for _, t := range s.snapshot() {
		if t.repeat && t.fire() {
			n++
		}
	}
	return n
}

// probes fires every pending one-shot timer in scheduling order.
func (s *manualScheduler) probes() int {
	n := 0
	for _, t := range s.snapshot() {
		if !t.repeat && t.fire() {
			n++
		}
	}
	return n
}

func (s *manualScheduler) repeating() []*manualTimer {
	var out []*manualTimer
	for _, t := range s.snapshot() {
		if t.repeat {
			out = append(out, t)
		}
	}
	return out
}

func TestRealSchedulerEvery(t *testing.T) {
	var calls atomic.Int32
	timer := NewScheduler().Every(10*time.Millisecond, func() { calls.Add(1) })

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	timer.Stop()
	timer.Stop()

	if calls.Load() < 2 {
		t.Fatalf("expected at least 2 calls, got %d", calls.Load())
	}

	time.Sleep(30 * time.Millisecond)
	after := calls.Load()
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != after {
		t.Error("ticker kept firing after Stop")
	}
}

func TestRealSchedulerAfterStop(t *testing.T) {
	var calls atomic.Int32
	timer := NewScheduler().After(20*time.Millisecond, func() { calls.Add(1) })
	timer.Stop()

	time.Sleep(60 * time.Millisecond)
	if calls.Load() != 0 {
		t.Error("stopped timer fired")
	}
}

func TestRealSchedulerUniqueIDs(t *testing.T) {
	s := NewScheduler()
	a := s.After(time.Hour, func() {})
	b := s.After(time.Hour, func() {})
	defer a.Stop()
	defer b.Stop()

	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("expected distinct non-empty ids, got %q and %q", a.ID(), b.ID())
	}
}

func TestTimerRegistry(t *testing.T) {
	s := &manualScheduler{}
	r := NewTimerRegistry()

	a := s.Every(time.Second, func() {})
	b := s.After(time.Second, func() {})
	r.Add(a)
	r.Add(b)
	r.Add(a)

	if r.Len() != 2 {
		t.Fatalf("expected 2 timers, got %d", r.Len())
	}
	if !r.Contains(a) {
		t.Error("expected registry to contain a")
	}

	if !r.Remove(a) {
		t.Error("expected first remove to succeed")
	}
	if r.Remove(a) {
		t.Error("expected second remove to report false")
	}
	if a.(*manualTimer).isStopped() {
		t.Error("Remove must not stop the timer")
	}

	if n := r.StopAll(); n != 1 {
		t.Errorf("expected StopAll to report 1, got %d", n)
	}
	if !b.(*manualTimer).isStopped() {
		t.Error("StopAll should stop remaining timers")
	}
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d", r.Len())
	}
	if n := r.StopAll(); n != 0 {
		t.Errorf("expected StopAll on empty registry to report 0, got %d", n)
	}
}
