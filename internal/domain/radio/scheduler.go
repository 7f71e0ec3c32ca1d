package radio

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Timer is a cancellable scheduled callback.
type Timer interface {
	ID() string
	Stop()
}

// Scheduler runs callbacks later or repeatedly.
type Scheduler interface {
	// Every calls fn once per interval until the returned timer is stopped.
	Every(interval time.Duration, fn func()) Timer
	// After calls fn once after delay unless the returned timer is stopped first.
	After(delay time.Duration, fn func()) Timer
}

// NewScheduler returns a Scheduler backed by the runtime timers.
func NewScheduler() Scheduler {
	return realScheduler{}
}

type realScheduler struct{}

func (realScheduler) Every(interval time.Duration, fn func()) Timer {
	t := &tickerTimer{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.done:
				return
			case <-ticker.C:
				select {
				case <-t.done:
					return
				default:
				}
				fn()
			}
		}
	}()

	return t
}

func (realScheduler) After(delay time.Duration, fn func()) Timer {
	return &afterTimer{
		id:    uuid.NewString(),
		timer: time.AfterFunc(delay, fn),
	}
}

type tickerTimer struct {
	id   string
	done chan struct{}
	once sync.Once
}

func (t *tickerTimer) ID() string { return t.id }

func (t *tickerTimer) Stop() {
	t.once.Do(func() { close(t.done) })
}

type afterTimer struct {
	id    string
	timer *time.Timer
}

func (t *afterTimer) ID() string { return t.id }

func (t *afterTimer) Stop() {
	t.timer.Stop()
}

// TimerRegistry tracks every live timer so they can be cancelled in bulk,
// including timers that lost their owning session.
type TimerRegistry struct {
	mu     sync.Mutex
	timers map[string]Timer
}

// NewTimerRegistry creates an empty registry.
func NewTimerRegistry() *TimerRegistry {
	return &TimerRegistry{timers: make(map[string]Timer)}
}

// Add registers a timer.
func (r *TimerRegistry) Add(t Timer) {
	if t == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timers[t.ID()] = t
}

// Remove unregisters a timer without stopping it.
func (r *TimerRegistry) Remove(t Timer) bool {
	if t == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.timers[t.ID()]; !ok {
		return false
	}
	delete(r.timers, t.ID())
	return true
}

// Contains reports whether the timer is registered.
func (r *TimerRegistry) Contains(t Timer) bool {
	if t == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[t.ID()]
	return ok
}

// Len returns the number of registered timers.
func (r *TimerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// StopAll stops and unregisters every timer, returning how many there were.
func (r *TimerRegistry) StopAll() int {
	r.mu.Lock()
	timers := r.timers
	r.timers = make(map[string]Timer)
	r.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
	return len(timers)
}
