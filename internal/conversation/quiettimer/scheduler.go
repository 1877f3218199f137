// Package quiettimer owns one cancellable delayed callback per key.
package quiettimer

import (
	"sync"
	"time"
)

type entry struct {
	timer *time.Timer
	gen   uint64
}

// Scheduler keeps at most one live timer per key. Re-arming a key stops the
// previous timer and invalidates its generation, so a timer that already
// started firing when it was replaced becomes a no-op.
//
// The mutex only guards the map; callbacks always run outside it.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]*entry
	gen     uint64
	stopped bool
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{timers: make(map[string]*entry)}
}

// Arm cancels any timer for key and schedules callback after delay.
// Arming a stopped scheduler does nothing.
func (s *Scheduler) Arm(key string, delay time.Duration, callback func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if current, ok := s.timers[key]; ok {
		current.timer.Stop()
	}

	s.gen++
	gen := s.gen
	e := &entry{gen: gen}
	e.timer = time.AfterFunc(delay, func() {
		s.fire(key, gen, callback)
	})
	s.timers[key] = e
}

// Cancel stops the timer for key without scheduling a new one.
// It reports whether a live timer was removed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.timers[key]
	if !ok {
		return false
	}
	current.timer.Stop()
	delete(s.timers, key)
	return true
}

// Armed reports whether key currently has a live timer.
func (s *Scheduler) Armed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

// Len returns the number of live timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every timer and rejects further Arm calls.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for key, current := range s.timers {
		current.timer.Stop()
		delete(s.timers, key)
	}
}

func (s *Scheduler) fire(key string, gen uint64, callback func()) {
	s.mu.Lock()
	current, ok := s.timers[key]
	if !ok || current.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.timers, key)
	s.mu.Unlock()

	callback()
}
