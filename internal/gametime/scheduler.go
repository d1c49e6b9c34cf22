package gametime

import (
	"sync"
	"time"
)

// DefaultStepDelay is the pause between resolution steps.
const DefaultStepDelay = 300 * time.Millisecond

// Scheduler runs a callback once after a delay.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// TimerScheduler schedules callbacks on real time using time.AfterFunc.
// Callbacks run on their own goroutines; callers serialise state themselves.
type TimerScheduler struct {
	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	stopped bool
}

// NewTimerScheduler creates a scheduler backed by the wall clock
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{
		timers: make(map[*time.Timer]struct{}),
	}
}

// After runs fn once, d from now. After Stop it does nothing.
func (s *TimerScheduler) After(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, live := s.timers[t]
		delete(s.timers, t)
		s.mu.Unlock()

		if live {
			fn()
		}
	})
	s.timers[t] = struct{}{}
}

// Pending returns the number of callbacks that have not fired yet
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every outstanding callback and refuses new ones.
// Used when the owner of the scheduler goes away.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for t := range s.timers {
		t.Stop()
		delete(s.timers, t)
	}
}
