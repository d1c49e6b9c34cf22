package gametime

import (
	"sort"
	"sync"
	"time"
)

// ManualScheduler is a Scheduler on a virtual clock. Nothing runs until the
// clock is advanced, which makes staged cascades testable without sleeping.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Duration
	seq     uint64
	entries []manualEntry
}

type manualEntry struct {
	due time.Duration
	seq uint64
	fn  func()
}

// NewManualScheduler creates a scheduler whose clock starts at zero
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// After queues fn to run once the virtual clock reaches now+d
func (m *ManualScheduler) After(d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d < 0 {
		d = 0
	}
	m.seq++
	m.entries = append(m.entries, manualEntry{due: m.now + d, seq: m.seq, fn: fn})
	sort.Slice(m.entries, func(i, j int) bool {
		if m.entries[i].due != m.entries[j].due {
			return m.entries[i].due < m.entries[j].due
		}
		return m.entries[i].seq < m.entries[j].seq
	})
}

// Now returns the virtual time elapsed since creation
func (m *ManualScheduler) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of queued callbacks
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Advance moves the clock forward by d, running every callback that falls
// due on the way, including ones queued by callbacks. Returns how many ran.
func (m *ManualScheduler) Advance(d time.Duration) int {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	ran := 0
	for {
		fn, ok := m.popDue(target)
		if !ok {
			break
		}
		fn()
		ran++
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
	return ran
}

// RunNext jumps the clock to the earliest queued callback and runs it.
// Returns false when nothing is queued.
func (m *ManualScheduler) RunNext() bool {
	m.mu.Lock()
	if len(m.entries) == 0 {
		m.mu.Unlock()
		return false
	}
	e := m.entries[0]
	m.entries = m.entries[1:]
	if e.due > m.now {
		m.now = e.due
	}
	m.mu.Unlock()

	e.fn()
	return true
}

// RunAll runs queued callbacks in due order until none remain and returns
// how many ran.
func (m *ManualScheduler) RunAll() int {
	ran := 0
	for m.RunNext() {
		ran++
	}
	return ran
}

func (m *ManualScheduler) popDue(target time.Duration) (func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) == 0 || m.entries[0].due > target {
		return nil, false
	}
	e := m.entries[0]
	m.entries = m.entries[1:]
	if e.due > m.now {
		m.now = e.due
	}
	return e.fn, true
}
