// Package antispam throttles how fast a single connection may send messages.
package antispam

import (
	"sync"
	"time"
)

// Config holds anti-spam configuration
type Config struct {
	Enabled     bool          // Whether limiting is enabled
	MaxMessages int           // Max messages allowed in the time window
	TimeWindow  time.Duration // Sliding window length
}

// DefaultConfig allows bursts of pointer moves while stopping floods
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		MaxMessages: 120,
		TimeWindow:  time.Second,
	}
}

// ConfigFromYAML creates a Config from YAML-loaded values. A zero
// maxMessages disables limiting.
func ConfigFromYAML(maxMessages, timeWindowSeconds int) Config {
	cfg := DefaultConfig()
	cfg.Enabled = maxMessages > 0
	if maxMessages > 0 {
		cfg.MaxMessages = maxMessages
	}
	if timeWindowSeconds > 0 {
		cfg.TimeWindow = time.Duration(timeWindowSeconds) * time.Second
	}
	return cfg
}

// Tracker tracks inbound message times for one connection
type Tracker struct {
	mu           sync.Mutex
	config       Config
	messageTimes []time.Time
	dropped      int
	now          func() time.Time
}

// NewTracker creates a new tracker with the given config
func NewTracker(config Config) *Tracker {
	return &Tracker{
		config:       config,
		messageTimes: make([]time.Time, 0, config.MaxMessages),
		now:          time.Now,
	}
}

// CheckResult contains the result of a rate check
type CheckResult struct {
	Allowed bool
	Reason  string
	RetryIn time.Duration // how long until the oldest message leaves the window
}

// Check records a message and reports whether it may be processed
func (t *Tracker) Check() CheckResult {
	if !t.config.Enabled {
		return CheckResult{Allowed: true}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.cleanup(now)

	if len(t.messageTimes) >= t.config.MaxMessages {
		t.dropped++
		return CheckResult{
			Allowed: false,
			Reason:  "sending too fast",
			RetryIn: t.messageTimes[0].Add(t.config.TimeWindow).Sub(now),
		}
	}

	t.messageTimes = append(t.messageTimes, now)
	return CheckResult{Allowed: true}
}

// Dropped returns how many messages have been refused so far
func (t *Tracker) Dropped() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// cleanup removes timestamps that fell out of the window
func (t *Tracker) cleanup(now time.Time) {
	cutoff := now.Add(-t.config.TimeWindow)
	kept := t.messageTimes[:0]
	for _, ts := range t.messageTimes {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	t.messageTimes = kept
}

// Reset clears all tracking data
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageTimes = t.messageTimes[:0]
	t.dropped = 0
}
