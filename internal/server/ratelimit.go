package server

import (
	"sync"
	"time"

	"github.com/lawnchairsociety/chaintiles/internal/config"
)

// ViolationLimiter counts protocol violations (malformed frames, flooding)
// per IP and refuses new connections from an IP that racks up too many.
// Each repeated lockout doubles, up to a cap.
type ViolationLimiter struct {
	mu              sync.Mutex
	offenders       map[string]*offender
	maxViolations   int
	lockout         time.Duration
	maxLockout      time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	now             func() time.Time
}

type offender struct {
	violations   int
	lockedUntil  time.Time
	lockoutCount int
}

// NewViolationLimiter creates a limiter from the rate limit config. A zero
// MaxViolations disables it.
func NewViolationLimiter(cfg config.RateLimitConfig) *ViolationLimiter {
	vl := &ViolationLimiter{
		offenders:       make(map[string]*offender),
		maxViolations:   cfg.MaxViolations,
		lockout:         time.Duration(cfg.LockoutSeconds) * time.Second,
		maxLockout:      time.Duration(cfg.MaxLockoutSeconds) * time.Second,
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
	}

	if vl.lockout == 0 {
		vl.lockout = 30 * time.Second
	}
	if vl.maxLockout < vl.lockout {
		vl.maxLockout = vl.lockout
	}

	go vl.cleanupLoop()
	return vl
}

// Stop stops the cleanup goroutine. Safe to call more than once.
func (vl *ViolationLimiter) Stop() {
	vl.stopOnce.Do(func() { close(vl.stopCleanup) })
}

// IsLocked reports whether ip is refused and for how much longer.
func (vl *ViolationLimiter) IsLocked(ip string) (bool, time.Duration) {
	vl.mu.Lock()
	defer vl.mu.Unlock()

	o, ok := vl.offenders[ip]
	if !ok {
		return false, 0
	}
	now := vl.now()
	if now.Before(o.lockedUntil) {
		return true, o.lockedUntil.Sub(now)
	}
	return false, 0
}

// Record counts one violation for ip. It returns true, with the lockout
// length, when this violation locks the IP out.
func (vl *ViolationLimiter) Record(ip string) (bool, time.Duration) {
	if vl.maxViolations <= 0 {
		return false, 0
	}

	vl.mu.Lock()
	defer vl.mu.Unlock()

	o, ok := vl.offenders[ip]
	if !ok {
		o = &offender{}
		vl.offenders[ip] = o
	}

	now := vl.now()
	if now.Before(o.lockedUntil) {
		return true, o.lockedUntil.Sub(now)
	}

	o.violations++
	if o.violations < vl.maxViolations {
		return false, 0
	}

	o.lockoutCount++
	d := vl.lockout
	for i := 1; i < o.lockoutCount; i++ {
		if d >= vl.maxLockout/2 {
			d = vl.maxLockout
			break
		}
		d *= 2
	}
	if d > vl.maxLockout {
		d = vl.maxLockout
	}
	o.lockedUntil = now.Add(d)
	o.violations = 0
	return true, d
}

// Violations returns the count toward the next lockout for ip.
func (vl *ViolationLimiter) Violations(ip string) int {
	vl.mu.Lock()
	defer vl.mu.Unlock()

	if o, ok := vl.offenders[ip]; ok {
		return o.violations
	}
	return 0
}

func (vl *ViolationLimiter) cleanupLoop() {
	ticker := time.NewTicker(vl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-vl.stopCleanup:
			return
		case <-ticker.C:
			vl.cleanup()
		}
	}
}

// cleanup forgets IPs that have been clean for a while.
func (vl *ViolationLimiter) cleanup() {
	vl.mu.Lock()
	defer vl.mu.Unlock()

	cutoff := vl.now().Add(-10 * time.Minute)
	for ip, o := range vl.offenders {
		if o.lockedUntil.Before(cutoff) && o.violations == 0 {
			delete(vl.offenders, ip)
		}
	}
}
