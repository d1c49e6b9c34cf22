package server

import (
	"net/http"
	"sync"
	"testing"

	"github.com/lawnchairsociety/chaintiles/internal/config"
)

func TestConnLimiter_PerIPLimit(t *testing.T) {
	limiter := NewConnLimiter(config.ConnectionsConfig{MaxPerIP: 2, MaxTotal: 100})

	if !limiter.TryAcquire("192.168.1.1") || !limiter.TryAcquire("192.168.1.1") {
		t.Fatal("first two connections should be allowed")
	}
	if limiter.TryAcquire("192.168.1.1") {
		t.Error("third connection from same IP should be rejected")
	}
	if !limiter.TryAcquire("192.168.1.2") {
		t.Error("connection from different IP should be allowed")
	}

	limiter.Release("192.168.1.1")
	if !limiter.TryAcquire("192.168.1.1") {
		t.Error("connection should be allowed after release")
	}
}

func TestConnLimiter_TotalLimit(t *testing.T) {
	limiter := NewConnLimiter(config.ConnectionsConfig{MaxPerIP: 10, MaxTotal: 3})

	for _, ip := range []string{"192.168.1.1", "192.168.1.2", "192.168.1.3"} {
		if !limiter.TryAcquire(ip) {
			t.Errorf("connection from %s should be allowed", ip)
		}
	}
	if limiter.TryAcquire("192.168.1.4") {
		t.Error("fourth connection should be rejected due to total limit")
	}

	limiter.Release("192.168.1.1")
	if !limiter.TryAcquire("192.168.1.4") {
		t.Error("connection should be allowed after release")
	}
}

func TestConnLimiter_Unlimited(t *testing.T) {
	limiter := NewConnLimiter(config.ConnectionsConfig{})

	for i := 0; i < 100; i++ {
		if !limiter.TryAcquire("192.168.1.1") {
			t.Fatalf("connection %d should be allowed when unlimited", i)
		}
	}
}

func TestConnLimiter_ReleaseUnknownIP(t *testing.T) {
	limiter := NewConnLimiter(config.ConnectionsConfig{MaxPerIP: 1, MaxTotal: 1})

	limiter.Release("10.0.0.1")
	if total, ips := limiter.Stats(); total != 0 || ips != 0 {
		t.Errorf("Stats() = %d, %d after stray release, want 0, 0", total, ips)
	}
	if !limiter.TryAcquire("10.0.0.2") {
		t.Error("stray release must not block later acquires")
	}
}

func TestConnLimiter_Stats(t *testing.T) {
	limiter := NewConnLimiter(config.ConnectionsConfig{MaxPerIP: 10, MaxTotal: 100})

	limiter.TryAcquire("192.168.1.1")
	limiter.TryAcquire("192.168.1.1")
	limiter.TryAcquire("192.168.1.2")

	if total, ips := limiter.Stats(); total != 3 || ips != 2 {
		t.Errorf("Stats() = %d, %d; want 3, 2", total, ips)
	}
	if n := limiter.IPCount("192.168.1.1"); n != 2 {
		t.Errorf("IPCount = %d, want 2", n)
	}
	if n := limiter.IPCount("192.168.1.3"); n != 0 {
		t.Errorf("IPCount for unknown IP = %d, want 0", n)
	}
}

func TestConnLimiter_Concurrent(t *testing.T) {
	limiter := NewConnLimiter(config.ConnectionsConfig{MaxPerIP: 0, MaxTotal: 50})

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.TryAcquire("10.0.0.1") {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if acquired != 50 {
		t.Errorf("acquired %d slots, want 50", acquired)
	}
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"192.168.1.1:12345", "192.168.1.1"},
		{"[::1]:12345", "::1"},
		{"localhost:4000", "localhost"},
		{"192.168.1.1", "192.168.1.1"},
	}

	for _, tt := range tests {
		if result := extractIP(tt.input); result != tt.expected {
			t.Errorf("extractIP(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestGetRealIP(t *testing.T) {
	tests := []struct {
		name       string
		trust      bool
		xff        string
		xri        string
		remoteAddr string
		expected   string
	}{
		{"X-Forwarded-For single IP", true, "203.0.113.50", "", "10.0.0.1:12345", "203.0.113.50"},
		{"X-Forwarded-For multiple IPs", true, "203.0.113.50, 70.41.3.18", "", "10.0.0.1:12345", "203.0.113.50"},
		{"X-Real-IP", true, "", "203.0.113.50", "10.0.0.1:12345", "203.0.113.50"},
		{"X-Forwarded-For wins", true, "203.0.113.50", "198.51.100.25", "10.0.0.1:12345", "203.0.113.50"},
		{"no headers", true, "", "", "192.168.1.100:54321", "192.168.1.100"},
		{"headers ignored without trust", false, "203.0.113.50", "198.51.100.25", "10.0.0.1:12345", "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &http.Request{RemoteAddr: tt.remoteAddr, Header: make(http.Header)}
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}

			if result := getRealIP(req, tt.trust); result != tt.expected {
				t.Errorf("getRealIP() = %q, want %q", result, tt.expected)
			}
		})
	}
}
