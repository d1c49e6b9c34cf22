package gametime

import (
	"sync"
	"testing"
	"time"
)

func TestManualSchedulerAdvance(t *testing.T) {
	m := NewManualScheduler()
	var order []string

	m.After(300*time.Millisecond, func() { order = append(order, "b") })
	m.After(100*time.Millisecond, func() { order = append(order, "a") })
	m.After(time.Second, func() { order = append(order, "c") })

	if ran := m.Advance(299 * time.Millisecond); ran != 1 {
		t.Errorf("Advance(299ms) ran %d callbacks, want 1", ran)
	}
	if ran := m.Advance(time.Millisecond); ran != 1 {
		t.Errorf("Advance(1ms) ran %d callbacks, want 1", ran)
	}
	if m.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", m.Pending())
	}
	if m.Now() != 300*time.Millisecond {
		t.Errorf("Now() = %v, want 300ms", m.Now())
	}

	m.Advance(time.Hour)
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("callback order = %v, want [a b c]", order)
	}
}

func TestManualSchedulerSameDueKeepsInsertionOrder(t *testing.T) {
	m := NewManualScheduler()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		m.After(10*time.Millisecond, func() { order = append(order, i) })
	}
	m.Advance(10 * time.Millisecond)

	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want ascending", order)
		}
	}
}

func TestManualSchedulerChainedCallbacks(t *testing.T) {
	m := NewManualScheduler()
	steps := 0

	var step func()
	step = func() {
		steps++
		if steps < 4 {
			m.After(100*time.Millisecond, step)
		}
	}
	m.After(100*time.Millisecond, step)

	// Callbacks queued by callbacks run when they fall inside the window.
	if ran := m.Advance(250 * time.Millisecond); ran != 2 {
		t.Errorf("Advance(250ms) ran %d, want 2", ran)
	}

	if ran := m.RunAll(); ran != 2 {
		t.Errorf("RunAll() ran %d, want 2", ran)
	}
	if steps != 4 {
		t.Errorf("steps = %d, want 4", steps)
	}
	if m.Now() != 400*time.Millisecond {
		t.Errorf("Now() = %v, want 400ms", m.Now())
	}
	if m.RunNext() {
		t.Error("RunNext() with an empty queue returned true")
	}
}

func TestTimerSchedulerFires(t *testing.T) {
	s := NewTimerScheduler()
	defer s.Stop()

	done := make(chan struct{})
	s.After(5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback did not fire")
	}
}

func TestTimerSchedulerStopCancels(t *testing.T) {
	s := NewTimerScheduler()

	var mu sync.Mutex
	fired := 0
	for i := 0; i < 3; i++ {
		s.After(50*time.Millisecond, func() {
			mu.Lock()
			fired++
			mu.Unlock()
		})
	}
	if s.Pending() != 3 {
		t.Errorf("Pending() = %d, want 3", s.Pending())
	}

	s.Stop()
	s.After(time.Millisecond, func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired != 0 {
		t.Errorf("%d callbacks fired after Stop", fired)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d after Stop, want 0", s.Pending())
	}
}
