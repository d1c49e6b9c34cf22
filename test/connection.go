package test

import (
	"fmt"
	"time"
)

// =============================================================================
// Group 1: Connection
// =============================================================================

// TestBasicConnection checks that a new client is sent a full board
func TestBasicConnection(url string) TestResult {
	const testName = "Basic Connection"

	client, snap, err := connect(testName, url)
	if err != nil {
		return fail(testName, "Failed to connect: %v", err)
	}
	defer client.Close()

	full := snap.Grid.Count() == snap.Grid.Rows*snap.Grid.Cols
	logResult(testName, full, fmt.Sprintf("Board %dx%d with %d tiles", snap.Grid.Rows, snap.Grid.Cols, snap.Grid.Count()))
	if snap.Grid.Rows == 0 || !full {
		return fail(testName, "Initial board is not full: %d of %d cells", snap.Grid.Count(), snap.Grid.Rows*snap.Grid.Cols)
	}
	if snap.ID == "" {
		return fail(testName, "Initial state carries no session id")
	}

	return pass(testName, "Received a full %dx%d board", snap.Grid.Rows, snap.Grid.Cols)
}

// TestSnapshotRequest checks that a snapshot request produces a fresh state frame
func TestSnapshotRequest(url string) TestResult {
	const testName = "Snapshot Request"

	client, first, err := connect(testName, url)
	if err != nil {
		return fail(testName, "Failed to connect: %v", err)
	}
	defer client.Close()

	before := client.StateCount()
	logAction(testName, "Requesting snapshot")
	client.RequestSnapshot()

	deadline := time.Now().Add(waitTimeout)
	for client.StateCount() == before {
		if time.Now().After(deadline) {
			return fail(testName, "No state frame after snapshot request")
		}
		time.Sleep(20 * time.Millisecond)
	}

	latest, _ := client.LatestState()
	if latest.ID != first.ID || latest.Seq != first.Seq {
		return fail(testName, "Snapshot (%s, seq %d) does not match idle session (%s, seq %d)", latest.ID, latest.Seq, first.ID, first.Seq)
	}
	return pass(testName, "Snapshot resent for session %s", first.ID)
}

// TestIndependentSessions checks that each connection gets its own game
func TestIndependentSessions(url string) TestResult {
	const testName = "Independent Sessions"

	a, snapA, err := connect(testName, url)
	if err != nil {
		return fail(testName, "First client failed to connect: %v", err)
	}
	defer a.Close()

	b, snapB, err := connect(testName, url)
	if err != nil {
		return fail(testName, "Second client failed to connect: %v", err)
	}
	defer b.Close()

	logResult(testName, snapA.ID != snapB.ID, fmt.Sprintf("Session ids %s and %s", snapA.ID, snapB.ID))
	if snapA.ID == snapB.ID {
		return fail(testName, "Both clients share session %s", snapA.ID)
	}

	// A gesture on one board must not show up on the other.
	a.Begin(0, 0)
	if accepted, ok := a.WaitForResult("begin", waitTimeout); !ok || !accepted {
		return fail(testName, "Begin on first client was not accepted")
	}
	time.Sleep(100 * time.Millisecond)

	if latest, _ := b.LatestState(); len(latest.Chain) != 0 {
		return fail(testName, "Second client sees a chain of %d it never started", len(latest.Chain))
	}
	a.End()

	return pass(testName, "Two clients got separate sessions")
}
