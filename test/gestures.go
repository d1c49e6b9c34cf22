package test

import (
	"fmt"

	"github.com/lawnchairsociety/chaintiles/internal/game"
	"github.com/lawnchairsociety/chaintiles/internal/server"
	"github.com/lawnchairsociety/chaintiles/internal/testclient"
)

// =============================================================================
// Group 2: Gestures
// =============================================================================

// TestShortChainRefused checks that releasing a one-tile chain changes nothing
func TestShortChainRefused(url string) TestResult {
	const testName = "Short Chain Refused"

	client, snap, err := connect(testName, url)
	if err != nil {
		return fail(testName, "Failed to connect: %v", err)
	}
	defer client.Close()

	logAction(testName, "Begin at (0,0), then release")
	client.Begin(0, 0)
	if accepted, ok := client.WaitForResult(server.MsgBegin, waitTimeout); !ok || !accepted {
		return fail(testName, "Begin on an occupied cell was not accepted")
	}
	client.End()

	accepted, ok := client.WaitForResult(server.MsgEnd, waitTimeout)
	logResult(testName, ok && !accepted, fmt.Sprintf("End accepted=%v", accepted))
	if !ok {
		return fail(testName, "No result for end")
	}
	if accepted {
		return fail(testName, "A one-tile chain was committed")
	}

	after, ok := client.WaitForState(func(s game.Snapshot) bool {
		return s.Seq > snap.Seq && len(s.Chain) == 0
	}, waitTimeout)
	if !ok {
		return fail(testName, "Chain was not cleared after release")
	}
	if after.Locked || after.Stats.Removed != snap.Stats.Removed {
		return fail(testName, "Board changed after a refused release: removed %d, locked %v", after.Stats.Removed, after.Locked)
	}

	return pass(testName, "One-tile chain was discarded")
}

// TestOutOfBoundsGesture checks that a gesture off the board is refused with an error
func TestOutOfBoundsGesture(url string) TestResult {
	const testName = "Out Of Bounds Gesture"

	client, snap, err := connect(testName, url)
	if err != nil {
		return fail(testName, "Failed to connect: %v", err)
	}
	defer client.Close()

	logAction(testName, fmt.Sprintf("Begin at (%d,%d)", snap.Grid.Rows, snap.Grid.Cols))
	client.Begin(snap.Grid.Rows, snap.Grid.Cols)

	msg, ok := client.WaitForError(waitTimeout)
	logResult(testName, ok, msg)
	if !ok {
		return fail(testName, "No error frame for an out of bounds begin")
	}
	if accepted, ok := client.WaitForResult(server.MsgBegin, waitTimeout); !ok || accepted {
		return fail(testName, "Out of bounds begin was not refused")
	}

	return pass(testName, "Refused with %q", msg)
}

// TestExtendWithoutGesture checks that extend is refused when no gesture is active
func TestExtendWithoutGesture(url string) TestResult {
	const testName = "Extend Without Gesture"

	client, _, err := connect(testName, url)
	if err != nil {
		return fail(testName, "Failed to connect: %v", err)
	}
	defer client.Close()

	client.Extend(0, 1)
	accepted, ok := client.WaitForResult(server.MsgExtend, waitTimeout)
	if !ok {
		return fail(testName, "No result for extend")
	}
	if accepted {
		return fail(testName, "Extend was accepted with no active gesture")
	}

	return pass(testName, "Extend refused")
}

// TestChainResolution draws a valid chain and waits for the board to refill
func TestChainResolution(url string) TestResult {
	const testName = "Chain Resolution"

	client, snap, err := connect(testName, url)
	if err != nil {
		return fail(testName, "Failed to connect: %v", err)
	}
	defer client.Close()

	chain, ok := testclient.FindChain(snap.Grid, minChain)
	if !ok {
		// Random boards do not always hold a straight run.
		return pass(testName, "No straight chain of %d on this board, skipped", minChain)
	}

	logAction(testName, fmt.Sprintf("Drawing chain %v", chain))
	client.Begin(chain[0].Row, chain[0].Col)
	for _, p := range chain[1:] {
		client.Extend(p.Row, p.Col)
	}
	client.End()

	accepted, ok := client.WaitForResult(server.MsgEnd, waitTimeout)
	logResult(testName, accepted, "Chain released")
	if !ok || !accepted {
		return fail(testName, "Valid chain of %d was not committed", len(chain))
	}

	// The board holds the lockout until the refill ends.
	if _, ok := client.WaitForState(func(s game.Snapshot) bool { return s.Locked }, waitTimeout); !ok {
		return fail(testName, "Board never locked after release")
	}

	settled, ok := client.WaitForState(func(s game.Snapshot) bool {
		return !s.Locked && s.Stats.Removed >= minChain
	}, waitTimeout)
	if !ok {
		return fail(testName, "Board never settled")
	}

	cells := settled.Grid.Rows * settled.Grid.Cols
	logResult(testName, settled.Grid.Count() == cells, fmt.Sprintf("%d of %d cells filled", settled.Grid.Count(), cells))
	if settled.Grid.Count() != cells {
		return fail(testName, "Board has %d holes after refill", cells-settled.Grid.Count())
	}

	return pass(testName, "Removed %d tiles in %d passes, refilled %d", settled.Stats.Removed, settled.Stats.Passes, settled.Stats.Filled)
}
