package test

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lawnchairsociety/chaintiles/internal/game"
	"github.com/lawnchairsociety/chaintiles/internal/testclient"
)

// minChain is the server's default minimum chain length
const minChain = 3

// waitTimeout bounds every wait on a server frame
const waitTimeout = 3 * time.Second

// uniqueCounter provides unique client names within a single run
var uniqueCounter uint64

func uniqueName(base string) string {
	return fmt.Sprintf("%s-%d", base, atomic.AddUint64(&uniqueCounter, 1))
}

// Verbose controls whether detailed logging is shown during tests
var Verbose = false

// TestResult represents the result of a test
type TestResult struct {
	Name    string
	Passed  bool
	Message string
}

// logAction logs a test action when verbose mode is enabled
func logAction(testName, action string) {
	if Verbose {
		fmt.Printf("  [%s] %s\n", testName, action)
	}
}

// logResult logs an expected vs actual result when verbose mode is enabled
func logResult(testName string, success bool, detail string) {
	if Verbose {
		status := "OK"
		if !success {
			status = "FAIL"
		}
		fmt.Printf("  [%s] %s: %s\n", testName, status, detail)
	}
}

func fail(name, format string, args ...any) TestResult {
	return TestResult{Name: name, Passed: false, Message: fmt.Sprintf(format, args...)}
}

func pass(name, format string, args ...any) TestResult {
	return TestResult{Name: name, Passed: true, Message: fmt.Sprintf(format, args...)}
}

// connect dials the server and waits for the first state frame.
func connect(testName, url string) (*testclient.TestClient, game.Snapshot, error) {
	name := uniqueName("client")
	logAction(testName, fmt.Sprintf("Connecting as '%s'...", name))
	client, err := testclient.NewTestClient(name, url)
	if err != nil {
		return nil, game.Snapshot{}, err
	}

	snap, ok := client.WaitForState(func(game.Snapshot) bool { return true }, waitTimeout)
	if !ok {
		client.Close()
		return nil, game.Snapshot{}, fmt.Errorf("no state frame received")
	}
	return client, snap, nil
}

// =============================================================================
// Test Runner
// =============================================================================

// RunAllTests runs every scenario against the server at url
func RunAllTests(url string) []TestResult {
	results := make([]TestResult, 0)

	// Group 1: Connection
	results = append(results, TestBasicConnection(url))
	results = append(results, TestSnapshotRequest(url))
	results = append(results, TestIndependentSessions(url))

	// Group 2: Gestures
	results = append(results, TestShortChainRefused(url))
	results = append(results, TestOutOfBoundsGesture(url))
	results = append(results, TestExtendWithoutGesture(url))
	results = append(results, TestChainResolution(url))

	// Group 3: Protocol errors
	results = append(results, TestMalformedMessage(url))
	results = append(results, TestUnknownMessageType(url))

	return results
}

// PrintResults prints a summary of test results
func PrintResults(results []TestResult) {
	passed := 0
	failed := 0

	fmt.Println("============================================================")
	fmt.Println("Integration Test Results")
	fmt.Println("============================================================")
	fmt.Println()

	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
			failed++
		} else {
			passed++
		}
		fmt.Printf("[%s] %s: %s\n", status, r.Name, r.Message)
	}

	fmt.Println()
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Total: %d | Passed: %d | Failed: %d\n", len(results), passed, failed)
	fmt.Println("------------------------------------------------------------")
}
