package test

import (
	"strings"
)

// =============================================================================
// Group 3: Protocol errors
// =============================================================================

// TestMalformedMessage checks that a non-JSON frame gets an error frame
func TestMalformedMessage(url string) TestResult {
	const testName = "Malformed Message"

	client, _, err := connect(testName, url)
	if err != nil {
		return fail(testName, "Failed to connect: %v", err)
	}
	defer client.Close()

	logAction(testName, "Sending a non-JSON frame")
	client.SendRaw("begin 1 1")

	msg, ok := client.WaitForError(waitTimeout)
	logResult(testName, ok, msg)
	if !ok || !strings.Contains(msg, "malformed") {
		return fail(testName, "Expected a malformed message error, got %q", msg)
	}

	return pass(testName, "Server answered %q", msg)
}

// TestUnknownMessageType checks that an unknown type is rejected
func TestUnknownMessageType(url string) TestResult {
	const testName = "Unknown Message Type"

	client, _, err := connect(testName, url)
	if err != nil {
		return fail(testName, "Failed to connect: %v", err)
	}
	defer client.Close()

	client.SendRaw(`{"type":"shuffle"}`)

	msg, ok := client.WaitForError(waitTimeout)
	if !ok || !strings.Contains(msg, "unknown message type") {
		return fail(testName, "Expected an unknown type error, got %q", msg)
	}

	return pass(testName, "Server answered %q", msg)
}
