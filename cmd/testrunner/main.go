package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lawnchairsociety/chaintiles/test"
)

func main() {
	serverURL := flag.String("addr", "ws://localhost:4001/ws", "Game server WebSocket URL")
	verbose := flag.Bool("v", false, "Verbose output - show detailed actions for each test")
	flag.Parse()

	// Set verbose mode
	test.Verbose = *verbose

	fmt.Printf("Running integration tests against %s\n", *serverURL)
	fmt.Println("Make sure the game server is running!")
	if *verbose {
		fmt.Println("Verbose mode enabled - showing detailed test actions")
	}
	fmt.Println()

	results := test.RunAllTests(*serverURL)
	test.PrintResults(results)

	// Exit with error code if any tests failed
	for _, result := range results {
		if !result.Passed {
			os.Exit(1)
		}
	}
}
