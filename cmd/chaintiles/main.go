package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lawnchairsociety/chaintiles/internal/config"
	"github.com/lawnchairsociety/chaintiles/internal/logger"
	"github.com/lawnchairsociety/chaintiles/internal/server"
)

func main() {
	wsPort := flag.Int("wsport", 4001, "WebSocket server port")
	serverConfigFile := flag.String("config", "data/server.yaml", "Path to server config YAML file")
	loggingConfig := flag.String("logging", "", "Path to logging config YAML file (default: the -config file)")
	seed := flag.Uint64("seed", 0, "Tile generator seed for every session (default: random per session)")
	flag.Parse()

	if *loggingConfig == "" {
		*loggingConfig = *serverConfigFile
	}
	logConfig, _ := logger.LoadConfig(*loggingConfig)
	if err := logger.Initialize(logConfig); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Info("Starting Chain Tiles server")

	serverCfg, err := config.LoadConfig(*serverConfigFile)
	if err != nil {
		logger.Warning("Failed to load server config, using defaults", "path", *serverConfigFile, "error", err)
		serverCfg = config.DefaultConfig()
	}
	if *seed != 0 {
		serverCfg.Game.Seed = *seed
		logger.Info("Fixed tile seed selected", "seed", *seed)
	}
	logger.Info("Board configured",
		"rows", serverCfg.Game.Rows,
		"columns", serverCfg.Game.Columns,
		"kinds", serverCfg.Game.Kinds,
		"min_chain", serverCfg.Game.MinChain,
		"step_delay", serverCfg.Game.StepDelay().String())

	if len(serverCfg.WebSocket.AllowedOrigins) == 0 {
		logger.Info("WebSocket CORS policy", "mode", "same-origin")
	} else if len(serverCfg.WebSocket.AllowedOrigins) == 1 && serverCfg.WebSocket.AllowedOrigins[0] == "*" {
		logger.Warning("WebSocket CORS allows all origins (not recommended for production)")
	} else {
		logger.Info("WebSocket CORS policy", "allowed_origins", serverCfg.WebSocket.AllowedOrigins)
	}

	srv := server.NewServer(serverCfg)

	// Start WebSocket server in a goroutine
	wsAddr := fmt.Sprintf(":%d", *wsPort)
	go func() {
		if err := srv.StartWebSocket(wsAddr); err != nil {
			log.Fatalf("WebSocket server error: %v", err)
		}
	}()

	logger.Info("Chain Tiles server running", "websocket_port", *wsPort)
	logger.Info("Press Ctrl+C to shutdown")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server")
	srv.Shutdown()
	logger.Info("Server stopped")
}
