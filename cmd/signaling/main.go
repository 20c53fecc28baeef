package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Champion1102/Crossdrop-sub000/internals/config"
	"github.com/Champion1102/Crossdrop-sub000/internals/server"
	"github.com/Champion1102/Crossdrop-sub000/internals/utils"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize logger
	if err := utils.InitLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger := utils.GetLogger()
	logger.Info("Starting signaling server")

	srv := server.New(cfg)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Failed to start signaling server", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	logger.Info("Received shutdown signal")

	// Stalled close handlers must not keep the process alive.
	forced := time.AfterFunc(cfg.Server.ShutdownTimeout, func() {
		logger.Error("Shutdown deadline exceeded, forcing exit")
		os.Exit(1)
	})

	srv.Stop()
	forced.Stop()

	logger.Info("Signaling server stopped")
}
