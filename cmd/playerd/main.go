// Package main provides the entry point for the ListenUp player daemon.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-player/internal/di"
	"github.com/listenupapp/listenup-player/internal/logger"
)

func main() {
	// Create DI container
	injector := di.NewContainer(os.Args[1:])

	// Bootstrap all services
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start player: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down player gracefully...")

	// The server stops first, then the stream, then the player flushes its
	// last checkpoint and the progress store closes.
	// A failed shutdown may have lost the final checkpoint; exit non-zero.
	if err := injector.Shutdown(); err != nil {
		log.Fatal("Shutdown error", "error", err)
	}

	log.Info("Player stopped")
}
