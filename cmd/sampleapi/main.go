// Package main is the entry point for the sample API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gary-archer/oauth.websample.azure/cmd/sampleapi/app"
	"github.com/gary-archer/oauth.websample.azure/pkg/logger"
)

func main() {
	// Initialize the logger
	logger.Initialize()

	// Create a context that will be canceled on signal
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	if err := app.NewRootCmd().ExecuteContext(ctx); err != nil {
		logger.Errorf("Error executing command: %v", err)
		os.Exit(1)
	}
}
