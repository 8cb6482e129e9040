package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/supamail/supamail-gateway/internal/adapters/store"
	"github.com/supamail/supamail-gateway/internal/adapters/webhook"
	"github.com/supamail/supamail-gateway/internal/core"
	"github.com/supamail/supamail-gateway/internal/di"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	server *webhook.Server,
	classifier core.Classifier,
	st store.Store,
) error {
	defer logger.Sync()

	// Start the webhook server
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start webhook server", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Stop the webhook server
	if err := server.Stop(); err != nil {
		logger.Error("Failed to stop webhook server", zap.Error(err))
	}

	// Close any resources that need closing
	if closer, ok := classifier.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close classifier", zap.Error(err))
		}
	}
	if err := st.Close(); err != nil {
		logger.Error("Failed to close store", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}
