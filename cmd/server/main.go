// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alvera-ai/interoperability-template-generator/api"
	"github.com/alvera-ai/interoperability-template-generator/config"
	"github.com/alvera-ai/interoperability-template-generator/internal/app"
	"github.com/alvera-ai/interoperability-template-generator/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

func main() {
	customLog.Println("Starting API tester server...")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		customLog.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Open the store and wire the session
	session, closeStore, err := app.Open(ctx, cfg)
	if err != nil {
		customLog.Fatalf("Failed to initialize %s store: %v", cfg.StoreBackend, err)
	}
	defer func() {
		customLog.Println("Closing store...")
		if err := closeStore(); err != nil {
			customLog.Printf("Error closing store: %v", err)
		}
	}()

	// Resume the newest stored spec, if any.
	if summary, err := session.ActivateLatest(ctx, ""); err == nil {
		customLog.Printf("Resumed spec '%s' (%d endpoints)", summary.Name, summary.EndpointCount)
	} else if !errors.Is(err, app.ErrNoSpec) {
		customLog.Warnf("Could not resume stored spec: %v", err)
	}

	// 3. Setup Router
	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           api.SetupRouter(session, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 4. Start Server
	go func() {
		customLog.Printf("Server listening on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			customLog.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	customLog.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		customLog.Warnf("Server shutdown: %v", err)
	}
}
