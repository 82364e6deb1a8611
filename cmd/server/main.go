// Command main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/config"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/observability"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/server"
)

// @title X Follower Maker API
// @version 1.0
// @description Scheduled post generation, dispatch and follower tracking.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey JobSecret
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the job trigger secret.

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "x-follower-maker-api",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			slog.Error("server stopped", "error", err)
		}
	}

	// In-flight job runs finish their items on detached contexts; give them
	// the publisher timeout plus headroom.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.PublisherTimeout()+10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		slog.Error("server shutdown error", "error", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		slog.Error("tracing shutdown error", "error", err)
	}
}
