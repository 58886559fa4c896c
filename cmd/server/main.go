// Command main is the entry point for the chainhire backend server.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chainhire/internal/config"
	"chainhire/internal/observability"
	"chainhire/internal/seed"
	"chainhire/internal/server"
)

// @title chainhire API
// @version 1.0
// @description Web3 job board and social feed. Job postings are paid with an on-chain transfer.

// @host localhost:8480
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	demo := flag.Bool("demo", false, "Seed an empty development database with demo data")
	planFile := flag.String("seed-plan", "", "YAML seed plan used with -demo")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "chainhire-api",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	var opts []server.Option
	if *demo {
		plan := seed.DefaultPlan()
		if *planFile != "" {
			if plan, err = seed.LoadPlan(*planFile); err != nil {
				log.Fatalf("Failed to load seed plan: %v", err)
			}
		}
		opts = append(opts, server.WithDemoSeed(plan))
	}

	// Create server with dependency injection
	srv, err := server.NewServer(cfg, opts...)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server resource shutdown error: %v", err)
		}
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("Tracing shutdown error: %v", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
