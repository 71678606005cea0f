package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kestrelops/kestrel/internal/app"
	"github.com/kestrelops/kestrel/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("initialise application: %v", err)
	}

	if err := application.LoadPolicies(cfg.PolicySourcePath); err != nil {
		log.Fatalf("load policies from %s: %v", cfg.PolicySourcePath, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application.Start(ctx)
	log.Printf("control plane listening on %s", cfg.HTTPAddr)

	<-ctx.Done()
	log.Printf("shutdown signal received, draining in-flight work")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	application.Stop(shutdownCtx)

	log.Printf("shutdown complete")
	os.Exit(0)
}
