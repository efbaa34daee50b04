package main

import (
	"flag"
	"log"
	"os"

	"RegimeLab/internal/di"
	"RegimeLab/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s mode=%s symbol=%s", cfg.Environment, cfg.Mode, cfg.Data.Symbol)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("source=%s backend=%s", cfg.Data.Source, cfg.Artifacts.Backend)

	// Run application (batch returns, serve blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
