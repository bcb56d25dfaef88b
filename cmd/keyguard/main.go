package main

import (
	"log"
	"os"

	"github.com/carelink/keyguard/config"
	"github.com/carelink/keyguard/server"
)

func main() {
	// Try to load from environment first
	cfg, err := config.LoadFromEnv()
	if err != nil {
		cfg, err = config.Load()
		if err != nil {
			log.Fatal("Failed to load config:", err)
		}
	}

	addr := cfg.ListenAddr
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	srv, err := server.New(
		server.WithConfig(cfg),
		server.WithMetrics(true),
	)
	if err != nil {
		log.Fatal("Failed to create server:", err)
	}

	if err := srv.ListenAndServe(addr); err != nil {
		log.Fatal("Server error:", err)
	}
}
