package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/TascaBarea/ParsearFacturas-sub000/cmd"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/config"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Warning: Could not load configuration: %v", err)
		// Use default logger config if main config fails
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else {
		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	}

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting Facturas CLI")

	cmd.Execute()

	log.Debug().Msg("Facturas CLI shutdown")
	os.Exit(0)
}
