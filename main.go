package main

import (
	"log"

	"github.com/joho/godotenv"
	"imagequality/cmd"
	"imagequality/internal/config"
	"imagequality/internal/logger"
)

func main() {
	// Load environment variables; a missing .env file is normal
	_ = godotenv.Load()

	// Logs go to stderr unless LOG_OUTPUT says otherwise, so stdout carries only the report
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Warning: Could not load configuration: %v", err)
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting imagequality")

	cmd.Execute()

	log.Debug().Msg("imagequality finished")
}
