package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/vinscan/vinscan/internal/bootstrap"
)

func main() {
	// In dev, configuration comes from a local .env file; in production
	// the environment is injected by the deployment.
	if env := os.Getenv("RUN_TIME_ENV"); env == "dev" || env == "" {
		if err := godotenv.Load(); err != nil {
			slog.Info("no .env file loaded", "error", err)
		}
	}

	bootstrap.Run()
}
