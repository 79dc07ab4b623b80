package main

import (
	"fmt"
	"os"

	"github.com/satishydv/meshaid-mvp/internal/config"
)

func main() {
	envFile := os.Getenv("MESHAID_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	Execute(&cfg)
}
