package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/nhle/deadliner/internal/app"
)

var version = "dev"

func main() {
	// Load .env first; a missing file is fine.
	_ = godotenv.Load()

	if err := app.New(version).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "deadliner:", err)
		os.Exit(1)
	}
}
