package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/cli"
)

func main() {
	// A .env in the working directory may carry SNOWFLAKE_PAT and friends.
	// Variables already set in the environment win.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not load .env: %v\n", err)
		}
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
