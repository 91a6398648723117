// Package main provides the entry point for the job discovery agent.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "discovery_agent",
	Short: "Job discovery and promotion agent",
	Long:  "Discovery agent ingests job postings found by upstream scrapers, scores and deduplicates them, and promotes them into canonical job records with optional AI enrichment.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
