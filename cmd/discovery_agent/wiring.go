package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jonathan/job-discovery/internal/config"
	"github.com/jonathan/job-discovery/internal/db"
	"github.com/jonathan/job-discovery/internal/enrich"
	"github.com/jonathan/job-discovery/internal/fetch"
	"github.com/jonathan/job-discovery/internal/llm"
	"github.com/jonathan/job-discovery/internal/pipeline"
)

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to JSON config file")
}

// loadConfig merges the optional config file with environment fallbacks.
// Command flags are applied on top by the individual commands.
func loadConfig() (*config.Config, error) {
	cfg := &config.Config{}

	if configPath != "" {
		fileCfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		merged := cfg.MergeWithDefaults(*fileCfg)
		cfg = &merged
	}

	cfg.FromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func connectDB(ctx context.Context, cfg *config.Config) (*db.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL is required (set DATABASE_URL or database_url in config)")
	}
	return db.Connect(ctx, cfg.DatabaseURL)
}

// buildDriver wires the batch driver and, when an API key is configured, the
// enrichment dispatcher. The returned cleanup waits for in-flight enrichment
// and releases the AI client.
func buildDriver(ctx context.Context, cfg *config.Config, database *db.DB) (*pipeline.Driver, func(), error) {
	fetcher := fetch.NewClient(&fetch.ClientConfig{
		UseBrowser: cfg.UseBrowser,
		Verbose:    cfg.Verbose,
	})
	orchestrator := pipeline.NewOrchestrator(database, fetcher)

	var enricher pipeline.Enricher
	cleanup := func() { _ = fetcher.Close() }

	if cfg.APIKey != "" {
		client, err := llm.NewGeminiClient(ctx, nil, cfg.APIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create AI client: %w", err)
		}
		service := enrich.NewService(database, client)
		// Without the full embedding stage, a summary-derived vector is
		// better than none.
		service.SummaryVectors = cfg.Extraction && !cfg.Embedding
		dispatcher := enrich.NewDispatcher(ctx, service, cfg.Concurrency)
		enricher = dispatcher
		cleanup = func() {
			dispatcher.Wait()
			_ = client.Close()
			_ = fetcher.Close()
		}
	} else {
		log.Printf("[agent] no API key configured, enrichment disabled")
	}

	return pipeline.NewDriver(database, orchestrator, enricher), cleanup, nil
}
