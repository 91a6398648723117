package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-discovery/internal/pipeline"
)

var (
	processBatchSize int
	processLimit     int
	processSource    string
	processMinAge    int
	processOldest    bool
	processExtract   bool
	processEmbed     bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run one batch pass over the unprocessed backlog",
	Long:  "Select eligible discovered jobs, fetch their detail pages, and promote them to canonical job records. Optionally dispatch AI enrichment for each promoted job.",
	RunE:  runProcess,
}

func init() {
	processCmd.Flags().IntVar(&processBatchSize, "batch-size", 0, "Jobs per selection page (default 50)")
	processCmd.Flags().IntVar(&processLimit, "limit", 0, "Hard cap on jobs processed this pass")
	processCmd.Flags().StringVar(&processSource, "source", "", "Restrict to one discovery source")
	processCmd.Flags().IntVar(&processMinAge, "min-age-hours", 0, "Skip jobs discovered more recently than this")
	processCmd.Flags().BoolVar(&processOldest, "oldest-first", false, "Process oldest discoveries first instead of highest priority")
	processCmd.Flags().BoolVar(&processExtract, "extract", false, "Dispatch structured extraction for promoted jobs")
	processCmd.Flags().BoolVar(&processEmbed, "embed", false, "Dispatch embedding generation for promoted jobs")

	rootCmd.AddCommand(processCmd)
}

func runProcess(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if processBatchSize == 0 {
		processBatchSize = cfg.BatchSize
	}
	if processSource == "" {
		processSource = cfg.Source
	}
	if processMinAge == 0 {
		processMinAge = cfg.MinAgeHours
	}

	ctx := context.Background()
	database, err := connectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	driver, cleanup, err := buildDriver(ctx, cfg, database)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := driver.RunBatch(ctx, pipeline.BatchOptions{
		BatchSize:         processBatchSize,
		Limit:             processLimit,
		Source:            processSource,
		MinAgeHours:       processMinAge,
		Priority:          !processOldest,
		TriggerExtraction: processExtract || cfg.Extraction,
		TriggerEmbedding:  processEmbed || cfg.Embedding,
	})
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Batch complete: %d processed, %d failed, %d skipped (%d total)\n",
		result.Processed, result.Failed, result.Skipped, result.Total)
	return nil
}
