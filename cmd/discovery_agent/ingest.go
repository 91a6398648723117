package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-discovery/internal/discovery"
)

var ingestFile string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest discovered jobs from a JSON file",
	Long:  "Read a JSON file of discovered jobs (an array, or an object with a \"jobs\" array), score them, and upsert them into the discovery backlog. Use \"-\" to read from stdin.",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "Path to JSON file of discovered jobs, or - for stdin (required)")
	ingestCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	inputs, err := readJobInputs(ingestFile)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no jobs found in %s", ingestFile)
	}

	ctx := context.Background()
	database, err := connectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	result, err := discovery.NewService(database).BulkUpsert(ctx, inputs)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Ingested %d jobs: %d created, %d updated\n",
		len(inputs), result.Created, result.Updated)
	return nil
}

// readJobInputs accepts either a bare array or an object wrapping it in a
// "jobs" field, matching the HTTP intake body.
func readJobInputs(path string) ([]discovery.JobInput, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	var inputs []discovery.JobInput
	if err := json.Unmarshal(data, &inputs); err == nil {
		return inputs, nil
	}

	var wrapped struct {
		Jobs []discovery.JobInput `json:"jobs"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse input JSON: %w", err)
	}
	return wrapped.Jobs, nil
}
