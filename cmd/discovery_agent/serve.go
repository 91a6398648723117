package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/jonathan/job-discovery/internal/config"
	"github.com/jonathan/job-discovery/internal/discovery"
	"github.com/jonathan/job-discovery/internal/pipeline"
	"github.com/jonathan/job-discovery/internal/scheduler"
	"github.com/jonathan/job-discovery/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the discovery agent HTTP server",
	Long:  "Start an HTTP server exposing intake, batch triggering, and backlog inspection. When a schedule is configured, batch passes also run on the cron spec.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	port := servePort
	if port == 0 {
		port = cfg.Port
	}
	if port == 0 {
		port = 8080
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	srv := server.New(discovery.NewService(database), driver, database)

	if cfg.Schedule != "" {
		sched, err := buildScheduler(ctx, cfg, driver)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(port)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("[agent] received %s, shutting down", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

func buildScheduler(ctx context.Context, cfg *config.Config, driver *pipeline.Driver) (*scheduler.Scheduler, error) {
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
	}

	return scheduler.New(driver, rdb, cfg.Schedule, pipeline.BatchOptions{
		BatchSize:         cfg.BatchSize,
		Source:            cfg.Source,
		MinAgeHours:       cfg.MinAgeHours,
		Priority:          true,
		TriggerExtraction: cfg.Extraction,
		TriggerEmbedding:  cfg.Embedding,
	}), nil
}
