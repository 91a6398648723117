// Package server exposes the discovery agent over HTTP: intake, batch
// triggering, and backlog inspection.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jonathan/job-discovery/internal/db"
	"github.com/jonathan/job-discovery/internal/discovery"
	"github.com/jonathan/job-discovery/internal/pipeline"
)

// Intake accepts discovered-job batches.
type Intake interface {
	BulkUpsert(ctx context.Context, inputs []discovery.JobInput) (discovery.UpsertResult, error)
}

// BatchRunner triggers one promotion pass over the backlog.
type BatchRunner interface {
	RunBatch(ctx context.Context, opts pipeline.BatchOptions) (*pipeline.BatchResult, error)
}

// Lookup reads discovered jobs for inspection endpoints.
type Lookup interface {
	FindUnprocessed(ctx context.Context, q db.UnprocessedQuery) ([]db.DiscoveredJob, int, error)
	GetDiscoveredJobByExternalID(ctx context.Context, externalID string) (*db.DiscoveredJob, error)
}

// Server is the discovery agent's HTTP surface.
type Server struct {
	intake Intake
	runner BatchRunner
	lookup Lookup

	httpServer *http.Server
}

// New creates a server over the given collaborators.
func New(intake Intake, runner BatchRunner, lookup Lookup) *Server {
	return &Server{
		intake: intake,
		runner: runner,
		lookup: lookup,
	}
}

// Handler builds the route table. Exposed separately so tests can drive the
// mux without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/discovered-jobs", s.handleIntake)
	mux.HandleFunc("GET /api/v1/discovered-jobs", s.handleListUnprocessed)
	mux.HandleFunc("GET /api/v1/discovered-jobs/{externalID}", s.handleGetDiscoveredJob)
	mux.HandleFunc("POST /api/v1/process", s.handleProcess)

	return withLogging(withCORS(mux))
}

// Start listens on the given port and blocks until the listener fails or
// Shutdown is called.
func (s *Server) Start(port int) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("[server] listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	log.Printf("[server] shutting down")
	return s.httpServer.Shutdown(ctx)
}
