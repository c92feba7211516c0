package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/rosenopt/internal/server"
	"github.com/cwbudde/rosenopt/internal/store"
)

var (
	serveAddr    string
	noCheckpoint bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP job server",
	Long: `Serves the optimization job API:

  POST /api/v1/jobs              start a job (JSON job config)
  GET  /api/v1/jobs              list jobs
  GET  /api/v1/jobs/{id}/status  job status
  GET  /api/v1/jobs/{id}/stream  progress as server-sent events
  GET  /api/v1/jobs/{id}/trace   iteration trace
  POST /api/v1/jobs/{id}/cancel  cancel a running job`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().BoolVar(&noCheckpoint, "no-checkpoint", false, "Do not persist traces and checkpoints")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	var checkpointStore store.Store
	if !noCheckpoint {
		fsStore, err := store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create checkpoint store: %w", err)
		}
		checkpointStore = fsStore
	}

	srv := server.NewServer(serveAddr, checkpointStore)

	ctx, stop := signalContext()
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
