package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cwbudde/rosenopt/internal/objective"
	"github.com/cwbudde/rosenopt/internal/opt"
	"github.com/cwbudde/rosenopt/internal/store"
)

var (
	resumeMaxIter     int
	resumeReportEvery int
)

var resumeCmd = &cobra.Command{
	Use:   "resume [job-id]",
	Short: "Resume a saved run from its checkpoint",
	Long: `Continues a run saved with "rosenopt run --save" from its last checkpoint
with the remaining iteration budget. --max-iter raises the total budget of
a run that stopped at its limit.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().IntVar(&resumeMaxIter, "max-iter", 0, "New total iteration budget (0 = keep)")
	resumeCmd.Flags().IntVar(&resumeReportEvery, "report-every", 0, "Print every N iterations (0 = strategy default)")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	checkpointStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	_, err = resumeJob(ctx, cmd.OutOrStdout(), checkpointStore, args[0], resumeMaxIter, resumeReportEvery)
	return err
}

// resumeJob continues jobID from its checkpoint. maxIter > 0 replaces the
// stored total budget.
func resumeJob(ctx context.Context, out io.Writer, checkpointStore store.Store, jobID string, maxIter, every int) (*opt.Result, error) {
	checkpoint, err := checkpointStore.LoadCheckpoint(jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("no checkpoint for job %s", jobID)
	}
	if err != nil {
		return nil, err
	}

	config := checkpoint.Config
	if maxIter > 0 {
		if maxIter <= checkpoint.Iteration {
			return nil, fmt.Errorf("--max-iter %d must exceed the %d iterations already done", maxIter, checkpoint.Iteration)
		}
		config.MaxIterations = maxIter
	}
	if err := checkpoint.IsCompatible(config); err != nil {
		return nil, err
	}

	switch {
	case checkpoint.State == opt.StateConverged:
		fmt.Fprintf(out, "Job %s already converged after %d iterations (f(x) = %.10g).\n",
			jobID, checkpoint.Iteration, checkpoint.Value)
		return nil, nil
	case checkpoint.Iteration >= config.MaxIterations:
		return nil, fmt.Errorf("job %s used its budget of %d iterations; raise it with --max-iter", jobID, config.MaxIterations)
	}

	slog.Info("Resuming optimization",
		"job_id", jobID,
		"strategy", config.Strategy,
		"iteration", checkpoint.Iteration,
		"value", checkpoint.Value,
		"remaining", config.MaxIterations-checkpoint.Iteration,
	)
	fmt.Fprintf(out, "Resuming %s at iteration %d (f(x) = %.10g)\n", jobID, checkpoint.Iteration, checkpoint.Value)

	hasTrace := false
	if tr, err := store.NewTraceReader(checkpointStore.JobDir(jobID)); err == nil {
		tr.Close()
		hasTrace = true
	}

	sess := session{
		jobID:        jobID,
		config:       config,
		start:        checkpoint.Point,
		initialValue: checkpoint.InitialValue,
		offset:       checkpoint.Iteration,
		store:        checkpointStore,
		trace:        hasTrace,
		appendTrace:  true,
		reportEvery:  every,
	}
	return optimize(ctx, out, objective.NewBlockRosenbrock(), sess)
}
