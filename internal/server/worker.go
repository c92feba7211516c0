package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/rosenopt/internal/objective"
	"github.com/cwbudde/rosenopt/internal/opt"
	"github.com/cwbudde/rosenopt/internal/report"
	"github.com/cwbudde/rosenopt/internal/store"
)

// progressInterval throttles SSE progress events.
const progressInterval = 500 * time.Millisecond

// runJob executes an optimization job in the background.
// If checkpointStore is not nil the job's trace and final checkpoint are
// written to it, plus periodic checkpoints when CheckpointInterval > 0.
func runJob(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string) error {
	defer jm.release(jobID)
	defer jm.broadcaster.CleanupJob(jobID)

	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if err := ctx.Err(); err != nil {
		markJobCancelled(jm, jobID)
		return err
	}

	fn := objective.NewBlockRosenbrock()
	initialValue, err := fn.Value(job.Config.InitialPoint)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	config := job.Config.WithDefaults()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
		j.Config = config
		j.InitialValue = initialValue
		j.Value = initialValue
		j.Point = append([]float64(nil), job.Config.InitialPoint...)
	})
	if err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID, "strategy", config.Strategy, "dim", config.Dim())

	reporters := []opt.Reporter{jobReporter(jm, jobID)}

	var tw *store.TraceWriter
	if checkpointStore != nil {
		tw, err = store.NewTraceWriter(checkpointStore.JobDir(jobID), false)
		if err != nil {
			slog.Warn("Trace disabled", "job_id", jobID, "error", err)
			tw = nil
		} else {
			reporters = append(reporters, report.NewTrace(tw, false, 0))
		}
	}

	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, jobID, progressDone)

	checkpointDone := make(chan struct{})
	if checkpointStore != nil && config.CheckpointInterval > 0 {
		go monitorCheckpoints(ctx, jm, checkpointStore, jobID, checkpointDone)
	}

	start := time.Now()
	opts := config.Options()
	opts.Reporter = report.Multi(reporters...)
	result, err := opt.Optimize(ctx, fn, job.Config.InitialPoint, opts)

	close(progressDone)
	close(checkpointDone)
	elapsed := time.Since(start)

	// The trace must be complete before the job is observed as finished.
	if tw != nil {
		if err := tw.Close(); err != nil {
			slog.Error("Failed to close trace", "job_id", jobID, "error", err)
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if checkpointStore != nil {
			if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
				slog.Error("Failed to save checkpoint", "job_id", jobID, "error", err)
			}
		}
		markJobCancelled(jm, jobID)
		return err
	}
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	err = jm.UpdateJob(jobID, func(j *Job) {
		j.Outcome = result.State
		j.Point = result.Point
		j.Value = result.Value
		j.GradNorm = result.GradNorm
		j.Iterations = result.Iterations
		j.Fallbacks = result.Fallbacks
	})
	if err != nil {
		return err
	}

	if checkpointStore != nil {
		if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
			slog.Error("Failed to save final checkpoint", "job_id", jobID, "error", err)
		}
	}

	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"outcome", result.State,
		"iterations", result.Iterations,
		"value", result.Value,
		"grad_norm", result.GradNorm,
		"fallbacks", result.Fallbacks,
	)

	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:      jobID,
		State:      StateCompleted,
		Outcome:    result.State,
		Iterations: result.Iterations,
		Value:      result.Value,
		GradNorm:   result.GradNorm,
		Timestamp:  time.Now(),
	})

	return nil
}

// jobReporter mirrors optimizer progress into the job record.
func jobReporter(jm *JobManager, jobID string) opt.Reporter {
	return opt.ReporterFunc(func(p opt.Progress) {
		jm.UpdateJob(jobID, func(j *Job) {
			j.Point = p.Point
			j.Value = p.Value
			j.GradNorm = p.GradNorm
			j.Iterations = p.Iteration
			if p.Fallback != nil {
				j.Fallbacks++
			}
		})
	})
}

// monitorProgress periodically broadcasts progress events during optimization
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, done chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}

			jm.broadcaster.Broadcast(ProgressEvent{
				JobID:      jobID,
				State:      job.State,
				Iterations: job.Iterations,
				Value:      job.Value,
				GradNorm:   job.GradNorm,
				Fallbacks:  job.Fallbacks,
				Timestamp:  time.Now(),
			})
		}
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
	jm.broadcaster.Broadcast(ProgressEvent{JobID: jobID, State: StateFailed, Timestamp: endTime})
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
	jm.broadcaster.Broadcast(ProgressEvent{JobID: jobID, State: StateCancelled, Timestamp: endTime})
}

// monitorCheckpoints periodically saves checkpoints during optimization
func monitorCheckpoints(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string, done chan struct{}) {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return
	}

	ticker := time.NewTicker(time.Duration(job.Config.CheckpointInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
				slog.Error("Failed to save checkpoint", "job_id", jobID, "error", err)
			}
		}
	}
}

// saveCheckpoint saves a checkpoint of the job's current state.
func saveCheckpoint(jm *JobManager, checkpointStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if len(job.Point) == 0 {
		slog.Debug("Skipping checkpoint, no point yet", "job_id", jobID)
		return nil
	}

	state := job.Outcome
	if state == "" {
		state = opt.StateRunning
	}

	checkpoint := store.NewCheckpoint(jobID, job.Point, job.Value, job.GradNorm, job.InitialValue,
		job.Iterations, state, job.Config)
	if err := checkpointStore.SaveCheckpoint(jobID, checkpoint); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	slog.Info("Checkpoint saved",
		"job_id", jobID,
		"iteration", job.Iterations,
		"value", job.Value,
	)
	return nil
}
