package report

import (
	"log/slog"

	"github.com/cwbudde/rosenopt/internal/opt"
	"github.com/cwbudde/rosenopt/internal/store"
)

// Checkpointer saves a checkpoint every Interval reported iterations.
type Checkpointer struct {
	store        store.Store
	jobID        string
	config       store.JobConfig
	initialValue float64
	offset       int
	interval     int
}

// NewCheckpointer returns a Checkpointer for jobID. offset is the number of
// iterations completed before this run started.
func NewCheckpointer(s store.Store, jobID string, config store.JobConfig, initialValue float64, offset, interval int) *Checkpointer {
	if interval <= 0 {
		interval = 1
	}
	return &Checkpointer{
		store:        s,
		jobID:        jobID,
		config:       config,
		initialValue: initialValue,
		offset:       offset,
		interval:     interval,
	}
}

func (c *Checkpointer) Report(p opt.Progress) {
	if p.Iteration%c.interval != 0 {
		return
	}
	checkpoint := store.NewCheckpoint(c.jobID, p.Point, p.Value, p.GradNorm, c.initialValue,
		p.Iteration+c.offset, opt.StateRunning, c.config)
	if err := c.store.SaveCheckpoint(c.jobID, checkpoint); err != nil {
		slog.Error("Failed to save checkpoint", "job_id", c.jobID, "iteration", checkpoint.Iteration, "error", err)
	}
}

// Final saves the terminal checkpoint of a run.
func (c *Checkpointer) Final(res *opt.Result) error {
	checkpoint := store.NewCheckpoint(c.jobID, res.Point, res.Value, res.GradNorm, c.initialValue,
		res.Iterations+c.offset, res.State, c.config)
	return c.store.SaveCheckpoint(c.jobID, checkpoint)
}
