package store

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/rosenopt/internal/linesearch"
	"github.com/cwbudde/rosenopt/internal/opt"
)

// JobConfig is the persisted configuration of one optimization run. It is
// shared by the CLI, the checkpoint store and the job server.
type JobConfig struct {
	Strategy      opt.Strategy      `json:"strategy"`
	InitialPoint  []float64         `json:"initialPoint"`
	Tolerance     float64           `json:"tolerance"`
	MaxIterations int               `json:"maxIterations"`
	LineSearch    linesearch.Config `json:"lineSearch"`

	// CheckpointInterval is the number of seconds between checkpoints of a
	// running server job. 0 disables periodic checkpoints.
	CheckpointInterval int `json:"checkpointInterval,omitempty"`
}

// WithDefaults fills zero-valued optimizer settings from opt.DefaultOptions.
func (c JobConfig) WithDefaults() JobConfig {
	o := c.Options().WithDefaults()
	c.Strategy = o.Strategy
	c.Tolerance = o.Tolerance
	c.MaxIterations = o.MaxIterations
	c.LineSearch = o.LineSearch
	return c
}

// Options converts the config to optimizer options without a reporter.
func (c JobConfig) Options() opt.Options {
	return opt.Options{
		Strategy:      c.Strategy,
		Tolerance:     c.Tolerance,
		MaxIterations: c.MaxIterations,
		LineSearch:    c.LineSearch,
	}
}

// Dim returns the problem dimension.
func (c JobConfig) Dim() int {
	return len(c.InitialPoint)
}

// Checkpoint is a saved optimization state.
//
// The optimizer keeps no state between iterations besides the current point,
// so a checkpoint is an exact resume point: continuing from Point with the
// remaining budget MaxIterations-Iteration produces the same iterates an
// uninterrupted run would have.
type Checkpoint struct {
	JobID string `json:"jobId"`

	// Point is the current iterate.
	Point []float64 `json:"point"`

	// Value is f(Point).
	Value float64 `json:"value"`

	// GradNorm is the last reported gradient norm.
	GradNorm float64 `json:"gradNorm"`

	// InitialValue is f(InitialPoint), kept for improvement reporting.
	InitialValue float64 `json:"initialValue"`

	// Iteration is the number of completed iterations.
	Iteration int `json:"iteration"`

	// State is the optimizer state when the checkpoint was taken.
	State opt.State `json:"state"`

	Timestamp time.Time `json:"timestamp"`

	Config JobConfig `json:"config"`
}

// CheckpointInfo is the listing view of a checkpoint.
type CheckpointInfo struct {
	JobID     string       `json:"jobId"`
	Strategy  opt.Strategy `json:"strategy"`
	Dim       int          `json:"dim"`
	Value     float64      `json:"value"`
	GradNorm  float64      `json:"gradNorm"`
	Iteration int          `json:"iteration"`
	State     opt.State    `json:"state"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewCheckpoint creates a checkpoint stamped with the current time.
func NewCheckpoint(jobID string, point []float64, value, gradNorm, initialValue float64, iteration int, state opt.State, config JobConfig) *Checkpoint {
	return &Checkpoint{
		JobID:        jobID,
		Point:        append([]float64(nil), point...),
		Value:        value,
		GradNorm:     gradNorm,
		InitialValue: initialValue,
		Iteration:    iteration,
		State:        state,
		Timestamp:    time.Now(),
		Config:       config,
	}
}

// ToInfo converts a full Checkpoint to CheckpointInfo.
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:     c.JobID,
		Strategy:  c.Config.Strategy,
		Dim:       len(c.Point),
		Value:     c.Value,
		GradNorm:  c.GradNorm,
		Iteration: c.Iteration,
		State:     c.State,
		Timestamp: c.Timestamp,
	}
}

// RemainingIterations returns the iteration budget left for a resumed run.
func (c *Checkpoint) RemainingIterations() int {
	left := c.Config.MaxIterations - c.Iteration
	if left < 0 {
		return 0
	}
	return left
}

// Validate checks if the checkpoint has valid data.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if len(c.Point) == 0 {
		return &ValidationError{Field: "Point", Reason: "cannot be empty"}
	}
	if len(c.Point)%2 != 0 {
		return &ValidationError{Field: "Point", Reason: "length must be even"}
	}
	for _, v := range c.Point {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: "Point", Reason: "must be finite"}
		}
	}
	if math.IsNaN(c.Value) || c.Value < 0 {
		return &ValidationError{Field: "Value", Reason: "must be a non-negative number"}
	}
	if math.IsNaN(c.GradNorm) || c.GradNorm < 0 {
		return &ValidationError{Field: "GradNorm", Reason: "must be a non-negative number"}
	}
	if c.Iteration < 0 {
		return &ValidationError{Field: "Iteration", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if _, err := opt.NewDirectionProvider(c.Config.Strategy); err != nil {
		return &ValidationError{Field: "Config.Strategy", Reason: fmt.Sprintf("unknown strategy %q", c.Config.Strategy)}
	}
	if c.Config.MaxIterations <= 0 {
		return &ValidationError{Field: "Config.MaxIterations", Reason: "must be positive"}
	}
	if c.Config.Dim() != len(c.Point) {
		return &ValidationError{
			Field:  "Point",
			Reason: fmt.Sprintf("length mismatch: expected %d coordinates, got %d", c.Config.Dim(), len(c.Point)),
		}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks if this checkpoint can be resumed with the given config.
func (c *Checkpoint) IsCompatible(config JobConfig) error {
	if c.Config.Strategy != config.Strategy {
		return &CompatibilityError{
			Field:    "Strategy",
			Expected: string(c.Config.Strategy),
			Actual:   string(config.Strategy),
		}
	}
	if c.Config.Dim() != config.Dim() {
		return &CompatibilityError{
			Field:    "Dim",
			Expected: fmt.Sprintf("%d", c.Config.Dim()),
			Actual:   fmt.Sprintf("%d", config.Dim()),
		}
	}
	return nil
}

// CompatibilityError represents a checkpoint compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
