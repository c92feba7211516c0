package store

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cwbudde/rosenopt/internal/opt"
)

func TestCheckpoint_JSONSerialization(t *testing.T) {
	original := createTestCheckpoint("json-job")
	original.Timestamp = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	for _, key := range []string{"jobId", "point", "value", "gradNorm", "initialValue", "iteration", "state", "timestamp", "config"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("Missing JSON key %q", key)
		}
	}

	config := decoded["config"].(map[string]interface{})
	if config["strategy"] != "newton" {
		t.Errorf("Expected strategy newton, got %v", config["strategy"])
	}
	lineSearch := config["lineSearch"].(map[string]interface{})
	if lineSearch["c"] != 0.01 {
		t.Errorf("Expected lineSearch.c 0.01, got %v", lineSearch["c"])
	}
	if _, ok := config["checkpointInterval"]; ok {
		t.Error("checkpointInterval should be omitted when zero")
	}
}

func TestCheckpoint_Validate_Valid(t *testing.T) {
	if err := createTestCheckpoint("valid").Validate(); err != nil {
		t.Errorf("Expected valid checkpoint, got %v", err)
	}
}

func TestCheckpoint_Validate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Checkpoint)
		field  string
	}{
		{"empty job id", func(c *Checkpoint) { c.JobID = "" }, "JobID"},
		{"nil point", func(c *Checkpoint) { c.Point = nil }, "Point"},
		{"odd point", func(c *Checkpoint) { c.Point = []float64{1, 2, 3} }, "Point"},
		{"non-finite point", func(c *Checkpoint) { c.Point[0] = math.NaN() }, "Point"},
		{"negative value", func(c *Checkpoint) { c.Value = -1 }, "Value"},
		{"NaN grad norm", func(c *Checkpoint) { c.GradNorm = math.NaN() }, "GradNorm"},
		{"negative iteration", func(c *Checkpoint) { c.Iteration = -1 }, "Iteration"},
		{"zero timestamp", func(c *Checkpoint) { c.Timestamp = time.Time{} }, "Timestamp"},
		{"unknown strategy", func(c *Checkpoint) { c.Config.Strategy = "bfgs" }, "Config.Strategy"},
		{"zero budget", func(c *Checkpoint) { c.Config.MaxIterations = 0 }, "Config.MaxIterations"},
		{"dimension mismatch", func(c *Checkpoint) { c.Config.InitialPoint = []float64{-1.2, 1} }, "Point"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := createTestCheckpoint("job")
			tt.mutate(c)

			err := c.Validate()
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("Expected ValidationError, got %T: %v", err, err)
			}
			if validationErr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, validationErr.Field)
			}
		})
	}
}

func TestCheckpoint_IsCompatible(t *testing.T) {
	c := createTestCheckpoint("job")

	if err := c.IsCompatible(c.Config); err != nil {
		t.Errorf("Expected compatible, got %v", err)
	}

	other := c.Config
	other.Strategy = opt.StrategySteepestDescent
	var compatErr *CompatibilityError
	if err := c.IsCompatible(other); !errors.As(err, &compatErr) || compatErr.Field != "Strategy" {
		t.Errorf("Expected Strategy CompatibilityError, got %v", err)
	}

	other = c.Config
	other.InitialPoint = []float64{0, 0}
	if err := c.IsCompatible(other); !errors.As(err, &compatErr) || compatErr.Field != "Dim" {
		t.Errorf("Expected Dim CompatibilityError, got %v", err)
	}
}

func TestCheckpoint_RemainingIterations(t *testing.T) {
	c := createTestCheckpoint("job")
	c.Config.MaxIterations = 100
	c.Iteration = 30
	if got := c.RemainingIterations(); got != 70 {
		t.Errorf("Expected 70, got %d", got)
	}

	c.Iteration = 150
	if got := c.RemainingIterations(); got != 0 {
		t.Errorf("Expected 0, got %d", got)
	}
}

func TestCheckpointToInfo(t *testing.T) {
	c := createTestCheckpoint("test-job")
	info := c.ToInfo()

	if info.JobID != c.JobID {
		t.Errorf("JobID mismatch: expected %s, got %s", c.JobID, info.JobID)
	}
	if info.Value != c.Value {
		t.Errorf("Value mismatch: expected %f, got %f", c.Value, info.Value)
	}
	if info.Iteration != c.Iteration {
		t.Errorf("Iteration mismatch: expected %d, got %d", c.Iteration, info.Iteration)
	}
	if info.Strategy != c.Config.Strategy {
		t.Errorf("Strategy mismatch: expected %s, got %s", c.Config.Strategy, info.Strategy)
	}
	if info.Dim != 4 {
		t.Errorf("Expected dim 4, got %d", info.Dim)
	}
}

func TestNewCheckpoint(t *testing.T) {
	point := []float64{1, 1}
	config := JobConfig{Strategy: opt.StrategyNewton, InitialPoint: []float64{-1.2, 1}, MaxIterations: 10}

	before := time.Now()
	c := NewCheckpoint("job", point, 0, 1e-9, 24.2, 7, opt.StateConverged, config)

	if c.Timestamp.Before(before) {
		t.Error("Timestamp should be set to now")
	}
	if c.State != opt.StateConverged || c.Iteration != 7 || c.InitialValue != 24.2 {
		t.Errorf("Fields not set correctly: %+v", c)
	}

	point[0] = 42
	if c.Point[0] != 1 {
		t.Error("NewCheckpoint should copy the point")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Expected valid checkpoint, got %v", err)
	}
}

func TestJobConfig_WithDefaults(t *testing.T) {
	c := JobConfig{Strategy: opt.StrategySteepestDescent, InitialPoint: []float64{0, 0}}.WithDefaults()

	if c.Tolerance != 1e-7 || c.MaxIterations != 100000 {
		t.Errorf("Unexpected steepest-descent defaults: %+v", c)
	}
	if c.LineSearch.Shrink != 0.5 {
		t.Errorf("Expected default shrink 0.5, got %f", c.LineSearch.Shrink)
	}

	c = JobConfig{}.WithDefaults()
	if c.Strategy != opt.StrategyNewton || c.MaxIterations != 1000 {
		t.Errorf("Unexpected default config: %+v", c)
	}
}
