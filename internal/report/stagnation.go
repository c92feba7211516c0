package report

import (
	"log/slog"
	"math"

	"github.com/cwbudde/rosenopt/internal/opt"
)

// StagnationConfig defines when a run counts as stagnating.
type StagnationConfig struct {
	// Patience is the number of consecutive reports without significant
	// improvement before the run is flagged.
	Patience int

	// Threshold is the minimum relative decrease of f(x) that counts as
	// progress: (last - value) / last.
	Threshold float64
}

// DefaultStagnationConfig flags a run after 50 reports that improve f(x) by
// less than 0.1% each.
func DefaultStagnationConfig() StagnationConfig {
	return StagnationConfig{
		Patience:  50,
		Threshold: 0.001,
	}
}

// Stagnation watches reported values and logs a warning once f(x) has not
// improved significantly for Patience reports. It never stops the run; the
// optimizer's own tolerance and budget decide that.
type Stagnation struct {
	config          StagnationConfig
	best            float64
	lastSignificant float64
	staleCount      int
	reports         int
	flagged         bool
}

// NewStagnation returns a Stagnation reporter. Zero fields take the defaults.
func NewStagnation(config StagnationConfig) *Stagnation {
	def := DefaultStagnationConfig()
	if config.Patience <= 0 {
		config.Patience = def.Patience
	}
	if config.Threshold <= 0 {
		config.Threshold = def.Threshold
	}
	return &Stagnation{
		config:          config,
		best:            math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

func (s *Stagnation) Report(p opt.Progress) {
	s.reports++
	if p.Value < s.best {
		s.best = p.Value
	}

	if s.reports == 1 {
		s.lastSignificant = p.Value
		return
	}

	// f >= 0, so a zero last value cannot improve further.
	improvement := 0.0
	if s.lastSignificant > 0 {
		improvement = (s.lastSignificant - p.Value) / s.lastSignificant
	}

	if improvement >= s.config.Threshold {
		s.lastSignificant = p.Value
		s.staleCount = 0
		return
	}

	s.staleCount++
	if s.staleCount >= s.config.Patience && !s.flagged {
		s.flagged = true
		slog.Warn("Optimization is stagnating",
			"iteration", p.Iteration,
			"stale_reports", s.staleCount,
			"best_value", s.best,
			"grad_norm", p.GradNorm,
		)
	}
}

// Stalled reports whether the run has been flagged.
func (s *Stagnation) Stalled() bool {
	return s.flagged
}

// Best returns the lowest reported f(x).
func (s *Stagnation) Best() float64 {
	return s.best
}

// StaleCount returns the number of reports since the last significant improvement.
func (s *Stagnation) StaleCount() int {
	return s.staleCount
}
