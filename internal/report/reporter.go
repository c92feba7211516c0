// Package report holds the observers of an optimization run: progress
// reporters, trace and checkpoint writers, and the wall-clock timer.
package report

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/cwbudde/rosenopt/internal/opt"
)

// Every forwards iteration 1, every n-th iteration and any iteration that
// fell back from the Newton step. n <= 1 forwards everything.
func Every(n int, r opt.Reporter) opt.Reporter {
	if n <= 1 {
		return r
	}
	return opt.ReporterFunc(func(p opt.Progress) {
		if p.Iteration == 1 || p.Iteration%n == 0 || p.Fallback != nil {
			r.Report(p)
		}
	})
}

// Multi reports to each non-nil reporter in order.
func Multi(reporters ...opt.Reporter) opt.Reporter {
	var rs []opt.Reporter
	for _, r := range reporters {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return opt.ReporterFunc(func(p opt.Progress) {
		for _, r := range rs {
			r.Report(p)
		}
	})
}

// Console prints one progress line per report.
type Console struct {
	w io.Writer
}

// NewConsole returns a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Report(p opt.Progress) {
	if p.Fallback != nil {
		fmt.Fprintf(c.w, "Iter %d: Newton step failed (%v), used steepest descent\n", p.Iteration, p.Fallback)
	}
	fmt.Fprintf(c.w, "Iter %d: f(x) = %.10g, ||grad|| = %.10g\n", p.Iteration, p.Value, p.GradNorm)
}

// Log reports progress through slog at debug level. Fallbacks are logged
// at warn level.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a Log using logger, or slog.Default() when logger is nil.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Report(p opt.Progress) {
	if p.Fallback != nil {
		l.logger.Warn("Newton step fell back to steepest descent",
			"iteration", p.Iteration,
			"error", p.Fallback,
		)
	}
	l.logger.Debug("Iteration",
		"iteration", p.Iteration,
		"value", p.Value,
		"grad_norm", p.GradNorm,
		"step", p.Step,
	)
}

// WriteSummary prints the final state of a run.
func WriteSummary(w io.Writer, res *opt.Result) {
	switch res.State {
	case opt.StateConverged:
		fmt.Fprintf(w, "\nConverged after %d iterations.\n", res.Iterations)
	default:
		fmt.Fprintf(w, "\nStopped after %d iterations (%s).\n", res.Iterations, res.State)
	}
	fmt.Fprint(w, "Final x:")
	for _, v := range res.Point {
		fmt.Fprintf(w, " %.10g", v)
	}
	fmt.Fprintf(w, "\nFinal f(x): %.10g\n", res.Value)
	fmt.Fprintf(w, "Final gradient norm: %.10g\n", res.GradNorm)
	if res.Fallbacks > 0 {
		fmt.Fprintf(w, "Newton fallbacks: %d\n", res.Fallbacks)
	}
}
