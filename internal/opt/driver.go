// Package opt drives unconstrained minimization with Newton or steepest-descent
// directions and an Armijo line search.
package opt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/rosenopt/internal/linalg"
	"github.com/cwbudde/rosenopt/internal/linesearch"
	"github.com/cwbudde/rosenopt/internal/objective"
)

// ErrInvalidOptions is returned when Options fail validation.
var ErrInvalidOptions = errors.New("opt: invalid options")

// Options configures Optimize.
// Zero values are replaced with the defaults for the chosen strategy.
type Options struct {
	Strategy      Strategy          `json:"strategy"`      // default newton
	Tolerance     float64           `json:"tolerance"`     // newton 1e-6, steepest descent 1e-7
	MaxIterations int               `json:"maxIterations"` // newton 1000, steepest descent 100000
	LineSearch    linesearch.Config `json:"lineSearch"`

	// Reporter is called after every iteration. Optional.
	Reporter Reporter `json:"-"`
}

// DefaultOptions returns the tolerance and iteration budget used for s.
func DefaultOptions(s Strategy) Options {
	o := Options{
		Strategy:   s,
		LineSearch: linesearch.DefaultConfig(),
	}
	switch s {
	case StrategySteepestDescent:
		o.Tolerance = 1e-7
		o.MaxIterations = 100000
	default:
		o.Tolerance = 1e-6
		o.MaxIterations = 1000
	}
	return o
}

// WithDefaults fills zero-valued fields.
func (o Options) WithDefaults() Options {
	if o.Strategy == "" {
		o.Strategy = StrategyNewton
	}
	def := DefaultOptions(o.Strategy)
	if o.Tolerance == 0 {
		o.Tolerance = def.Tolerance
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = def.MaxIterations
	}
	o.LineSearch = o.LineSearch.WithDefaults()
	return o
}

// Validate checks the options without evaluating anything.
func (o Options) Validate() error {
	if _, err := NewDirectionProvider(o.Strategy); err != nil {
		return err
	}
	if o.Tolerance < 0 {
		return fmt.Errorf("%w: tolerance must be non-negative, got %g", ErrInvalidOptions, o.Tolerance)
	}
	if o.MaxIterations <= 0 {
		return fmt.Errorf("%w: max iterations must be positive, got %d", ErrInvalidOptions, o.MaxIterations)
	}
	if err := o.LineSearch.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return nil
}

// Optimize minimizes fn starting from x0.
//
// Each iteration computes ∇f, stops with StateConverged when ‖∇f‖ < tolerance,
// asks the strategy's DirectionProvider for a direction, takes an Armijo step
// and stops with StateMaxIterExceeded once the iteration budget is used up.
//
// A singular Hessian in the Newton strategy is not fatal: the step falls back
// to −∇f, is counted in Result.Fallbacks, logged and passed to the reporter.
// Any other error, including an invalid point dimension, aborts the run with
// no result. ctx is checked once per iteration.
func Optimize(ctx context.Context, fn objective.Function, x0 []float64, opts Options) (*Result, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	provider, err := NewDirectionProvider(opts.Strategy)
	if err != nil {
		return nil, err
	}

	x := append([]float64(nil), x0...)
	res := &Result{
		Strategy: opts.Strategy,
		State:    StateRunning,
	}

	var gradNorm float64
	for res.State == StateRunning {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		grad, err := fn.Gradient(x)
		if err != nil {
			return nil, fmt.Errorf("gradient at iteration %d: %w", res.Iterations, err)
		}

		gradNorm = floats.Norm(grad, 2)
		if gradNorm < opts.Tolerance {
			res.State = StateConverged
			break
		}

		dir, err := provider.Direction(fn, x, grad)
		var fallback error
		if err != nil {
			if !errors.Is(err, linalg.ErrSingularMatrix) {
				return nil, fmt.Errorf("direction at iteration %d: %w", res.Iterations, err)
			}
			slog.Warn("Newton step unavailable, using steepest descent",
				"iteration", res.Iterations+1,
				"grad_norm", gradNorm,
				"error", err,
			)
			dir = negated(grad)
			fallback = err
			res.Fallbacks++
		}

		alpha, err := linesearch.Search(fn, x, grad, dir, opts.LineSearch)
		if err != nil {
			return nil, fmt.Errorf("line search at iteration %d: %w", res.Iterations, err)
		}
		if linesearch.Negligible(alpha) {
			res.Stalls++
			slog.Debug("Line search hit step floor", "iteration", res.Iterations+1, "step", alpha)
		}

		next := make([]float64, len(x))
		floats.AddScaledTo(next, x, alpha, dir)
		x = next
		res.Iterations++

		if opts.Reporter != nil {
			value, err := fn.Value(x)
			if err != nil {
				return nil, err
			}
			opts.Reporter.Report(Progress{
				Iteration: res.Iterations,
				Point:     x,
				Value:     value,
				GradNorm:  gradNorm,
				Step:      alpha,
				Fallback:  fallback,
			})
		}

		if res.Iterations >= opts.MaxIterations {
			res.State = StateMaxIterExceeded
		}
	}

	value, err := fn.Value(x)
	if err != nil {
		return nil, err
	}
	if res.State == StateMaxIterExceeded {
		grad, err := fn.Gradient(x)
		if err != nil {
			return nil, err
		}
		gradNorm = floats.Norm(grad, 2)
	}

	res.Point = x
	res.Value = value
	res.GradNorm = gradNorm

	slog.Debug("Optimization finished",
		"strategy", res.Strategy,
		"state", res.State,
		"iterations", res.Iterations,
		"value", res.Value,
		"grad_norm", res.GradNorm,
		"fallbacks", res.Fallbacks,
	)
	return res, nil
}
