// Package linesearch implements Armijo backtracking along a descent direction.
package linesearch

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

const (
	// MinStep is the step floor. Search gives up shrinking once the step drops
	// below it and returns that step unchanged.
	MinStep = 1e-10

	// DegenerateStep is returned without any evaluation when the direction is
	// not a descent direction.
	DegenerateStep = 1e-6
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("linesearch: invalid config")

// Evaluator returns the objective value at a point.
type Evaluator interface {
	Value(x []float64) (float64, error)
}

// Config holds the backtracking parameters.
// Zero values are replaced with the defaults from DefaultConfig.
type Config struct {
	C           float64 `json:"c"`           // sufficient-decrease constant, default 0.01
	InitialStep float64 `json:"initialStep"` // first trial step, default 1.0
	Shrink      float64 `json:"shrink"`      // step multiplier after a rejection, default 0.5
}

// DefaultConfig returns c = 0.01, alpha_init = 1, rho = 0.5.
func DefaultConfig() Config {
	return Config{
		C:           0.01,
		InitialStep: 1.0,
		Shrink:      0.5,
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.C == 0 {
		c.C = def.C
	}
	if c.InitialStep == 0 {
		c.InitialStep = def.InitialStep
	}
	if c.Shrink == 0 {
		c.Shrink = def.Shrink
	}
	return c
}

// Validate reports whether the parameters describe a terminating search.
func (c Config) Validate() error {
	if c.C <= 0 || c.C >= 1 {
		return fmt.Errorf("%w: c must be in (0, 1), got %g", ErrInvalidConfig, c.C)
	}
	if c.InitialStep <= 0 {
		return fmt.Errorf("%w: initial step must be positive, got %g", ErrInvalidConfig, c.InitialStep)
	}
	if c.Shrink <= 0 || c.Shrink >= 1 {
		return fmt.Errorf("%w: shrink must be in (0, 1), got %g", ErrInvalidConfig, c.Shrink)
	}
	return nil
}

// Negligible reports whether a step returned by Search made no meaningful
// progress.
func Negligible(alpha float64) bool {
	return alpha <= MinStep
}

// Search returns a step length alpha > 0 along dir from x.
//
// If grad·dir >= 0 it returns DegenerateStep immediately. Otherwise it starts
// at cfg.InitialStep and multiplies by cfg.Shrink until the Armijo condition
//
//	f(x + alpha·dir) <= f(x) + c·alpha·(grad·dir)
//
// holds, or until alpha falls below MinStep, in which case that alpha is
// returned even though the condition was not met. Errors come only from the
// evaluator. cfg is used as given; call WithDefaults first for zero fields.
func Search(f Evaluator, x, grad, dir []float64, cfg Config) (float64, error) {
	slope := floats.Dot(grad, dir)
	if slope >= 0 {
		return DegenerateStep, nil
	}

	fx, err := f.Value(x)
	if err != nil {
		return 0, err
	}

	trial := make([]float64, len(x))
	alpha := cfg.InitialStep
	for {
		floats.AddScaledTo(trial, x, alpha, dir)
		ft, err := f.Value(trial)
		if err != nil {
			return 0, err
		}

		if ft <= fx+cfg.C*alpha*slope {
			return alpha, nil
		}

		alpha *= cfg.Shrink
		if alpha < MinStep {
			return alpha, nil
		}
	}
}
