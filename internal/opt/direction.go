package opt

import (
	"errors"
	"fmt"

	"github.com/cwbudde/rosenopt/internal/linalg"
	"github.com/cwbudde/rosenopt/internal/objective"
)

// ErrUnknownStrategy is returned for a strategy name with no direction provider.
var ErrUnknownStrategy = errors.New("opt: unknown strategy")

// Strategy selects how the search direction is computed.
type Strategy string

const (
	StrategyNewton          Strategy = "newton"
	StrategySteepestDescent Strategy = "steepest-descent"
)

// ParseStrategy accepts the canonical names plus a few short aliases.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "newton", "nm":
		return StrategyNewton, nil
	case "steepest-descent", "steepest", "sd", "gd":
		return StrategySteepestDescent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// DirectionProvider proposes a search direction at x given ∇f(x).
type DirectionProvider interface {
	Direction(fn objective.Function, x, grad []float64) ([]float64, error)
}

// Newton solves ∇²f(x)·d = −∇f(x). A singular Hessian is reported as
// linalg.ErrSingularMatrix and left to the caller to handle.
type Newton struct{}

func (Newton) Direction(fn objective.Function, x, grad []float64) ([]float64, error) {
	hess, err := fn.Hessian(x)
	if err != nil {
		return nil, err
	}
	return linalg.Solve(hess, negated(grad))
}

// SteepestDescent always proposes −∇f(x).
type SteepestDescent struct{}

func (SteepestDescent) Direction(_ objective.Function, _ []float64, grad []float64) ([]float64, error) {
	return negated(grad), nil
}

// NewDirectionProvider returns the provider for s.
func NewDirectionProvider(s Strategy) (DirectionProvider, error) {
	switch s {
	case StrategyNewton:
		return Newton{}, nil
	case StrategySteepestDescent:
		return SteepestDescent{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

func negated(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = -x
	}
	return out
}
