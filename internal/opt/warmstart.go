package opt

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/rosenopt/internal/objective"
)

// WarmStart runs a derivative-free search for fn over the box [-bound, bound]^dim
// and returns the best point found. Points fn rejects are scored +Inf.
func WarmStart(fn objective.Function, search Optimizer, dim int, bound float64) ([]float64, float64, error) {
	if dim <= 0 || dim%2 != 0 {
		return nil, 0, fmt.Errorf("%w: got %d", objective.ErrInvalidDimension, dim)
	}
	if bound <= 0 {
		return nil, 0, fmt.Errorf("%w: warm-start bound must be positive, got %g", ErrInvalidOptions, bound)
	}

	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range lower {
		lower[i] = -bound
		upper[i] = bound
	}

	eval := func(x []float64) float64 {
		v, err := fn.Value(x)
		if err != nil {
			return math.Inf(1)
		}
		return v
	}

	best, cost := search.Run(eval, lower, upper, dim)
	slog.Info("Warm start complete", "dim", dim, "bound", bound, "value", cost)
	return append([]float64(nil), best...), cost, nil
}
