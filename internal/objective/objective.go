package objective

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidDimension is returned when a point does not have a positive, even length.
var ErrInvalidDimension = errors.New("objective: point length must be positive and even")

// Function is a twice differentiable objective over a real vector.
type Function interface {
	// Value returns f(x).
	Value(x []float64) (float64, error)

	// Gradient returns ∇f(x) as a freshly allocated slice.
	Gradient(x []float64) ([]float64, error)

	// Hessian returns ∇²f(x) as a freshly allocated symmetric matrix.
	Hessian(x []float64) (*mat.SymDense, error)
}

// BlockRosenbrock is the block-separable Rosenbrock function. Coordinates are
// split into adjacent pairs (x[2k], x[2k+1]) and every pair contributes an
// independent 2-D Rosenbrock term:
//
//	f(x) = Σ_k 100·(x[2k]² − x[2k+1])² + (x[2k] − 1)²
//
// The global minimum f = 0 is at x = (1, 1, ..., 1).
type BlockRosenbrock struct{}

// NewBlockRosenbrock returns the block-separable Rosenbrock objective.
func NewBlockRosenbrock() BlockRosenbrock {
	return BlockRosenbrock{}
}

func checkDim(x []float64) error {
	if len(x) == 0 || len(x)%2 != 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidDimension, len(x))
	}
	return nil
}

// Value evaluates the objective at x.
func (BlockRosenbrock) Value(x []float64) (float64, error) {
	if err := checkDim(x); err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < len(x); i += 2 {
		t := x[i]*x[i] - x[i+1]
		d := x[i] - 1
		sum += 100*t*t + d*d
	}
	return sum, nil
}

// Gradient evaluates the analytic gradient at x.
func (BlockRosenbrock) Gradient(x []float64) ([]float64, error) {
	if err := checkDim(x); err != nil {
		return nil, err
	}

	grad := make([]float64, len(x))
	for i := 0; i < len(x); i += 2 {
		t := x[i]*x[i] - x[i+1]
		grad[i] = 400*t*x[i] + 2*(x[i]-1)
		grad[i+1] = -200 * t
	}
	return grad, nil
}

// Hessian evaluates the analytic Hessian at x. The result is block diagonal
// with one 2×2 block per coordinate pair; every entry coupling two different
// pairs is exactly zero.
func (BlockRosenbrock) Hessian(x []float64) (*mat.SymDense, error) {
	if err := checkDim(x); err != nil {
		return nil, err
	}

	hess := mat.NewSymDense(len(x), nil)
	for i := 0; i < len(x); i += 2 {
		hess.SetSym(i, i, 1200*x[i]*x[i]-400*x[i+1]+2)
		hess.SetSym(i, i+1, -400*x[i])
		hess.SetSym(i+1, i+1, 200)
	}
	return hess, nil
}
