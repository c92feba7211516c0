package objective

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// samplePoints returns deterministic even-length points in [-2, 2]^n.
func samplePoints(t *testing.T) [][]float64 {
	t.Helper()

	rng := rand.New(rand.NewSource(7))
	points := [][]float64{
		{-1.2, 1.0},
		{1, 1},
		{0, 0},
		{1, 1, -1.2, 1, 0.5, -0.3},
	}
	for _, n := range []int{2, 4, 8} {
		for k := 0; k < 5; k++ {
			x := make([]float64, n)
			for i := range x {
				x[i] = rng.Float64()*4 - 2
			}
			points = append(points, x)
		}
	}
	return points
}

func valueFunc(t *testing.T, f Function) func([]float64) float64 {
	return func(x []float64) float64 {
		v, err := f.Value(x)
		require.NoError(t, err)
		return v
	}
}

func TestBlockRosenbrock_Value(t *testing.T) {
	f := NewBlockRosenbrock()

	tests := []struct {
		name string
		x    []float64
		want float64
	}{
		{"minimum", []float64{1, 1}, 0},
		{"origin", []float64{0, 0}, 1},
		{"classic start", []float64{-1.2, 1.0}, 24.2},
		{"two blocks", []float64{1, 1, 0, 0}, 1},
		{"blocks are independent", []float64{-1.2, 1.0, -1.2, 1.0}, 48.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Value(tt.x)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestBlockRosenbrock_GradientMatchesFiniteDifference(t *testing.T) {
	f := NewBlockRosenbrock()
	settings := &fd.Settings{Formula: fd.Central}

	for _, x := range samplePoints(t) {
		grad, err := f.Gradient(x)
		require.NoError(t, err)
		require.Len(t, grad, len(x))

		numeric := fd.Gradient(nil, valueFunc(t, f), x, settings)
		for i := range grad {
			tol := 1e-5 * math.Max(1, math.Abs(numeric[i]))
			assert.InDelta(t, numeric[i], grad[i], tol, "x=%v component %d", x, i)
		}
	}
}

func TestBlockRosenbrock_GradientZeroAtMinimum(t *testing.T) {
	grad, err := NewBlockRosenbrock().Gradient([]float64{1, 1, 1, 1})
	require.NoError(t, err)
	for _, g := range grad {
		assert.Equal(t, 0.0, g)
	}
}

func TestBlockRosenbrock_HessianMatchesFiniteDifference(t *testing.T) {
	f := NewBlockRosenbrock()

	for _, x := range samplePoints(t) {
		hess, err := f.Hessian(x)
		require.NoError(t, err)

		n := len(x)
		numeric := mat.NewSymDense(n, nil)
		fd.Hessian(numeric, valueFunc(t, f), x, nil)

		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				want := numeric.At(i, j)
				tol := 1e-3 * math.Max(1, math.Abs(want))
				assert.InDelta(t, want, hess.At(i, j), tol, "x=%v entry (%d,%d)", x, i, j)
			}
		}
	}
}

func TestBlockRosenbrock_HessianSymmetricAndBlockDiagonal(t *testing.T) {
	f := NewBlockRosenbrock()

	for _, x := range samplePoints(t) {
		hess, err := f.Hessian(x)
		require.NoError(t, err)

		n := len(x)
		r, c := hess.Dims()
		require.Equal(t, n, r)
		require.Equal(t, n, c)

		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				assert.Equal(t, hess.At(i, j), hess.At(j, i))
				if i/2 != j/2 {
					assert.Zero(t, hess.At(i, j), "entry (%d,%d) couples different blocks", i, j)
				}
			}
		}
	}
}

func TestBlockRosenbrock_HessianEntries(t *testing.T) {
	hess, err := NewBlockRosenbrock().Hessian([]float64{-1.2, 1.0})
	require.NoError(t, err)

	assert.InDelta(t, 1200*1.44-400+2, hess.At(0, 0), 1e-9)
	assert.InDelta(t, 480.0, hess.At(0, 1), 1e-9)
	assert.InDelta(t, 200.0, hess.At(1, 1), 1e-9)
}

func TestBlockRosenbrock_InvalidDimension(t *testing.T) {
	f := NewBlockRosenbrock()

	for _, x := range [][]float64{{1, 2, 3}, {1}, {}, nil} {
		_, err := f.Value(x)
		assert.ErrorIs(t, err, ErrInvalidDimension)

		_, err = f.Gradient(x)
		assert.ErrorIs(t, err, ErrInvalidDimension)

		_, err = f.Hessian(x)
		assert.ErrorIs(t, err, ErrInvalidDimension)
	}
}

func TestBlockRosenbrock_DoesNotMutateInput(t *testing.T) {
	f := NewBlockRosenbrock()
	x := []float64{-1.2, 1.0, 0.3, 0.7}
	orig := append([]float64(nil), x...)

	_, _ = f.Value(x)
	_, _ = f.Gradient(x)
	_, _ = f.Hessian(x)

	assert.Equal(t, orig, x)
}
