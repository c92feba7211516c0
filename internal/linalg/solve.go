// Package linalg holds the dense linear algebra used to compute Newton steps.
package linalg

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// PivotThreshold is the smallest pivot magnitude Solve accepts.
const PivotThreshold = 1e-10

var (
	// ErrDimensionMismatch is returned when A is empty or not square, or when
	// len(b) differs from the order of A.
	ErrDimensionMismatch = errors.New("linalg: dimension mismatch")

	// ErrSingularMatrix is returned when the largest available pivot in some
	// column is below PivotThreshold.
	ErrSingularMatrix = errors.New("linalg: matrix is singular to working precision")
)

// Solve returns x such that A·x = b using Gaussian elimination with partial
// pivoting on the augmented matrix [A | b]. Neither a nor b is modified.
//
// The solver makes no assumption about the structure of A.
func Solve(a mat.Matrix, b []float64) ([]float64, error) {
	n, c := a.Dims()
	if n == 0 || n != c || len(b) != n {
		return nil, fmt.Errorf("%w: A is %d×%d, b has length %d", ErrDimensionMismatch, n, c, len(b))
	}

	// Row-major augmented matrix, row i is aug[i*w : (i+1)*w].
	w := n + 1
	aug := make([]float64, n*w)
	for i := 0; i < n; i++ {
		row := aug[i*w : (i+1)*w]
		for j := 0; j < n; j++ {
			row[j] = a.At(i, j)
		}
		row[n] = b[i]
	}

	for i := 0; i < n; i++ {
		pivot := i
		for r := i + 1; r < n; r++ {
			if math.Abs(aug[r*w+i]) > math.Abs(aug[pivot*w+i]) {
				pivot = r
			}
		}

		if math.Abs(aug[pivot*w+i]) < PivotThreshold {
			return nil, fmt.Errorf("%w: pivot %g in column %d", ErrSingularMatrix, aug[pivot*w+i], i)
		}

		if pivot != i {
			swapRows(aug[i*w:(i+1)*w], aug[pivot*w:(pivot+1)*w])
		}

		prow := aug[i*w : (i+1)*w]
		for r := i + 1; r < n; r++ {
			row := aug[r*w : (r+1)*w]
			factor := row[i] / prow[i]
			if factor == 0 {
				continue
			}
			for k := i; k < w; k++ {
				row[k] -= factor * prow[k]
			}
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		row := aug[i*w : (i+1)*w]
		sum := row[n]
		for j := i + 1; j < n; j++ {
			sum -= row[j] * x[j]
		}
		x[i] = sum / row[i]
	}
	return x, nil
}

func swapRows(a, b []float64) {
	for k := range a {
		a[k], b[k] = b[k], a[k]
	}
}
