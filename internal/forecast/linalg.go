package forecast

import (
	"errors"
	"math"
)

var errSingular = errors.New("singular normal equations")

// solve returns x with a·x = b using Gauss-Jordan elimination with partial
// pivoting. a and b are modified in place.
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	for i := 0; i < n; i++ {
		pivot := i
		for k := i + 1; k < n; k++ {
			if math.Abs(a[k][i]) > math.Abs(a[pivot][i]) {
				pivot = k
			}
		}
		a[i], a[pivot] = a[pivot], a[i]
		b[i], b[pivot] = b[pivot], b[i]

		if math.Abs(a[i][i]) < 1e-12 {
			return nil, errSingular
		}

		p := a[i][i]
		for j := i; j < n; j++ {
			a[i][j] /= p
		}
		b[i] /= p

		for k := 0; k < n; k++ {
			if k == i || a[k][i] == 0 {
				continue
			}
			factor := a[k][i]
			for j := i; j < n; j++ {
				a[k][j] -= factor * a[i][j]
			}
			b[k] -= factor * b[i]
		}
	}
	return b, nil
}

// ridge solves min ||y - X·β||² + Σ penalty[j]·β[j]².
func ridge(x [][]float64, y, penalty []float64) ([]float64, error) {
	k := len(penalty)
	xtx := make([][]float64, k)
	for i := range xtx {
		xtx[i] = make([]float64, k)
		xtx[i][i] = penalty[i]
	}
	xty := make([]float64, k)

	for r, row := range x {
		for i := 0; i < k; i++ {
			if row[i] == 0 {
				continue
			}
			xty[i] += row[i] * y[r]
			for j := i; j < k; j++ {
				xtx[i][j] += row[i] * row[j]
			}
		}
	}
	for i := 0; i < k; i++ {
		for j := 0; j < i; j++ {
			xtx[i][j] = xtx[j][i]
		}
	}

	beta, err := solve(xtx, xty)
	if err != nil {
		return nil, err
	}
	for _, v := range beta {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("non-finite coefficient")
		}
	}
	return beta, nil
}

// normalQuantile returns z with P(Z <= z) = p for a standard normal Z
// (Abramowitz and Stegun 26.2.23, |error| < 4.5e-4).
func normalQuantile(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	if p < 0.5 {
		return -normalQuantile(1 - p)
	}

	t := math.Sqrt(-2 * math.Log(1-p))
	c0, c1, c2 := 2.515517, 0.802853, 0.010328
	d1, d2, d3 := 1.432788, 0.189269, 0.001308

	return t - (c0+c1*t+c2*t*t)/(1+d1*t+d2*t*t+d3*t*t*t)
}
