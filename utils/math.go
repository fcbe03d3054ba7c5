package utils

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Matrix functions shared by the graph ops, the LSTM cells and the sampler.
// Vectors are (n x 1) column matrices throughout.

// RandomArray returns 'size' samples from U(-1/sqrt(v), 1/sqrt(v)).
// Same scale PyTorch uses for LSTMCell and Linear layers of fan v.
func RandomArray(size int, v float64, src rand.Source) []float64 {
	bound := 1.0 / math.Sqrt(v+1e-12)
	dist := distuv.Uniform{Min: -bound, Max: bound, Src: src}
	out := make([]float64, size)
	for i := range out {
		out[i] = dist.Rand()
	}
	return out
}

// DropoutMask returns n multipliers: 0 with probability p, 1/(1-p) otherwise.
func DropoutMask(n int, p float64, src rand.Source) []float64 {
	out := make([]float64, n)
	if p >= 1 {
		return out
	}
	keep := distuv.Bernoulli{P: 1 - p, Src: src}
	scale := 1.0 / (1.0 - p)
	for i := range out {
		out[i] = keep.Rand() * scale
	}
	return out
}

func OneHot(n, idx int) *mat.Dense {
	v := make([]float64, n)
	if idx >= 0 && idx < n {
		v[idx] = 1.0
	}
	return mat.NewDense(n, 1, v)
}

// Col copies a column vector out into a plain slice.
func Col(v mat.Matrix) []float64 {
	_, c := v.Dims()
	if c != 1 {
		panic("Col expects a (r x 1) column vector")
	}
	return mat.Col(nil, 0, v)
}

// ArgmaxCol returns the row of the largest entry; ties go to the lowest row.
func ArgmaxCol(v mat.Matrix) int {
	return floats.MaxIdx(Col(v))
}

// LogSoftmaxCol returns x - logsumexp(x) for a column vector.
func LogSoftmaxCol(v mat.Matrix) *mat.Dense {
	x := Col(v)
	lse := floats.LogSumExp(x)
	floats.AddConst(-lse, x)
	return mat.NewDense(len(x), 1, x)
}

// AllFinite reports whether every entry of every matrix is neither NaN nor Inf.
func AllFinite(ms ...*mat.Dense) bool {
	for _, m := range ms {
		if m == nil {
			continue
		}
		r, c := m.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				v := m.At(i, j)
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return false
				}
			}
		}
	}
	return true
}

func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
