// Package linucb implements the per-item contextual linear bandit: ridge
// regression solved online via the Sherman-Morrison identity (§4.3).
package linucb

import (
	"math"

	"github.com/catengine/cat/internal/domain"
)

// D is the fixed context dimensionality (§4.4): 6 user + 5 item +
// 4 interaction features.
const D = 15

// DefaultAlpha is the default LinUCB exploration coefficient (§4.3).
const DefaultAlpha = 1.5

// DefaultLambda is the default ridge regularization strength (§4.3).
const DefaultLambda = 1.0

// Context is the canonical 15-dimensional feature vector (§4.4). Index
// order is load-bearing: weight vectors are stored by index.
type Context [D]float64

// Model is one item's LinUCB state: design matrix A, its inverse, the
// reward-weighted feature sum b, and the derived weight estimate theta.
//
// Invariants: A is symmetric positive-definite, AInv is its inverse to
// numerical tolerance, and every entry is finite.
type Model struct {
	A     [D][D]float64
	AInv  [D][D]float64
	B     [D]float64
	Theta [D]float64
	N     int32
}

// New returns a fresh model initialized to A = lambda*I, AInv = I/lambda,
// b = 0, theta = 0, n = 0.
func New(lambda float64) *Model {
	if lambda <= 0 {
		lambda = DefaultLambda
	}
	m := &Model{}
	for i := 0; i < D; i++ {
		m.A[i][i] = lambda
		m.AInv[i][i] = 1 / lambda
	}
	return m
}

// Predict returns the UCB score, mean mu, and uncertainty sigma for context
// x under exploration coefficient alpha:
//
//	mu    = x^T theta
//	sigma = sqrt(max(0, x^T A^-1 x))
//	UCB   = mu + alpha * sigma
func (m *Model) Predict(x Context, alpha float64) (ucbScore, mu, sigma float64) {
	mu = dot(x[:], m.Theta[:])
	variance := quadForm(m.AInv, x)
	sigma = math.Sqrt(math.Max(0, variance))
	return mu + alpha*sigma, mu, sigma
}

// Update incorporates one observation (x, r) via the Sherman-Morrison
// identity:
//
//	A_new    = A + x x^T
//	b_new    = b + r x
//	AInv_new = AInv - (AInv x)(AInv x)^T / (1 + x^T AInv x)
//	theta    = AInv_new b_new
//
// After the update, every entry of AInv_new and theta is re-validated for
// finiteness. If any is non-finite, the update is rejected, the model is
// left untouched, and domain.ErrNumericalInstability is returned — never
// extrapolating from a corrupted state.
func (m *Model) Update(x Context, r float64) error {
	nextA := m.A
	addOuter(&nextA, x, 1)

	nextB := m.B
	for i := 0; i < D; i++ {
		nextB[i] += r * x[i]
	}

	aInvX := matVec(m.AInv, x)
	denom := 1 + dot(x[:], aInvX[:])
	if denom == 0 {
		return domain.ErrNumericalInstability
	}

	nextAInv := m.AInv
	for i := 0; i < D; i++ {
		for j := 0; j < D; j++ {
			nextAInv[i][j] -= (aInvX[i] * aInvX[j]) / denom
		}
	}

	nextTheta := matVec(nextAInv, nextB)

	if !allFinite(nextAInv) || !finiteVec(nextTheta) {
		return domain.ErrNumericalInstability
	}

	m.A = nextA
	m.AInv = nextAInv
	m.B = nextB
	m.Theta = nextTheta
	m.N++
	return nil
}

// Validate checks that A * AInv stays within tolerance of the identity
// matrix (infinity norm), per the periodic-drift design note in spec §9.
func (m *Model) Validate(tolerance float64) error {
	product := matMul(m.A, m.AInv)
	var maxDiff float64
	for i := 0; i < D; i++ {
		for j := 0; j < D; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			diff := math.Abs(product[i][j] - want)
			if diff > maxDiff {
				maxDiff = diff
			}
		}
	}
	if maxDiff > tolerance {
		return domain.ErrMatrixDriftExceeded
	}
	return nil
}

// ─── Linear algebra helpers (fixed D x D, no general matrix library needed) ─

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func matVec(m [D][D]float64, x Context) [D]float64 {
	var out [D]float64
	for i := 0; i < D; i++ {
		var sum float64
		for j := 0; j < D; j++ {
			sum += m[i][j] * x[j]
		}
		out[i] = sum
	}
	return out
}

func quadForm(m [D][D]float64, x Context) float64 {
	v := matVec(m, x)
	return dot(x[:], v[:])
}

func addOuter(m *[D][D]float64, x Context, scale float64) {
	for i := 0; i < D; i++ {
		for j := 0; j < D; j++ {
			m[i][j] += scale * x[i] * x[j]
		}
	}
}

func matMul(a, b [D][D]float64) [D][D]float64 {
	var out [D][D]float64
	for i := 0; i < D; i++ {
		for j := 0; j < D; j++ {
			var sum float64
			for k := 0; k < D; k++ {
				sum += a[i][k] * b[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

func allFinite(m [D][D]float64) bool {
	for i := 0; i < D; i++ {
		for j := 0; j < D; j++ {
			if math.IsNaN(m[i][j]) || math.IsInf(m[i][j], 0) {
				return false
			}
		}
	}
	return true
}

func finiteVec(v [D]float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
