// Package svr implements epsilon-insensitive support vector regression with
// kernels.
package svr

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrInvalidParameter is returned for unusable hyperparameters or shapes.
var ErrInvalidParameter = errors.New("invalid svr parameter")

// Kernel names a kernel function.
type Kernel string

const (
	RBF     Kernel = "rbf"
	Linear  Kernel = "linear"
	Poly    Kernel = "poly"
	Sigmoid Kernel = "sigmoid"
)

// Params are the regression hyperparameters.
type Params struct {
	Kernel  Kernel
	C       float64
	Gamma   float64
	Epsilon float64
	Degree  int
	Coef0   float64

	// Tolerance stops the solver once no coordinate moves the fit by more
	// than this amount in a full pass.
	Tolerance float64
	MaxIter   int
}

// DefaultParams returns rbf with C=1e3, gamma=0.1 and epsilon=0.1.
func DefaultParams() Params {
	return Params{
		Kernel:    RBF,
		C:         1e3,
		Gamma:     0.1,
		Epsilon:   0.1,
		Degree:    3,
		Tolerance: 1e-4,
		MaxIter:   10000,
	}
}

// Validate checks the parameters.
func (p Params) Validate() error {
	switch p.Kernel {
	case RBF, Linear, Poly, Sigmoid:
	default:
		return fmt.Errorf("%w: unknown kernel %q", ErrInvalidParameter, p.Kernel)
	}
	if p.C <= 0 {
		return fmt.Errorf("%w: C must be positive, got %v", ErrInvalidParameter, p.C)
	}
	if p.Epsilon < 0 {
		return fmt.Errorf("%w: epsilon must be non-negative, got %v", ErrInvalidParameter, p.Epsilon)
	}
	if p.Kernel != Linear && p.Gamma <= 0 {
		return fmt.Errorf("%w: gamma must be positive, got %v", ErrInvalidParameter, p.Gamma)
	}
	if p.Kernel == Poly && p.Degree < 1 {
		return fmt.Errorf("%w: degree must be at least 1, got %d", ErrInvalidParameter, p.Degree)
	}
	if p.MaxIter <= 0 {
		return fmt.Errorf("%w: max iterations must be positive, got %d", ErrInvalidParameter, p.MaxIter)
	}
	return nil
}

func (p Params) eval(a, b []float64) float64 {
	switch p.Kernel {
	case Linear:
		return floats.Dot(a, b)
	case Poly:
		return math.Pow(p.Gamma*floats.Dot(a, b)+p.Coef0, float64(p.Degree))
	case Sigmoid:
		return math.Tanh(p.Gamma*floats.Dot(a, b) + p.Coef0)
	default:
		d := floats.Distance(a, b, 2)
		return math.Exp(-p.Gamma * d * d)
	}
}

// Model is a fitted regressor. The intercept is absorbed into the kernel, so
// f(x) = sum_i coef_i * (k(sv_i, x) + 1).
type Model struct {
	params  Params
	support [][]float64
	coef    []float64

	Iterations int
	Converged  bool
}

// Fit trains on the rows of X against targets y.
//
// The dual problem min 1/2 b'Qb - y'b + eps*|b|_1 subject to |b_i| <= C, with
// Q = K + 1, is solved by cyclic coordinate descent. Each coordinate update
// is a soft threshold followed by clipping to the box.
func Fit(X mat.Matrix, y []float64, p Params) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	if n == 0 || n != len(y) {
		return nil, fmt.Errorf("%w: %d rows for %d targets", ErrInvalidParameter, n, len(y))
	}

	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
	}
	q := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			q.SetSym(i, j, p.eval(rows[i], rows[j])+1)
		}
	}

	beta := make([]float64, n)
	f := make([]float64, n) // f = Q beta
	m := &Model{params: p}
	for m.Iterations < p.MaxIter {
		m.Iterations++
		var maxChange float64
		for i := 0; i < n; i++ {
			qii := q.At(i, i)
			if qii <= 0 {
				continue
			}
			z := beta[i] - (f[i]-y[i])/qii
			nb := softThreshold(z, p.Epsilon/qii)
			nb = math.Max(-p.C, math.Min(p.C, nb))
			d := nb - beta[i]
			if d == 0 {
				continue
			}
			beta[i] = nb
			for j := 0; j < n; j++ {
				f[j] += d * q.At(i, j)
			}
			maxChange = math.Max(maxChange, math.Abs(d)*qii)
		}
		if maxChange < p.Tolerance {
			m.Converged = true
			break
		}
	}

	for i, b := range beta {
		if b != 0 {
			m.support = append(m.support, rows[i])
			m.coef = append(m.coef, b)
		}
	}
	return m, nil
}

// Predict evaluates the regressor on the rows of X.
func (m *Model) Predict(X mat.Matrix) ([]float64, error) {
	n, c := X.Dims()
	if len(m.support) > 0 && c != len(m.support[0]) {
		return nil, fmt.Errorf("%w: %d features, model has %d", ErrInvalidParameter, c, len(m.support[0]))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		x := mat.Row(nil, i, X)
		var v float64
		for j, sv := range m.support {
			v += m.coef[j] * (m.params.eval(sv, x) + 1)
		}
		out[i] = v
	}
	return out, nil
}

// SupportVectors returns the number of training rows with non-zero weight.
func (m *Model) SupportVectors() int {
	return len(m.support)
}

// Bias returns the intercept of the decision function.
func (m *Model) Bias() float64 {
	return floats.Sum(m.coef)
}

func softThreshold(z, t float64) float64 {
	switch {
	case z > t:
		return z - t
	case z < -t:
		return z + t
	default:
		return 0
	}
}
