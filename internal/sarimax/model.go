package sarimax

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Options controls numerical behaviour of a fit.
type Options struct {
	// Strict turns singular or ill-conditioned least-squares systems into
	// ErrIllConditioned instead of falling back to a ridge solve.
	Strict bool
}

// Model is a fitted SARIMAX model. There is no intercept.
type Model struct {
	Order    Order
	Seasonal SeasonalOrder

	AR   []float64
	SAR  []float64
	MA   []float64
	SMA  []float64
	Exog []float64

	Sigma2 float64
	AIC    float64
	NObs   int

	period int
	poly   []float64   // differencing polynomial, poly[0] == 1
	y      []float64   // training target
	xTail  [][]float64 // last len(poly)-1 raw exogenous rows
	w      []float64   // differenced target
	resid  []float64   // innovations aligned with w
}

// Fit estimates a model for y with optional exogenous regressors (one row per
// observation, nil when there are none).
//
// Estimation follows Hannan-Rissanen: a long autoregression on the differenced
// series gives innovation estimates, which then enter an ordinary least
// squares regression alongside the AR, seasonal AR and exogenous terms. The
// seasonal polynomials are combined additively.
func Fit(y []float64, exog mat.Matrix, order Order, seasonal SeasonalOrder, opts Options) (*Model, error) {
	nx := 0
	if exog != nil {
		r, c := exog.Dims()
		if r != len(y) {
			return nil, fmt.Errorf("%w: %d exogenous rows for %d observations", ErrExogShape, r, len(y))
		}
		nx = c
	}

	s := 0
	if seasonal.Active() {
		s = seasonal.S
	}
	m := &Model{
		Order:    order,
		Seasonal: seasonal,
		period:   s,
		poly:     diffPolynomial(order.D, seasonal.D, seasonal.S),
		y:        append([]float64(nil), y...),
	}
	k := len(m.poly) - 1
	if len(y) <= k+1 {
		return nil, fmt.Errorf("%w: %d observations, differencing needs more than %d", ErrInsufficientData, len(y), k+1)
	}

	m.w = applyDiff(m.poly, y)
	xd := make([][]float64, nx)
	for j := 0; j < nx; j++ {
		col := mat.Col(nil, j, exog)
		xd[j] = applyDiff(m.poly, col)
	}
	if nx > 0 {
		for i := len(y) - k; i < len(y); i++ {
			m.xTail = append(m.xTail, mat.Row(nil, i, exog))
		}
	}

	var err error
	start := 0
	m.resid = make([]float64, len(m.w))
	if order.Q > 0 || (s > 0 && seasonal.Q > 0) {
		m.resid, start, err = innovations(m.w, xd, order, seasonal, s, opts)
		if err != nil {
			return nil, fmt.Errorf("estimating innovations: %w", err)
		}
	}

	lags := m.regressorLags()
	start = max(start, lags.max())
	rows := len(m.w) - start
	nparams := lags.count() + nx
	if rows <= nparams {
		return nil, fmt.Errorf("%w: %d usable rows for %d parameters", ErrInsufficientData, rows, nparams)
	}

	target := mat.NewVecDense(rows, append([]float64(nil), m.w[start:]...))
	var coef []float64
	if nparams > 0 {
		X := mat.NewDense(rows, nparams, nil)
		for r := 0; r < rows; r++ {
			X.SetRow(r, m.regressors(r+start, m.w, m.resid, xd, r+start))
		}
		beta, err := leastSquares(X, target, opts.Strict)
		if err != nil {
			return nil, err
		}
		coef = beta.RawVector().Data
	}
	m.assign(coef, lags, nx)

	// Final innovations from the fitted equation.
	var rss float64
	for t := start; t < len(m.w); t++ {
		e := m.w[t] - dot(coef, m.regressors(t, m.w, m.resid, xd, t))
		m.resid[t] = e
		rss += e * e
	}

	m.NObs = rows
	m.Sigma2 = rss / float64(rows)
	m.AIC = float64(rows)*math.Log(math.Max(m.Sigma2, math.SmallestNonzeroFloat64)) + 2*float64(nparams+1)
	return m, nil
}

// Forecast returns h steps ahead. exog must hold h rows when the model was
// fitted with exogenous regressors and is ignored otherwise. Future
// innovations are zero.
func (m *Model) Forecast(h int, exog mat.Matrix) ([]float64, error) {
	if h <= 0 {
		return nil, fmt.Errorf("forecast horizon must be positive, got %d", h)
	}
	nx := len(m.Exog)
	xd := make([][]float64, nx)
	if nx > 0 {
		if exog == nil {
			return nil, fmt.Errorf("%w: model needs %d exogenous columns", ErrExogShape, nx)
		}
		r, c := exog.Dims()
		if r != h || c != nx {
			return nil, fmt.Errorf("%w: got %dx%d, want %dx%d", ErrExogShape, r, c, h, nx)
		}
		for j := 0; j < nx; j++ {
			col := make([]float64, 0, len(m.xTail)+h)
			for _, row := range m.xTail {
				col = append(col, row[j])
			}
			col = append(col, mat.Col(nil, j, exog)...)
			xd[j] = applyDiff(m.poly, col)
		}
	}

	n0 := len(m.w)
	w := append(append(make([]float64, 0, n0+h), m.w...), make([]float64, h)...)
	e := append(append(make([]float64, 0, n0+h), m.resid...), make([]float64, h)...)
	coef := m.coefficients()
	for step := 0; step < h; step++ {
		t := n0 + step
		w[t] = dot(coef, m.regressors(t, w, e, xd, step))
	}

	n := len(m.y)
	y := append(append(make([]float64, 0, n+h), m.y...), make([]float64, h)...)
	for step := 0; step < h; step++ {
		t := n + step
		v := w[n0+step]
		for j := 1; j < len(m.poly); j++ {
			v -= m.poly[j] * y[t-j]
		}
		y[t] = v
	}
	return y[n:], nil
}

type lagSet struct {
	ar, sar, ma, sma []int
}

func (l lagSet) count() int {
	return len(l.ar) + len(l.sar) + len(l.ma) + len(l.sma)
}

func (l lagSet) max() int {
	out := 0
	for _, set := range [][]int{l.ar, l.sar, l.ma, l.sma} {
		for _, v := range set {
			out = max(out, v)
		}
	}
	return out
}

func (m *Model) regressorLags() lagSet {
	var l lagSet
	for i := 1; i <= m.Order.P; i++ {
		l.ar = append(l.ar, i)
	}
	for i := 1; i <= m.Order.Q; i++ {
		l.ma = append(l.ma, i)
	}
	if m.period > 0 {
		for i := 1; i <= m.Seasonal.P; i++ {
			l.sar = append(l.sar, i*m.period)
		}
		for i := 1; i <= m.Seasonal.Q; i++ {
			l.sma = append(l.sma, i*m.period)
		}
	}
	return l
}

// regressors returns the design row for time t: AR lags, seasonal AR lags,
// exogenous values at row xrow, MA lags, seasonal MA lags.
func (m *Model) regressors(t int, w, e []float64, xd [][]float64, xrow int) []float64 {
	l := m.regressorLags()
	row := make([]float64, 0, l.count()+len(xd))
	for _, lag := range l.ar {
		row = append(row, at(w, t-lag))
	}
	for _, lag := range l.sar {
		row = append(row, at(w, t-lag))
	}
	for _, col := range xd {
		row = append(row, col[xrow])
	}
	for _, lag := range l.ma {
		row = append(row, at(e, t-lag))
	}
	for _, lag := range l.sma {
		row = append(row, at(e, t-lag))
	}
	return row
}

func (m *Model) assign(coef []float64, l lagSet, nx int) {
	take := func(n int) []float64 {
		out := append([]float64(nil), coef[:n]...)
		coef = coef[n:]
		return out
	}
	m.AR = take(len(l.ar))
	m.SAR = take(len(l.sar))
	m.Exog = take(nx)
	m.MA = take(len(l.ma))
	m.SMA = take(len(l.sma))
}

func (m *Model) coefficients() []float64 {
	out := make([]float64, 0, len(m.AR)+len(m.SAR)+len(m.Exog)+len(m.MA)+len(m.SMA))
	out = append(out, m.AR...)
	out = append(out, m.SAR...)
	out = append(out, m.Exog...)
	out = append(out, m.MA...)
	return append(out, m.SMA...)
}

// innovations fits a long autoregression and returns its residuals together
// with the first index at which they are defined.
func innovations(w []float64, xd [][]float64, order Order, seasonal SeasonalOrder, s int, opts Options) ([]float64, int, error) {
	var lags []int
	for i := 1; i <= max(order.P, order.Q)+2; i++ {
		lags = append(lags, i)
	}
	if s > 0 && (seasonal.P > 0 || seasonal.Q > 0) {
		for j := 1; j <= max(seasonal.P, seasonal.Q)+1; j++ {
			if j*s > lags[len(lags)-1] {
				lags = append(lags, j*s)
			}
		}
	}
	start := lags[len(lags)-1]
	rows := len(w) - start
	k := len(lags) + len(xd)
	if rows <= k {
		return nil, 0, fmt.Errorf("%w: %d rows for long autoregression with %d parameters", ErrInsufficientData, rows, k)
	}

	X := mat.NewDense(rows, k, nil)
	for r := 0; r < rows; r++ {
		t := r + start
		for j, lag := range lags {
			X.Set(r, j, w[t-lag])
		}
		for j, col := range xd {
			X.Set(r, len(lags)+j, col[t])
		}
	}
	target := mat.NewVecDense(rows, append([]float64(nil), w[start:]...))
	beta, err := leastSquares(X, target, opts.Strict)
	if err != nil {
		return nil, 0, err
	}

	var fitted mat.VecDense
	fitted.MulVec(X, beta)
	e := make([]float64, len(w))
	for r := 0; r < rows; r++ {
		e[r+start] = w[r+start] - fitted.AtVec(r)
	}
	return e, start, nil
}

// leastSquares solves min ||X b - y|| by QR. A singular or ill-conditioned
// system is an error in strict mode; otherwise it is solved again with a
// small ridge term.
func leastSquares(X *mat.Dense, y *mat.VecDense, strict bool) (*mat.VecDense, error) {
	var beta mat.VecDense
	err := beta.SolveVec(X, y)
	if err == nil {
		return &beta, nil
	}
	if strict {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, fmt.Errorf("%w: condition number %.3g", ErrIllConditioned, float64(cond))
		}
		return nil, fmt.Errorf("%w: %v", ErrIllConditioned, err)
	}
	return ridge(X, y)
}

func ridge(X *mat.Dense, y *mat.VecDense) (*mat.VecDense, error) {
	_, k := X.Dims()
	var xtx mat.SymDense
	xtx.SymOuterK(1, X.T())
	lambda := 1e-8*mat.Trace(&xtx)/float64(k) + 1e-12
	for i := 0; i < k; i++ {
		xtx.SetSym(i, i, xtx.At(i, i)+lambda)
	}

	var xty mat.VecDense
	xty.MulVec(X.T(), y)

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, fmt.Errorf("%w: ridge system is not positive definite", ErrIllConditioned)
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, err
		}
	}
	return &beta, nil
}

// diffPolynomial returns the coefficients of (1-B)^d (1-B^s)^D.
func diffPolynomial(d, D, s int) []float64 {
	poly := []float64{1}
	for i := 0; i < d; i++ {
		poly = polyMul(poly, []float64{1, -1})
	}
	if s > 0 {
		seasonal := make([]float64, s+1)
		seasonal[0], seasonal[s] = 1, -1
		for i := 0; i < D; i++ {
			poly = polyMul(poly, seasonal)
		}
	}
	return poly
}

func polyMul(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, x := range a {
		for j, y := range b {
			out[i+j] += x * y
		}
	}
	return out
}

// applyDiff applies the differencing polynomial; the result is shorter than x
// by len(poly)-1.
func applyDiff(poly, x []float64) []float64 {
	k := len(poly) - 1
	if len(x) <= k {
		return nil
	}
	out := make([]float64, len(x)-k)
	for t := k; t < len(x); t++ {
		var v float64
		for j, c := range poly {
			v += c * x[t-j]
		}
		out[t-k] = v
	}
	return out
}

func at(x []float64, i int) float64 {
	if i < 0 || i >= len(x) {
		return 0
	}
	return x[i]
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
