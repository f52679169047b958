package sarimax

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultPeriod is the seasonal period of hourly data with a daily cycle.
const DefaultPeriod = 24

// Range is an inclusive (min, max) search range.
type Range struct {
	Min, Max int
}

// ParseRange validates a 2-element (min, max) pair.
func ParseRange(name string, v []int) (Range, error) {
	if len(v) != 2 {
		return Range{}, fmt.Errorf("%w: %s must be a (min, max) pair, got %d elements", ErrInvalidOrder, name, len(v))
	}
	if v[0] < 0 || v[1] < v[0] {
		return Range{}, fmt.Errorf("%w: %s range %v", ErrInvalidOrder, name, v)
	}
	return Range{Min: v[0], Max: v[1]}, nil
}

// Ranges is the search space of AutoFit. A nil D or SD lets AutoFit choose
// the differencing order.
type Ranges struct {
	P, Q   Range
	SP, SQ Range
	D, SD  *int
	Period int
}

// Candidate records one evaluated order.
type Candidate struct {
	Order    Order
	Seasonal SeasonalOrder
	AIC      float64
	Err      error
}

// AutoFit fits every order in the search space and returns the model with the
// lowest AIC, along with all evaluated candidates.
func AutoFit(y []float64, exog mat.Matrix, r Ranges, opts Options) (*Model, []Candidate, error) {
	period := r.Period
	if period == 0 {
		period = DefaultPeriod
	}
	if period < 2 {
		return nil, nil, fmt.Errorf("%w: seasonal period %d", ErrInvalidOrder, period)
	}

	var sd int
	if r.SD != nil {
		sd = *r.SD
	} else {
		sd = chooseDifferencing(y, period)
	}
	var d int
	if r.D != nil {
		d = *r.D
	} else {
		d = chooseDifferencing(applyDiff(diffPolynomial(0, sd, period), y), 1)
	}

	var (
		best       *Model
		candidates []Candidate
		lastErr    error
	)
	for p := r.P.Min; p <= r.P.Max; p++ {
		for q := r.Q.Min; q <= r.Q.Max; q++ {
			for sp := r.SP.Min; sp <= r.SP.Max; sp++ {
				for sq := r.SQ.Min; sq <= r.SQ.Max; sq++ {
					order := Order{P: p, D: d, Q: q}
					seasonal := SeasonalOrder{P: sp, D: sd, Q: sq, S: period}
					m, err := Fit(y, exog, order, seasonal, opts)
					c := Candidate{Order: order, Seasonal: seasonal, AIC: math.Inf(1), Err: err}
					if err != nil {
						lastErr = err
					} else {
						c.AIC = m.AIC
						if best == nil || m.AIC < best.AIC {
							best = m
						}
					}
					candidates = append(candidates, c)
				}
			}
		}
	}

	if best == nil {
		if lastErr == nil {
			lastErr = fmt.Errorf("%w: empty search space", ErrInvalidOrder)
		}
		return nil, candidates, fmt.Errorf("no candidate order could be fitted: %w", lastErr)
	}
	return best, candidates, nil
}

// chooseDifferencing returns 1 when differencing at lag reduces the variance
// of x, 0 otherwise.
func chooseDifferencing(x []float64, lag int) int {
	if len(x) <= lag+2 {
		return 0
	}
	dx := make([]float64, len(x)-lag)
	for i := range dx {
		dx[i] = x[i+lag] - x[i]
	}
	if stat.Variance(dx, nil) < stat.Variance(x, nil) {
		return 1
	}
	return 0
}
