// Package sarimax fits seasonal autoregressive moving-average models with
// exogenous regressors by conditional least squares.
package sarimax

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOrder is returned for malformed order tuples.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrInsufficientData is returned when the series is too short for the order.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrIllConditioned is returned in strict mode when a least-squares system
	// is singular or numerically unstable.
	ErrIllConditioned = errors.New("ill-conditioned least squares")
	// ErrExogShape is returned when exogenous data does not match the model.
	ErrExogShape = errors.New("exogenous shape mismatch")
)

// Order is the non-seasonal (p, d, q) order.
type Order struct {
	P, D, Q int
}

func (o Order) String() string {
	return fmt.Sprintf("(%d,%d,%d)", o.P, o.D, o.Q)
}

// SeasonalOrder is the seasonal (P, D, Q, s) order.
type SeasonalOrder struct {
	P, D, Q, S int
}

func (o SeasonalOrder) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", o.P, o.D, o.Q, o.S)
}

// Active reports whether any seasonal term is set.
func (o SeasonalOrder) Active() bool {
	return o.P > 0 || o.D > 0 || o.Q > 0
}

// ParseOrder validates a 3-element (p, d, q) tuple.
func ParseOrder(v []int) (Order, error) {
	if len(v) != 3 {
		return Order{}, fmt.Errorf("%w: order must have 3 elements (p, d, q), got %d", ErrInvalidOrder, len(v))
	}
	for _, x := range v {
		if x < 0 {
			return Order{}, fmt.Errorf("%w: negative value in order %v", ErrInvalidOrder, v)
		}
	}
	return Order{P: v[0], D: v[1], Q: v[2]}, nil
}

// ParseSeasonalOrder validates a 4-element (P, D, Q, s) tuple. A nil or empty
// slice means no seasonal component.
func ParseSeasonalOrder(v []int) (SeasonalOrder, error) {
	if len(v) == 0 {
		return SeasonalOrder{}, nil
	}
	if len(v) != 4 {
		return SeasonalOrder{}, fmt.Errorf("%w: seasonal order must have 4 elements (P, D, Q, s), got %d", ErrInvalidOrder, len(v))
	}
	for _, x := range v {
		if x < 0 {
			return SeasonalOrder{}, fmt.Errorf("%w: negative value in seasonal order %v", ErrInvalidOrder, v)
		}
	}
	o := SeasonalOrder{P: v[0], D: v[1], Q: v[2], S: v[3]}
	if o.Active() && o.S < 2 {
		return SeasonalOrder{}, fmt.Errorf("%w: seasonal period must be at least 2, got %d", ErrInvalidOrder, o.S)
	}
	return o, nil
}
