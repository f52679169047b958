// Package evaluation scores predictions against observed power.
package evaluation

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Bound is the largest absolute nRMSE or R² accepted as a sane score.
const Bound = 3.0

var (
	// ErrOutOfBounds is returned when a normalized score is absurd, usually
	// because the mean of the observed series is close to zero.
	ErrOutOfBounds = errors.New("metric out of bounds")
	// ErrLengthMismatch is returned when actual and predicted differ in length.
	ErrLengthMismatch = errors.New("length mismatch")
)

// Metric is a named scoring function.
type Metric func(actual, predicted []float64) (float64, error)

// Metrics maps metric names, as used in run configurations, to functions.
var Metrics = map[string]Metric{
	"mse":   MSE,
	"rmse":  RMSE,
	"nrmse": NRMSE,
	"r2":    R2,
}

// MSE returns the mean squared error rounded to 2 decimals.
func MSE(actual, predicted []float64) (float64, error) {
	if len(actual) != len(predicted) {
		return 0, fmt.Errorf("%w: %d actual vs %d predicted", ErrLengthMismatch, len(actual), len(predicted))
	}
	d := floats.Distance(actual, predicted, 2)
	return Round(d * d / float64(len(actual))), nil
}

// RMSE returns the square root of MSE rounded to 2 decimals.
func RMSE(actual, predicted []float64) (float64, error) {
	mse, err := MSE(actual, predicted)
	if err != nil {
		return 0, err
	}
	return Round(math.Sqrt(mse)), nil
}

// NRMSE returns RMSE divided by the mean of actual, rounded to 2 decimals.
func NRMSE(actual, predicted []float64) (float64, error) {
	rmse, err := RMSE(actual, predicted)
	if err != nil {
		return 0, err
	}
	return checkBounds("nrmse", Round(rmse/stat.Mean(actual, nil)))
}

// R2 returns the coefficient of determination rounded to 2 decimals.
func R2(actual, predicted []float64) (float64, error) {
	if len(actual) != len(predicted) {
		return 0, fmt.Errorf("%w: %d actual vs %d predicted", ErrLengthMismatch, len(actual), len(predicted))
	}
	return checkBounds("r2", Round(stat.RSquaredFrom(predicted, actual, nil)))
}

func checkBounds(name string, v float64) (float64, error) {
	if math.IsNaN(v) || math.Abs(v) > Bound {
		return v, fmt.Errorf("%w: %s = %v", ErrOutOfBounds, name, v)
	}
	return v, nil
}

// Round rounds half away from zero to 2 decimals. NaN and infinities are
// returned unchanged.
func Round(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
