// Package formulas provides the numeric building blocks shared by the KPI
// aggregation engine and the market price trend endpoints.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// MeanNonNil averages the non-nil values of a sparse metric series.
// Returns nil when no value is present, so callers never divide by zero and
// missing KPIs stay missing instead of collapsing to 0.
func MeanNonNil(values []*float64) *float64 {
	var present []float64
	for _, v := range values {
		if v != nil {
			present = append(present, *v)
		}
	}
	if len(present) == 0 {
		return nil
	}
	mean := stat.Mean(present, nil)
	return &mean
}

// Sum adds up a slice of float64 values.
func Sum(data []float64) float64 {
	total := 0.0
	for _, v := range data {
		total += v
	}
	return total
}

// Round rounds to the given number of decimal places.
// KPI weights report at 2 decimals, daily gains at 3.
func Round(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}

// RoundPtr rounds a nullable value in place, passing nil through.
func RoundPtr(value *float64, decimals int) *float64 {
	if value == nil {
		return nil
	}
	rounded := Round(*value, decimals)
	return &rounded
}

func isNaN(f float64) bool {
	return math.IsNaN(f)
}
