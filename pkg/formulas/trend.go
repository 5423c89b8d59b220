package formulas

import (
	"github.com/markcheno/go-talib"
)

// SMA calculates the Simple Moving Average over a market price series and
// returns the latest value, or nil when there is not enough data.
func SMA(prices []float64, period int) *float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}

	sma := talib.Sma(prices, period)
	if len(sma) > 0 && !isNaN(sma[len(sma)-1]) {
		result := sma[len(sma)-1]
		return &result
	}
	return nil
}

// EMA calculates the Exponential Moving Average over a market price series.
// Falls back to a plain mean when the series is shorter than the period.
func EMA(prices []float64, period int) *float64 {
	if period <= 0 || len(prices) == 0 {
		return nil
	}

	if len(prices) < period {
		mean := Mean(prices)
		return &mean
	}

	ema := talib.Ema(prices, period)
	if len(ema) > 0 && !isNaN(ema[len(ema)-1]) {
		result := ema[len(ema)-1]
		return &result
	}

	mean := Mean(prices[len(prices)-period:])
	return &mean
}

// TrendDirection classifies the latest price against its moving average.
// Returns "up" when the last price sits above the SMA, "down" below, and
// "flat" when they match or the series is too short to tell.
func TrendDirection(prices []float64, period int) string {
	sma := SMA(prices, period)
	if sma == nil {
		return "flat"
	}

	last := prices[len(prices)-1]
	switch {
	case last > *sma:
		return "up"
	case last < *sma:
		return "down"
	default:
		return "flat"
	}
}
