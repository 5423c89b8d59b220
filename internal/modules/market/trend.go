package market

import (
	"fmt"

	"github.com/pastolab/herdtrack/pkg/formulas"
)

// DefaultTrendPeriod is the moving-average window used when the caller
// does not ask for one.
const DefaultTrendPeriod = 30

// TrendReport describes the recent movement of one price series.
type TrendReport struct {
	Series    string   `json:"series"`
	Period    int      `json:"period"`
	Points    int      `json:"points"`
	LastPrice *float64 `json:"last_price"`
	SMA       *float64 `json:"sma"`
	EMA       *float64 `json:"ema"`
	Direction string   `json:"direction"`
}

// Trend computes moving averages and direction for the sale or purchase
// price series. An empty series name defaults to sale prices.
func (s *Store) Trend(series string, period int) (*TrendReport, error) {
	if series == "" {
		series = "sale"
	}
	if series != "sale" && series != "purchase" {
		return nil, fmt.Errorf("unknown price series %q", series)
	}
	if period <= 0 {
		period = DefaultTrendPeriod
	}

	points := s.All()
	prices := make([]float64, 0, len(points))
	for _, p := range points {
		if series == "sale" {
			prices = append(prices, p.SalePrice)
		} else {
			prices = append(prices, p.PurchasePrice)
		}
	}

	report := &TrendReport{
		Series:    series,
		Period:    period,
		Points:    len(prices),
		SMA:       formulas.RoundPtr(formulas.SMA(prices, period), 2),
		EMA:       formulas.RoundPtr(formulas.EMA(prices, period), 2),
		Direction: formulas.TrendDirection(prices, period),
	}
	if len(prices) > 0 {
		last := formulas.Round(prices[len(prices)-1], 2)
		report.LastPrice = &last
	}
	return report, nil
}
