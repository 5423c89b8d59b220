package kpi

import (
	"github.com/pastolab/herdtrack/pkg/formulas"
)

// DefaultAnimalUnitWeightKg is the live weight equivalent of one animal unit
// (UA), the standard cattle figure used for pasture capacity planning.
const DefaultAnimalUnitWeightKg = 450.0

// HerdSummary rolls a set of snapshots up into herd-level figures. Means
// cover only the animals that carry the metric; an empty herd reports zero
// counts and nil means, never a division by zero.
type HerdSummary struct {
	TotalAnimals        int      `json:"total_animals"`
	Males               int      `json:"number_of_males"`
	Females             int      `json:"number_of_females"`
	AvgAgeMonths        *float64 `json:"average_age_months"`
	AvgDailyGainKg      *float64 `json:"average_gmd_kg_day"`
	AvgForecastWeightKg *float64 `json:"average_forecasted_weight_kg"`
	WeightStdDevKg      *float64 `json:"forecasted_weight_std_dev_kg"`
}

// SummarizeHerd aggregates per-animal snapshots into a herd summary.
func SummarizeHerd(snapshots []Snapshot) HerdSummary {
	summary := HerdSummary{TotalAnimals: len(snapshots)}

	ages := make([]*float64, 0, len(snapshots))
	gains := make([]*float64, 0, len(snapshots))
	forecasts := make([]*float64, 0, len(snapshots))
	var forecastValues []float64

	for i := range snapshots {
		s := &snapshots[i]
		if s.Sex == "M" {
			summary.Males++
		} else if s.Sex == "F" {
			summary.Females++
		}

		age := s.CurrentAgeMonths
		ages = append(ages, &age)
		gains = append(gains, s.AverageDailyGainKg)
		forecasts = append(forecasts, s.ForecastedCurrentWeightKg)
		if s.ForecastedCurrentWeightKg != nil {
			forecastValues = append(forecastValues, *s.ForecastedCurrentWeightKg)
		}
	}

	summary.AvgAgeMonths = formulas.RoundPtr(formulas.MeanNonNil(ages), 2)
	summary.AvgDailyGainKg = formulas.RoundPtr(formulas.MeanNonNil(gains), 3)
	summary.AvgForecastWeightKg = formulas.RoundPtr(formulas.MeanNonNil(forecasts), 2)
	if len(forecastValues) > 1 {
		stddev := formulas.Round(formulas.StdDev(forecastValues), 2)
		summary.WeightStdDevKg = &stddev
	}

	return summary
}

// LotSummary is a herd summary scoped to one lot number.
type LotSummary struct {
	Lot string `json:"lot"`
	HerdSummary
}

// SummarizeLot aggregates only the snapshots belonging to the given lot.
func SummarizeLot(lot string, snapshots []Snapshot) LotSummary {
	scoped := make([]Snapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if s.Lot == lot {
			scoped = append(scoped, s)
		}
	}
	return LotSummary{Lot: lot, HerdSummary: SummarizeHerd(scoped)}
}

// LocationSummary describes the occupancy and stocking pressure of one
// location. Capacity rates are nil when the location has no usable area.
type LocationSummary struct {
	AnimalCount              int           `json:"animal_count"`
	SublocationAnimalCounts  map[int64]int `json:"sublocation_animal_counts,omitempty"`
	TotalActualWeightKg      float64       `json:"total_actual_weight_kg"`
	TotalForecastWeightKg    float64       `json:"total_forecasted_weight_kg"`
	CapacityRateActualUAHa   *float64      `json:"capacity_rate_actual_ua_ha"`
	CapacityRateForecastUAHa *float64      `json:"capacity_rate_forecasted_ua_ha"`
}

// Aggregator converts live weights into animal units for capacity planning.
type Aggregator struct {
	AnimalUnitWeightKg float64
}

// NewAggregator builds an aggregator; a zero or negative unit weight falls
// back to the 450 kg cattle default.
func NewAggregator(animalUnitWeightKg float64) Aggregator {
	if animalUnitWeightKg <= 0 {
		animalUnitWeightKg = DefaultAnimalUnitWeightKg
	}
	return Aggregator{AnimalUnitWeightKg: animalUnitWeightKg}
}

// SummarizeLocation aggregates the snapshots of the animals occupying one
// location. Actual capacity uses last known weights; forecasted capacity
// uses projected weights, falling back to the last weight when no forecast
// exists (exited occupants in historical views).
func (a Aggregator) SummarizeLocation(areaHectares *float64, occupants []Snapshot) LocationSummary {
	summary := LocationSummary{AnimalCount: len(occupants)}

	for i := range occupants {
		s := &occupants[i]
		summary.TotalActualWeightKg += s.LastWeightKg
		if s.ForecastedCurrentWeightKg != nil {
			summary.TotalForecastWeightKg += *s.ForecastedCurrentWeightKg
		} else {
			summary.TotalForecastWeightKg += s.LastWeightKg
		}
		if s.CurrentSublocationID != nil {
			if summary.SublocationAnimalCounts == nil {
				summary.SublocationAnimalCounts = make(map[int64]int)
			}
			summary.SublocationAnimalCounts[*s.CurrentSublocationID]++
		}
	}

	if areaHectares != nil && *areaHectares > 0 {
		actual := formulas.Round(summary.TotalActualWeightKg/a.AnimalUnitWeightKg / *areaHectares, 2)
		forecast := formulas.Round(summary.TotalForecastWeightKg/a.AnimalUnitWeightKg / *areaHectares, 2)
		summary.CapacityRateActualUAHa = &actual
		summary.CapacityRateForecastUAHa = &forecast
	}

	summary.TotalActualWeightKg = formulas.Round(summary.TotalActualWeightKg, 2)
	summary.TotalForecastWeightKg = formulas.Round(summary.TotalForecastWeightKg, 2)

	return summary
}
