package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeHerd(t *testing.T) {
	snapshots := []Snapshot{
		{EarTag: "A-1", Sex: "M", CurrentAgeMonths: 12, AverageDailyGainKg: fptr(0.5), ForecastedCurrentWeightKg: fptr(360)},
		{EarTag: "A-2", Sex: "F", CurrentAgeMonths: 18, AverageDailyGainKg: fptr(0.7), ForecastedCurrentWeightKg: fptr(420)},
		{EarTag: "A-3", Sex: "F", CurrentAgeMonths: 24, AverageDailyGainKg: nil, ForecastedCurrentWeightKg: fptr(390)},
	}

	summary := SummarizeHerd(snapshots)

	assert.Equal(t, 3, summary.TotalAnimals)
	assert.Equal(t, 1, summary.Males)
	assert.Equal(t, 2, summary.Females)

	require.NotNil(t, summary.AvgAgeMonths)
	assert.InDelta(t, 18.0, *summary.AvgAgeMonths, 1e-9)

	// The nil gain is excluded from the denominator, not coerced to 0.
	require.NotNil(t, summary.AvgDailyGainKg)
	assert.InDelta(t, 0.6, *summary.AvgDailyGainKg, 1e-9)

	require.NotNil(t, summary.AvgForecastWeightKg)
	assert.InDelta(t, 390.0, *summary.AvgForecastWeightKg, 1e-9)
}

func TestSummarizeHerd_EmptySet(t *testing.T) {
	summary := SummarizeHerd(nil)

	assert.Equal(t, 0, summary.TotalAnimals)
	assert.Equal(t, 0, summary.Males)
	assert.Equal(t, 0, summary.Females)
	assert.Nil(t, summary.AvgAgeMonths)
	assert.Nil(t, summary.AvgDailyGainKg)
	assert.Nil(t, summary.AvgForecastWeightKg)
	assert.Nil(t, summary.WeightStdDevKg)
}

func TestSummarizeHerd_AggregationConsistency(t *testing.T) {
	// Herd mean age must equal the arithmetic mean over per-animal ages.
	var snapshots []Snapshot
	total := 0.0
	for i := 1; i <= 17; i++ {
		age := float64(6 + i%11)
		total += age
		snapshots = append(snapshots, Snapshot{Sex: "M", CurrentAgeMonths: age})
	}

	summary := SummarizeHerd(snapshots)
	require.NotNil(t, summary.AvgAgeMonths)
	assert.InDelta(t, total/17.0, *summary.AvgAgeMonths, 0.005) // summary rounds to 2 decimals
}

func TestSummarizeLot_ScopesByLotNumber(t *testing.T) {
	snapshots := []Snapshot{
		{EarTag: "A-1", Lot: "7", Sex: "M", CurrentAgeMonths: 12},
		{EarTag: "A-2", Lot: "7", Sex: "F", CurrentAgeMonths: 14},
		{EarTag: "A-3", Lot: "9", Sex: "M", CurrentAgeMonths: 30},
	}

	summary := SummarizeLot("7", snapshots)

	assert.Equal(t, "7", summary.Lot)
	assert.Equal(t, 2, summary.TotalAnimals)
	assert.Equal(t, 1, summary.Males)
	assert.Equal(t, 1, summary.Females)
	require.NotNil(t, summary.AvgAgeMonths)
	assert.InDelta(t, 13.0, *summary.AvgAgeMonths, 1e-9)
}

func TestSummarizeLocation_CapacityRate(t *testing.T) {
	agg := NewAggregator(450)

	// 40 UA forecasted over 50 hectares = 0.8 UA/ha.
	occupants := make([]Snapshot, 40)
	for i := range occupants {
		occupants[i] = Snapshot{
			LastWeightKg:              450,
			ForecastedCurrentWeightKg: fptr(450),
		}
	}

	area := 50.0
	summary := agg.SummarizeLocation(&area, occupants)

	assert.Equal(t, 40, summary.AnimalCount)
	require.NotNil(t, summary.CapacityRateForecastUAHa)
	assert.InDelta(t, 0.8, *summary.CapacityRateForecastUAHa, 1e-9)
	require.NotNil(t, summary.CapacityRateActualUAHa)
	assert.InDelta(t, 0.8, *summary.CapacityRateActualUAHa, 1e-9)
}

func TestSummarizeLocation_NoAreaMeansNoRate(t *testing.T) {
	agg := NewAggregator(0) // falls back to the 450 kg default

	occupants := []Snapshot{{LastWeightKg: 400, ForecastedCurrentWeightKg: fptr(430)}}

	summary := agg.SummarizeLocation(nil, occupants)
	assert.Equal(t, 1, summary.AnimalCount)
	assert.Nil(t, summary.CapacityRateActualUAHa)
	assert.Nil(t, summary.CapacityRateForecastUAHa)

	zero := 0.0
	summary = agg.SummarizeLocation(&zero, occupants)
	assert.Nil(t, summary.CapacityRateActualUAHa)
}

func TestSummarizeLocation_SublocationCountsAndFallback(t *testing.T) {
	agg := NewAggregator(450)

	occupants := []Snapshot{
		{LastWeightKg: 400, ForecastedCurrentWeightKg: fptr(430), CurrentSublocationID: iptr(1)},
		{LastWeightKg: 380, ForecastedCurrentWeightKg: fptr(410), CurrentSublocationID: iptr(1)},
		// No forecast: last weight stands in for the forecast total.
		{LastWeightKg: 500, CurrentSublocationID: iptr(2)},
		{LastWeightKg: 350, ForecastedCurrentWeightKg: fptr(365)}, // unassigned to a sublocation
	}

	area := 10.0
	summary := agg.SummarizeLocation(&area, occupants)

	assert.Equal(t, 4, summary.AnimalCount)
	assert.Equal(t, 2, summary.SublocationAnimalCounts[1])
	assert.Equal(t, 1, summary.SublocationAnimalCounts[2])
	assert.InDelta(t, 1630.0, summary.TotalActualWeightKg, 1e-9)
	assert.InDelta(t, 1705.0, summary.TotalForecastWeightKg, 1e-9)

	require.NotNil(t, summary.CapacityRateActualUAHa)
	assert.InDelta(t, 0.36, *summary.CapacityRateActualUAHa, 1e-9)   // 1630/450/10 rounded
	assert.InDelta(t, 0.38, *summary.CapacityRateForecastUAHa, 1e-9) // 1705/450/10 rounded
}

func TestSummarizeLocation_EmptyOccupants(t *testing.T) {
	agg := NewAggregator(450)
	area := 25.0

	summary := agg.SummarizeLocation(&area, nil)

	assert.Equal(t, 0, summary.AnimalCount)
	require.NotNil(t, summary.CapacityRateActualUAHa)
	assert.Equal(t, 0.0, *summary.CapacityRateActualUAHa)
}
