package kpi

import (
	"github.com/pastolab/herdtrack/pkg/formulas"
	"github.com/pastolab/herdtrack/pkg/temporal"
)

// AccumulatedDailyGain computes the average daily gain in kg from the first
// timeline point (entry) to the latest one. Returns nil when fewer than two
// points exist or the elapsed span is zero days; division by zero never
// leaks as Inf or NaN.
func AccumulatedDailyGain(timeline []WeightPoint) *float64 {
	if len(timeline) < 2 {
		return nil
	}

	first := timeline[0]
	last := timeline[len(timeline)-1]
	days := temporal.DaysBetween(first.Date, last.Date)
	if days <= 0 {
		return nil
	}

	gain := (last.WeightKg - first.WeightKg) / float64(days)
	return &gain
}

// PeriodDailyGain computes the daily gain between the two most recent
// timeline points only. Same guards as AccumulatedDailyGain.
func PeriodDailyGain(timeline []WeightPoint) *float64 {
	if len(timeline) < 2 {
		return nil
	}

	prev := timeline[len(timeline)-2]
	last := timeline[len(timeline)-1]
	days := temporal.DaysBetween(prev.Date, last.Date)
	if days <= 0 {
		return nil
	}

	gain := (last.WeightKg - prev.WeightKg) / float64(days)
	return &gain
}

// ForecastWeight projects the latest known weight forward to asOf.
// The projection rate prefers the period gain, falls back to the accumulated
// gain, and with a single data point assumes zero gain so the forecast is
// simply the last known weight. An empty timeline cannot be forecast.
func ForecastWeight(timeline []WeightPoint, asOf temporal.Date) *float64 {
	if len(timeline) == 0 {
		return nil
	}

	last := timeline[len(timeline)-1]
	rate := 0.0
	if g := PeriodDailyGain(timeline); g != nil {
		rate = *g
	} else if g := AccumulatedDailyGain(timeline); g != nil {
		rate = *g
	}

	days := temporal.DaysBetween(last.Date, asOf)
	if days < 0 {
		days = 0
	}

	forecast := last.WeightKg + rate*float64(days)
	return &forecast
}

// WeightHistoryEntry is one row of the enriched weight history: the raw
// measurement plus the gains computed up to that point. Gains default to 0
// where undefined, matching how the history is rendered row by row.
type WeightHistoryEntry struct {
	Date           string  `json:"date"`
	WeightKg       float64 `json:"weight_kg"`
	GMDAccumulated float64 `json:"gmd_accumulated"`
	GMDPeriod      float64 `json:"gmd_period"`
	Source         string  `json:"source"`
}

// EnrichedWeightHistory walks the merged timeline and annotates every point
// with its accumulated gain (since entry) and period gain (since the
// previous point).
func EnrichedWeightHistory(h History) []WeightHistoryEntry {
	timeline := h.WeightTimeline()
	if len(timeline) == 0 {
		return nil
	}

	first := timeline[0]
	entries := make([]WeightHistoryEntry, 0, len(timeline))
	for i, p := range timeline {
		accumulated := 0.0
		if days := temporal.DaysBetween(first.Date, p.Date); days > 0 {
			accumulated = (p.WeightKg - first.WeightKg) / float64(days)
		}

		period := 0.0
		if i > 0 {
			prev := timeline[i-1]
			if days := temporal.DaysBetween(prev.Date, p.Date); days > 0 {
				period = (p.WeightKg - prev.WeightKg) / float64(days)
			}
		}

		entries = append(entries, WeightHistoryEntry{
			Date:           p.Date.String(),
			WeightKg:       formulas.Round(p.WeightKg, 2),
			GMDAccumulated: formulas.Round(accumulated, 3),
			GMDPeriod:      formulas.Round(period, 3),
			Source:         string(p.Source),
		})
	}

	return entries
}
