package kpi

import (
	"fmt"

	"github.com/pastolab/herdtrack/pkg/formulas"
	"github.com/pastolab/herdtrack/pkg/temporal"
)

// Snapshot is the point-in-time KPI view of one animal. Nullable fields stay
// nil when the history cannot support them; callers render those as "N/A".
type Snapshot struct {
	AnimalID int64  `json:"animal_id"`
	EarTag   string `json:"ear_tag"`
	Lot      string `json:"lot"`
	Sex      string `json:"sex"`
	Status   Status `json:"status"`
	AsOf     string `json:"as_of"`

	CurrentAgeMonths          float64  `json:"current_age_months"`
	DaysOnFarm                int      `json:"days_on_farm"`
	AverageDailyGainKg        *float64 `json:"average_daily_gain_kg"`
	PeriodDailyGainKg         *float64 `json:"period_daily_gain_kg"`
	ForecastedCurrentWeightKg *float64 `json:"forecasted_current_weight_kg"`
	LastWeightKg              float64  `json:"last_weight_kg"`
	LastWeightingDate         string   `json:"last_weighting_date"`

	CurrentLocationID      *int64   `json:"current_location_id"`
	CurrentLocationName    *string  `json:"current_location_name"`
	CurrentSublocationID   *int64   `json:"current_sublocation_id"`
	CurrentSublocationName *string  `json:"current_sublocation_name"`
	CurrentDietType        *string  `json:"current_diet_type"`
	CurrentDietIntake      *float64 `json:"current_diet_intake"`

	ExitDate   *string  `json:"exit_date,omitempty"`
	SalePrice  *float64 `json:"sale_price,omitempty"`
	ProfitLoss *float64 `json:"profit_loss,omitempty"`
	DeathCause *string  `json:"death_cause,omitempty"`

	Warnings []Warning `json:"warnings,omitempty"`
}

// Compute derives the KPI snapshot for one animal as of the given date.
//
// Exited animals freeze at their exit date: when asOf falls on or after the
// exit, every derived value is computed against the exit date and the
// forecast is dropped. When asOf predates the exit the animal is reported as
// it was on that day, still active. Only truly malformed input (zero dates)
// returns an error, and the error is scoped to this animal alone.
func Compute(h History, asOf temporal.Date) (Snapshot, error) {
	if err := validate(h, asOf); err != nil {
		return Snapshot{}, err
	}

	status, exit, warnings := ResolveStatus(h)
	effectiveAsOf := asOf
	if exit != nil {
		if exit.Date.After(asOf) {
			// Historical view from before the exit happened.
			status, exit = StatusActive, nil
		} else {
			effectiveAsOf = exit.Date
		}
	}

	timeline := h.TimelineUpTo(effectiveAsOf)
	warnings = append(warnings, auditTimeline(h, exit)...)

	snap := Snapshot{
		AnimalID:         h.Animal.ID,
		EarTag:           h.Animal.EarTag,
		Lot:              h.Animal.Lot,
		Sex:              h.Animal.Sex,
		Status:           status,
		AsOf:             effectiveAsOf.String(),
		CurrentAgeMonths: formulas.Round(temporal.AgeInMonths(h.Animal.EntryAgeMonths, h.Animal.EntryDate, effectiveAsOf), 2),
		DaysOnFarm:       temporal.DaysBetween(h.Animal.EntryDate, effectiveAsOf),
		Warnings:         warnings,
	}

	snap.AverageDailyGainKg = formulas.RoundPtr(AccumulatedDailyGain(timeline), 3)
	snap.PeriodDailyGainKg = formulas.RoundPtr(PeriodDailyGain(timeline), 3)

	if len(timeline) > 0 {
		last := timeline[len(timeline)-1]
		snap.LastWeightKg = formulas.Round(last.WeightKg, 2)
		snap.LastWeightingDate = last.Date.String()
	} else {
		// Nothing weighed on or before asOf; fall back to the entry record.
		snap.LastWeightKg = formulas.Round(h.Animal.EntryWeightKg, 2)
		snap.LastWeightingDate = h.Animal.EntryDate.String()
	}

	if status == StatusActive {
		snap.ForecastedCurrentWeightKg = formulas.RoundPtr(ForecastWeight(timeline, effectiveAsOf), 2)
	}

	if loc := CurrentLocation(h.LocationChanges, effectiveAsOf); loc != nil {
		snap.CurrentLocationID = &loc.LocationID
		snap.CurrentLocationName = &loc.LocationName
		snap.CurrentSublocationID = loc.SublocationID
		snap.CurrentSublocationName = loc.SublocationName
	}
	if diet := CurrentDiet(h.DietChanges, effectiveAsOf); diet != nil {
		snap.CurrentDietType = &diet.DietType
		snap.CurrentDietIntake = diet.DailyIntakePct
	}

	if exit != nil {
		exitDate := exit.Date.String()
		snap.ExitDate = &exitDate
		if exit.Sale != nil {
			snap.SalePrice = &exit.Sale.SalePrice
			snap.ProfitLoss = ProfitLoss(exit.Sale, h.Animal.PurchasePrice)
		}
		if exit.Death != nil && exit.Death.Cause != "" {
			cause := exit.Death.Cause
			snap.DeathCause = &cause
		}
	}

	return snap, nil
}

// validate rejects histories the engine cannot reason about. Sparse data is
// fine; dateless events are not.
func validate(h History, asOf temporal.Date) error {
	if asOf.IsZero() {
		return fmt.Errorf("animal %s: as-of date is required", h.Animal.EarTag)
	}
	if h.Animal.EntryDate.IsZero() {
		return fmt.Errorf("animal %s: entry date is required", h.Animal.EarTag)
	}
	for _, w := range h.Weightings {
		if w.Date.IsZero() {
			return fmt.Errorf("animal %s: weighting %d has no date", h.Animal.EarTag, w.ID)
		}
	}
	for _, lc := range h.LocationChanges {
		if lc.Date.IsZero() {
			return fmt.Errorf("animal %s: location change %d has no date", h.Animal.EarTag, lc.ID)
		}
	}
	for _, dc := range h.DietChanges {
		if dc.Date.IsZero() {
			return fmt.Errorf("animal %s: diet change %d has no date", h.Animal.EarTag, dc.ID)
		}
	}
	if h.Sale != nil && h.Sale.Date.IsZero() {
		return fmt.Errorf("animal %s: sale has no date", h.Animal.EarTag)
	}
	if h.Death != nil && h.Death.Date.IsZero() {
		return fmt.Errorf("animal %s: death has no date", h.Animal.EarTag)
	}
	return nil
}

// auditTimeline scans the full (untruncated) weight timeline for
// inconsistencies worth surfacing. Findings never interrupt computation.
func auditTimeline(h History, exit *Exit) []Warning {
	var warnings []Warning
	timeline := h.WeightTimeline()

	for i, p := range timeline {
		if p.Source != SourceEntry && p.Date.Before(h.Animal.EntryDate) {
			warnings = append(warnings, warnf(WarnWeighingBeforeEntry, h.Animal.EarTag,
				"weight on %s predates entry %s", p.Date, h.Animal.EntryDate))
		}
		if i > 0 && p.WeightKg < timeline[i-1].WeightKg {
			warnings = append(warnings, warnf(WarnNegativeGain, h.Animal.EarTag,
				"weight dropped from %.2f to %.2f kg on %s", timeline[i-1].WeightKg, p.WeightKg, p.Date))
		}
		if exit != nil && p.Date.After(exit.Date) {
			warnings = append(warnings, warnf(WarnEventAfterExit, h.Animal.EarTag,
				"weight on %s recorded after exit %s", p.Date, exit.Date))
		}
	}

	return warnings
}

// BatchFailure pairs a malformed animal with the error that excluded it.
type BatchFailure struct {
	EarTag string `json:"ear_tag"`
	Error  string `json:"error"`
}

// BatchResult is the outcome of computing snapshots over a set of histories.
type BatchResult struct {
	Snapshots []Snapshot
	Failures  []BatchFailure
}

// ComputeBatch computes snapshots for many animals. Malformed histories land
// in Failures; they never block their peers.
func ComputeBatch(histories []History, asOf temporal.Date) BatchResult {
	result := BatchResult{Snapshots: make([]Snapshot, 0, len(histories))}
	for _, h := range histories {
		snap, err := Compute(h, asOf)
		if err != nil {
			result.Failures = append(result.Failures, BatchFailure{EarTag: h.Animal.EarTag, Error: err.Error()})
			continue
		}
		result.Snapshots = append(result.Snapshots, snap)
	}
	return result
}
