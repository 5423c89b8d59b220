// Package kpi derives per-animal and per-location performance metrics from
// raw lifecycle event histories.
//
// The engine is purely functional: given the same ordered event history and
// as-of date it always produces the same snapshot. It performs no I/O and
// holds no state; the persistence layer assembles histories and hands them
// in, batch callers may fan out across animals freely.
package kpi

import (
	"sort"

	"github.com/pastolab/herdtrack/pkg/temporal"
)

// Animal holds the identity and entry record of a single animal.
// Identity fields are immutable after purchase; everything that changes is
// expressed as an event.
type Animal struct {
	ID             int64
	EarTag         string
	Lot            string
	Sex            string // "M" or "F"
	Race           string
	EntryDate      temporal.Date
	EntryAgeMonths float64
	EntryWeightKg  float64
	PurchasePrice  *float64
}

// WeightingEvent is a dedicated weight measurement.
type WeightingEvent struct {
	ID       int64
	Date     temporal.Date
	WeightKg float64
}

// LocationChangeEvent moves an animal to a location, optionally into a
// sublocation. A move may co-occur with a weighting.
type LocationChangeEvent struct {
	ID              int64
	Date            temporal.Date
	LocationID      int64
	LocationName    string
	SublocationID   *int64
	SublocationName *string
	WeightKg        *float64
}

// DietChangeEvent switches an animal's diet, optionally recording a weight.
type DietChangeEvent struct {
	ID             int64
	Date           temporal.Date
	DietType       string
	DailyIntakePct *float64
	WeightKg       *float64
}

// SanitaryProtocolEvent records an administrative health treatment.
// It never feeds numeric KPIs but belongs to the history.
type SanitaryProtocolEvent struct {
	ID            int64
	Date          temporal.Date
	ProtocolType  string
	ProductName   string
	Dosage        string
	InvoiceNumber string
}

// SaleEvent marks an animal's exit by sale.
type SaleEvent struct {
	ID           int64
	Date         temporal.Date
	SalePrice    float64
	ExitWeightKg *float64
}

// DeathEvent marks an animal's exit by death.
type DeathEvent struct {
	ID    int64
	Date  temporal.Date
	Cause string
}

// History is the read-only ordered view of one animal's lifecycle.
// Slices need not arrive sorted; the engine orders them on demand.
type History struct {
	Animal          Animal
	Weightings      []WeightingEvent
	LocationChanges []LocationChangeEvent
	DietChanges     []DietChangeEvent
	Protocols       []SanitaryProtocolEvent
	Sale            *SaleEvent
	Death           *DeathEvent
}

// WeightSource identifies which event kind contributed a weight point.
type WeightSource string

const (
	SourceEntry          WeightSource = "entry"
	SourceWeighting      WeightSource = "weighting"
	SourceLocationChange WeightSource = "location_change"
	SourceDietChange     WeightSource = "diet_change"
)

// WeightPoint is one entry in the merged chronological weight timeline.
type WeightPoint struct {
	Date     temporal.Date
	WeightKg float64
	Source   WeightSource
	seq      int64 // record id, same-date tie-break
}

// WeightTimeline merges every weight-bearing event into one chronologically
// ordered series: the entry weight, dedicated weightings, and location or
// diet changes that carried a weight. Same-date points order by record id so
// the most recently recorded one wins ties. Exact duplicates of the entry
// weight (seeding scripts write both) collapse into one point.
func (h History) WeightTimeline() []WeightPoint {
	points := make([]WeightPoint, 0, 1+len(h.Weightings)+len(h.LocationChanges)+len(h.DietChanges))
	points = append(points, WeightPoint{
		Date:     h.Animal.EntryDate,
		WeightKg: h.Animal.EntryWeightKg,
		Source:   SourceEntry,
		seq:      -1, // entry sorts before any same-date event
	})

	for _, w := range h.Weightings {
		points = append(points, WeightPoint{Date: w.Date, WeightKg: w.WeightKg, Source: SourceWeighting, seq: w.ID})
	}
	for _, lc := range h.LocationChanges {
		if lc.WeightKg != nil {
			points = append(points, WeightPoint{Date: lc.Date, WeightKg: *lc.WeightKg, Source: SourceLocationChange, seq: lc.ID})
		}
	}
	for _, dc := range h.DietChanges {
		if dc.WeightKg != nil {
			points = append(points, WeightPoint{Date: dc.Date, WeightKg: *dc.WeightKg, Source: SourceDietChange, seq: dc.ID})
		}
	}

	sort.SliceStable(points, func(i, j int) bool {
		if !points[i].Date.Equal(points[j].Date) {
			return points[i].Date.Before(points[j].Date)
		}
		return points[i].seq < points[j].seq
	})

	// Collapse re-recorded entry weights: a weighting on the entry date with
	// the same value is the same measurement, not a second data point.
	deduped := points[:1]
	for _, p := range points[1:] {
		prev := deduped[len(deduped)-1]
		if p.Date.Equal(prev.Date) && p.WeightKg == prev.WeightKg {
			continue
		}
		deduped = append(deduped, p)
	}

	return deduped
}

// TimelineUpTo truncates the merged weight timeline at asOf (inclusive).
func (h History) TimelineUpTo(asOf temporal.Date) []WeightPoint {
	timeline := h.WeightTimeline()
	cut := len(timeline)
	for i, p := range timeline {
		if p.Date.After(asOf) {
			cut = i
			break
		}
	}
	return timeline[:cut]
}
