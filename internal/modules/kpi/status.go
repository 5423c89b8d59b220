package kpi

import "github.com/pastolab/herdtrack/pkg/temporal"

// Status is an animal's lifecycle state. Transitions are one-way: an animal
// starts Active and terminates as Sold or Dead, never both.
type Status string

const (
	StatusActive Status = "Active"
	StatusSold   Status = "Sold"
	StatusDead   Status = "Dead"
)

// Exit describes a terminal event once resolved.
type Exit struct {
	Status Status
	Date   temporal.Date
	// Sale is set when Status is StatusSold.
	Sale *SaleEvent
	// Death is set when Status is StatusDead.
	Death *DeathEvent
}

// ResolveStatus determines the animal's lifecycle state from the presence of
// exit events. An animal carrying both a sale and a death record is a
// data-integrity violation; the resolver stays deterministic by keeping the
// exit with the earlier date (the sale wins a same-date tie, since a sold
// animal's later death is not this farm's record) and surfacing a warning.
func ResolveStatus(h History) (Status, *Exit, []Warning) {
	sale, death := h.Sale, h.Death

	if sale == nil && death == nil {
		return StatusActive, nil, nil
	}

	var warnings []Warning
	if sale != nil && death != nil {
		warnings = append(warnings, warnf(WarnConflictingExit, h.Animal.EarTag,
			"animal has both a sale (%s) and a death (%s) record", sale.Date, death.Date))
		if death.Date.Before(sale.Date) {
			sale = nil
		} else {
			death = nil
		}
	}

	if sale != nil {
		return StatusSold, &Exit{Status: StatusSold, Date: sale.Date, Sale: sale}, warnings
	}
	return StatusDead, &Exit{Status: StatusDead, Date: death.Date, Death: death}, warnings
}

// ProfitLoss computes sale price minus purchase price. Unknown purchase
// price means unknown profit, not zero.
func ProfitLoss(sale *SaleEvent, purchasePrice *float64) *float64 {
	if sale == nil || purchasePrice == nil {
		return nil
	}
	pl := sale.SalePrice - *purchasePrice
	return &pl
}
