// Package herd manages animal records and their lifecycle events.
// Animals enter through a purchase record, accumulate weightings, moves,
// diet changes and health treatments, and exit through a sale or a death.
package herd

import (
	"github.com/pastolab/herdtrack/pkg/temporal"
)

// Animal is the entry (purchase) record that doubles as the animal identity.
// The (ear_tag, lot, farm) triple is unique per farm.
type Animal struct {
	ID             int64         `json:"id"`
	FarmID         int64         `json:"farm_id"`
	EarTag         string        `json:"ear_tag"`
	Lot            string        `json:"lot"`
	EntryDate      temporal.Date `json:"entry_date"`
	EntryWeightKg  float64       `json:"entry_weight_kg"`
	EntryAgeMonths float64       `json:"entry_age_months"`
	Sex            string        `json:"sex"`
	Race           *string       `json:"race"`
	PurchasePrice  *float64      `json:"purchase_price"`
}

// Weighting is a dedicated weight measurement event.
type Weighting struct {
	ID       int64         `json:"id"`
	AnimalID int64         `json:"animal_id"`
	FarmID   int64         `json:"farm_id"`
	Date     temporal.Date `json:"date"`
	WeightKg float64       `json:"weight_kg"`
}

// LocationChange moves an animal to a location, optionally into a
// sublocation, and may record a weight taken during the move.
type LocationChange struct {
	ID              int64         `json:"id"`
	AnimalID        int64         `json:"animal_id"`
	FarmID          int64         `json:"farm_id"`
	LocationID      int64         `json:"location_id"`
	LocationName    string        `json:"location_name,omitempty"`
	SublocationID   *int64        `json:"sublocation_id"`
	SublocationName *string       `json:"sublocation_name,omitempty"`
	Date            temporal.Date `json:"date"`
	WeightKg        *float64      `json:"weight_kg"`
}

// DietLog switches an animal's diet, optionally recording a weight.
type DietLog struct {
	ID             int64         `json:"id"`
	AnimalID       int64         `json:"animal_id"`
	FarmID         int64         `json:"farm_id"`
	Date           temporal.Date `json:"date"`
	DietType       string        `json:"diet_type"`
	DailyIntakePct *float64      `json:"daily_intake_percentage"`
	WeightKg       *float64      `json:"weight_kg"`
}

// SanitaryProtocol records a health treatment (vaccine, dewormer, etc).
type SanitaryProtocol struct {
	ID            int64         `json:"id"`
	AnimalID      int64         `json:"animal_id"`
	FarmID        int64         `json:"farm_id"`
	Date          temporal.Date `json:"date"`
	ProtocolType  string        `json:"protocol_type"`
	ProductName   *string       `json:"product_name"`
	Dosage        *string       `json:"dosage"`
	InvoiceNumber *string       `json:"invoice_number"`
}

// Sale marks an animal's exit by sale. One per animal.
type Sale struct {
	ID           int64         `json:"id"`
	AnimalID     int64         `json:"animal_id"`
	FarmID       int64         `json:"farm_id"`
	Date         temporal.Date `json:"date"`
	SalePrice    float64       `json:"sale_price"`
	ExitWeightKg *float64      `json:"exit_weight_kg"`
}

// Death marks an animal's exit by death. One per animal.
type Death struct {
	ID       int64         `json:"id"`
	AnimalID int64         `json:"animal_id"`
	FarmID   int64         `json:"farm_id"`
	Date     temporal.Date `json:"date"`
	Cause    *string       `json:"cause"`
}

// SaleReportEntry is one row of the sales report: the sale record enriched
// with entry details and closing performance figures.
type SaleReportEntry struct {
	SaleID         int64         `json:"sale_id"`
	AnimalID       int64         `json:"animal_id"`
	EarTag         string        `json:"ear_tag"`
	Lot            string        `json:"lot"`
	Race           *string       `json:"race"`
	Sex            string        `json:"sex"`
	EntryDate      temporal.Date `json:"entry_date"`
	ExitDate       temporal.Date `json:"exit_date"`
	EntryWeightKg  float64       `json:"entry_weight_kg"`
	ExitWeightKg   float64       `json:"exit_weight_kg"`
	EntryPrice     *float64      `json:"entry_price"`
	ExitPrice      float64       `json:"exit_price"`
	ProfitLoss     *float64      `json:"profit_loss"`
	ExitAgeMonths  float64       `json:"exit_age_months"`
	DaysOnFarm     int           `json:"days_on_farm"`
	DailyGainKgDay float64       `json:"gmd_kg_day"`
}
