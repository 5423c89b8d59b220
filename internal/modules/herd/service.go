package herd

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pastolab/herdtrack/internal/modules/kpi"
	"github.com/pastolab/herdtrack/pkg/formulas"
	"github.com/pastolab/herdtrack/pkg/temporal"
)

// Service assembles animal histories and runs the metrics engine over them.
type Service struct {
	animals *AnimalRepository
	events  *EventRepository
	log     zerolog.Logger
}

// NewService creates a new herd service
func NewService(animals *AnimalRepository, events *EventRepository, log zerolog.Logger) *Service {
	return &Service{
		animals: animals,
		events:  events,
		log:     log.With().Str("service", "herd").Logger(),
	}
}

// AnimalWithKPIs pairs an entry record with its computed metrics snapshot.
type AnimalWithKPIs struct {
	Animal
	KPIs kpi.Snapshot `json:"kpis"`
}

// MasterRecord is the complete dossier of one animal: entry record, exit
// record if any, computed metrics and every event history.
type MasterRecord struct {
	PurchaseDetails Animal                   `json:"purchase_details"`
	SaleDetails     *Sale                    `json:"sale_details"`
	DeathDetails    *Death                   `json:"death_details"`
	CalculatedKPIs  kpi.Snapshot             `json:"calculated_kpis"`
	WeightHistory   []kpi.WeightHistoryEntry `json:"weight_history"`
	ProtocolHistory []SanitaryProtocol       `json:"protocol_history"`
	LocationHistory []LocationChange         `json:"location_history"`
	DietHistory     []DietLog                `json:"diet_history"`
}

// GetAnimal returns the entry record of one animal, scoped to a farm.
func (s *Service) GetAnimal(farmID, animalID int64) (*Animal, error) {
	animal, err := s.animals.GetByID(animalID)
	if err != nil {
		return nil, err
	}
	if animal.FarmID != farmID {
		return nil, ErrNotFound
	}
	return animal, nil
}

// MasterRecord assembles the complete dossier for one animal as of a date.
func (s *Service) MasterRecord(farmID, animalID int64, asOf temporal.Date) (*MasterRecord, error) {
	animal, err := s.GetAnimal(farmID, animalID)
	if err != nil {
		return nil, err
	}

	history, err := s.events.LoadHistory(*animal)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for animal %d: %w", animalID, err)
	}

	snapshot, err := kpi.Compute(history, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to compute metrics for animal %d: %w", animalID, err)
	}

	protocols, err := s.events.ListSanitaryProtocolsByAnimal(animalID)
	if err != nil {
		return nil, err
	}
	changes, err := s.events.ListLocationChangesByAnimal(animalID)
	if err != nil {
		return nil, err
	}
	diets, err := s.events.ListDietLogsByAnimal(animalID)
	if err != nil {
		return nil, err
	}
	sale, err := s.events.GetSale(animalID)
	if err != nil {
		return nil, err
	}
	death, err := s.events.GetDeath(animalID)
	if err != nil {
		return nil, err
	}

	return &MasterRecord{
		PurchaseDetails: *animal,
		SaleDetails:     sale,
		DeathDetails:    death,
		CalculatedKPIs:  snapshot,
		WeightHistory:   kpi.EnrichedWeightHistory(history),
		ProtocolHistory: protocols,
		LocationHistory: changes,
		DietHistory:     diets,
	}, nil
}

// StockSummary is the active-stock report: every active animal with its
// metrics, plus herd-level aggregates.
type StockSummary struct {
	Animals  []AnimalWithKPIs   `json:"animals"`
	Summary  kpi.HerdSummary    `json:"summary"`
	Failures []kpi.BatchFailure `json:"failures,omitempty"`
}

// ActiveStockSummary computes the active-stock report for a farm.
func (s *Service) ActiveStockSummary(farmID int64, asOf temporal.Date) (*StockSummary, error) {
	animals, err := s.animals.ListByFarm(farmID)
	if err != nil {
		return nil, err
	}

	result, byID, err := s.computeAll(animals, asOf)
	if err != nil {
		return nil, err
	}

	var active []AnimalWithKPIs
	var activeSnapshots []kpi.Snapshot
	for _, snap := range result.Snapshots {
		if snap.Status != kpi.StatusActive {
			continue
		}
		active = append(active, AnimalWithKPIs{Animal: byID[snap.AnimalID], KPIs: snap})
		activeSnapshots = append(activeSnapshots, snap)
	}

	return &StockSummary{
		Animals:  active,
		Summary:  kpi.SummarizeHerd(activeSnapshots),
		Failures: result.Failures,
	}, nil
}

// Snapshots computes metrics snapshots for every animal on a farm.
// Malformed histories are reported as failures, not errors.
func (s *Service) Snapshots(farmID int64, asOf temporal.Date) (kpi.BatchResult, error) {
	animals, err := s.animals.ListByFarm(farmID)
	if err != nil {
		return kpi.BatchResult{}, err
	}
	result, _, err := s.computeAll(animals, asOf)
	return result, err
}

func (s *Service) computeAll(animals []Animal, asOf temporal.Date) (kpi.BatchResult, map[int64]Animal, error) {
	histories, err := s.events.LoadHistories(animals)
	if err != nil {
		return kpi.BatchResult{}, nil, err
	}

	byID := make(map[int64]Animal, len(animals))
	for _, a := range animals {
		byID[a.ID] = a
	}

	result := kpi.ComputeBatch(histories, asOf)
	for _, failure := range result.Failures {
		s.log.Warn().Str("ear_tag", failure.EarTag).Str("error", failure.Error).Msg("Animal excluded from batch")
	}
	return result, byID, nil
}

// SalesReport builds the rich sales listing: each sale paired with entry
// details and closing performance figures, newest sale first.
func (s *Service) SalesReport(farmID int64, start, end *temporal.Date) ([]SaleReportEntry, error) {
	sales, err := s.events.ListSalesByFarm(farmID, start, end)
	if err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return []SaleReportEntry{}, nil
	}

	animals, err := s.animals.ListByFarm(farmID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]Animal, len(animals))
	for _, a := range animals {
		byID[a.ID] = a
	}

	weightings, err := s.events.ListWeightingsByFarm(farmID, nil, nil)
	if err != nil {
		return nil, err
	}
	// Weighting taken on the sale date is the authoritative exit weight
	weightOn := make(map[int64]map[string]float64)
	for _, w := range weightings {
		if weightOn[w.AnimalID] == nil {
			weightOn[w.AnimalID] = make(map[string]float64)
		}
		weightOn[w.AnimalID][w.Date.String()] = w.WeightKg
	}

	entries := make([]SaleReportEntry, 0, len(sales))
	for _, sale := range sales {
		animal, ok := byID[sale.AnimalID]
		if !ok {
			s.log.Warn().Int64("animal_id", sale.AnimalID).Msg("Sale references unknown animal")
			continue
		}

		exitWeight := 0.0
		if w, ok := weightOn[sale.AnimalID][sale.Date.String()]; ok {
			exitWeight = w
		} else if sale.ExitWeightKg != nil {
			exitWeight = *sale.ExitWeightKg
		}

		daysOnFarm := temporal.DaysBetween(animal.EntryDate, sale.Date)
		gmd := 0.0
		if daysOnFarm > 0 && exitWeight > 0 {
			gmd = (exitWeight - animal.EntryWeightKg) / float64(daysOnFarm)
		}

		var profit *float64
		if animal.PurchasePrice != nil {
			p := sale.SalePrice - *animal.PurchasePrice
			profit = &p
		}

		entries = append(entries, SaleReportEntry{
			SaleID:         sale.ID,
			AnimalID:       sale.AnimalID,
			EarTag:         animal.EarTag,
			Lot:            animal.Lot,
			Race:           animal.Race,
			Sex:            animal.Sex,
			EntryDate:      animal.EntryDate,
			ExitDate:       sale.Date,
			EntryWeightKg:  animal.EntryWeightKg,
			ExitWeightKg:   exitWeight,
			EntryPrice:     animal.PurchasePrice,
			ExitPrice:      sale.SalePrice,
			ProfitLoss:     formulas.RoundPtr(profit, 2),
			ExitAgeMonths:  formulas.Round(temporal.AgeInMonths(animal.EntryAgeMonths, animal.EntryDate, sale.Date), 2),
			DaysOnFarm:     daysOnFarm,
			DailyGainKgDay: formulas.Round(gmd, 3),
		})
	}
	return entries, nil
}
