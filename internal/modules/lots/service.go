// Package lots reports on animals grouped by their purchase lot number.
package lots

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/pastolab/herdtrack/internal/modules/herd"
	"github.com/pastolab/herdtrack/internal/modules/kpi"
	"github.com/pastolab/herdtrack/pkg/temporal"
)

// ErrInvalidStatus is returned for an unrecognized status filter.
var ErrInvalidStatus = errors.New("invalid status filter")

// StatusFilter selects which animals of a lot to report on.
type StatusFilter string

const (
	FilterActive StatusFilter = "active"
	FilterSold   StatusFilter = "sold"
	FilterDead   StatusFilter = "dead"
	FilterAll    StatusFilter = "all"
)

// ParseStatusFilter validates a raw status query value. Empty defaults to
// active.
func ParseStatusFilter(raw string) (StatusFilter, error) {
	switch StatusFilter(raw) {
	case "":
		return FilterActive, nil
	case FilterActive, FilterSold, FilterDead, FilterAll:
		return StatusFilter(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

func (f StatusFilter) matches(status kpi.Status) bool {
	switch f {
	case FilterActive:
		return status == kpi.StatusActive
	case FilterSold:
		return status == kpi.StatusSold
	case FilterDead:
		return status == kpi.StatusDead
	default:
		return true
	}
}

// LotAnimal is one animal of a lot with its snapshot and, for exited
// animals, the exit details.
type LotAnimal struct {
	herd.Animal
	KPIs         kpi.Snapshot   `json:"kpis"`
	ExitDate     *temporal.Date `json:"exit_date,omitempty"`
	SalePrice    *float64       `json:"sale_price,omitempty"`
	DeathDetails *herd.Death    `json:"death_details,omitempty"`
}

// Service builds lot reports on top of the herd repositories.
type Service struct {
	animals *herd.AnimalRepository
	events  *herd.EventRepository
	log     zerolog.Logger
}

// NewService creates a new lot service
func NewService(animals *herd.AnimalRepository, events *herd.EventRepository, log zerolog.Logger) *Service {
	return &Service{
		animals: animals,
		events:  events,
		log:     log.With().Str("service", "lots").Logger(),
	}
}

// Lots returns the distinct lot numbers used on a farm.
func (s *Service) Lots(farmID int64) ([]string, error) {
	return s.animals.Lots(farmID)
}

// LotReport lists the animals of one lot matching the status filter, each
// with its snapshot. Sold animals carry exit_date and sale_price, dead
// animals their death record.
func (s *Service) LotReport(farmID int64, lot string, filter StatusFilter, asOf temporal.Date) ([]LotAnimal, error) {
	animals, err := s.animals.ListByLot(farmID, lot)
	if err != nil {
		return nil, err
	}
	if len(animals) == 0 {
		return []LotAnimal{}, nil
	}

	snapshots, byID, err := s.snapshotsByAnimal(animals, asOf)
	if err != nil {
		return nil, err
	}

	sales, err := s.events.ListSalesByFarm(farmID, nil, nil)
	if err != nil {
		return nil, err
	}
	saleByAnimal := make(map[int64]herd.Sale, len(sales))
	for _, sale := range sales {
		saleByAnimal[sale.AnimalID] = sale
	}
	deaths, err := s.events.ListDeathsByFarm(farmID, nil, nil)
	if err != nil {
		return nil, err
	}
	deathByAnimal := make(map[int64]herd.Death, len(deaths))
	for _, death := range deaths {
		deathByAnimal[death.AnimalID] = death
	}

	report := make([]LotAnimal, 0, len(animals))
	for _, animal := range animals {
		snap, ok := snapshots[animal.ID]
		if !ok {
			continue
		}
		if !filter.matches(snap.Status) {
			continue
		}

		entry := LotAnimal{Animal: byID[animal.ID], KPIs: snap}
		switch snap.Status {
		case kpi.StatusSold:
			if sale, ok := saleByAnimal[animal.ID]; ok {
				d := sale.Date
				entry.ExitDate = &d
				price := sale.SalePrice
				entry.SalePrice = &price
			}
		case kpi.StatusDead:
			if death, ok := deathByAnimal[animal.ID]; ok {
				d := death
				entry.DeathDetails = &d
			}
		}
		report = append(report, entry)
	}
	return report, nil
}

// Summaries aggregates snapshots per lot for a whole farm, ordered by lot
// number.
func (s *Service) Summaries(farmID int64, asOf temporal.Date) ([]kpi.LotSummary, error) {
	animals, err := s.animals.ListByFarm(farmID)
	if err != nil {
		return nil, err
	}
	if len(animals) == 0 {
		return []kpi.LotSummary{}, nil
	}

	snapshots, _, err := s.snapshotsByAnimal(animals, asOf)
	if err != nil {
		return nil, err
	}

	all := make([]kpi.Snapshot, 0, len(snapshots))
	lotSet := make(map[string]struct{})
	for _, snap := range snapshots {
		all = append(all, snap)
		lotSet[snap.Lot] = struct{}{}
	}
	lots := make([]string, 0, len(lotSet))
	for lot := range lotSet {
		lots = append(lots, lot)
	}
	sort.Strings(lots)

	summaries := make([]kpi.LotSummary, 0, len(lots))
	for _, lot := range lots {
		summaries = append(summaries, kpi.SummarizeLot(lot, all))
	}
	return summaries, nil
}

func (s *Service) snapshotsByAnimal(animals []herd.Animal, asOf temporal.Date) (map[int64]kpi.Snapshot, map[int64]herd.Animal, error) {
	histories, err := s.events.LoadHistories(animals)
	if err != nil {
		return nil, nil, err
	}

	result := kpi.ComputeBatch(histories, asOf)
	for _, failure := range result.Failures {
		s.log.Warn().Str("ear_tag", failure.EarTag).Str("error", failure.Error).Msg("Animal excluded from lot report")
	}

	snapshots := make(map[int64]kpi.Snapshot, len(result.Snapshots))
	for _, snap := range result.Snapshots {
		snapshots[snap.AnimalID] = snap
	}
	byID := make(map[int64]herd.Animal, len(animals))
	for _, a := range animals {
		byID[a.ID] = a
	}
	return snapshots, byID, nil
}
