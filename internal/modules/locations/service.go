package locations

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pastolab/herdtrack/internal/database"
	"github.com/pastolab/herdtrack/internal/modules/herd"
	"github.com/pastolab/herdtrack/internal/modules/kpi"
	"github.com/pastolab/herdtrack/pkg/temporal"
)

// Service produces occupancy and stocking-pressure reports by joining the
// farm layout with computed animal snapshots.
type Service struct {
	db    *sql.DB
	repo  *Repository
	stock *herd.Service
	agg   kpi.Aggregator
	log   zerolog.Logger
}

// NewService creates a new location service
func NewService(db *sql.DB, repo *Repository, stock *herd.Service, agg kpi.Aggregator, log zerolog.Logger) *Service {
	return &Service{
		db:    db,
		repo:  repo,
		stock: stock,
		agg:   agg,
		log:   log.With().Str("service", "locations").Logger(),
	}
}

// SublocationOccupancy is a sublocation with its current head count.
type SublocationOccupancy struct {
	Sublocation
	AnimalCount int `json:"animal_count"`
}

// LocationOverview is a location with its sublocations and occupancy KPIs.
type LocationOverview struct {
	Location
	Sublocations []SublocationOccupancy `json:"sublocations"`
	KPIs         kpi.LocationSummary    `json:"kpis"`
}

// LocationDetail pairs a location overview with the occupying animals.
type LocationDetail struct {
	LocationDetails LocationOverview      `json:"location_details"`
	Animals         []herd.AnimalWithKPIs `json:"animals"`
}

// Overview lists every location on a farm with occupancy KPIs, ordered by
// name. Only active animals count as occupants.
func (s *Service) Overview(farmID int64, asOf temporal.Date) ([]LocationOverview, error) {
	locs, err := s.repo.ListByFarm(farmID)
	if err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return []LocationOverview{}, nil
	}

	subs, err := s.repo.ListSublocationsByFarm(farmID)
	if err != nil {
		return nil, err
	}
	subsByParent := make(map[int64][]Sublocation)
	for _, sub := range subs {
		subsByParent[sub.ParentLocationID] = append(subsByParent[sub.ParentLocationID], sub)
	}

	occupants, err := s.occupantsByLocation(farmID, asOf)
	if err != nil {
		return nil, err
	}

	overviews := make([]LocationOverview, 0, len(locs))
	for _, loc := range locs {
		overviews = append(overviews, s.buildOverview(loc, subsByParent[loc.ID], occupants[loc.ID]))
	}
	return overviews, nil
}

// Summary returns the detail view of one location: occupancy KPIs plus the
// list of occupying animals with their individual snapshots.
func (s *Service) Summary(farmID, locationID int64, asOf temporal.Date) (*LocationDetail, error) {
	loc, err := s.repo.GetByID(farmID, locationID)
	if err != nil {
		return nil, err
	}
	subs, err := s.repo.ListSublocations(locationID)
	if err != nil {
		return nil, err
	}

	occupants, err := s.occupantsByLocation(farmID, asOf)
	if err != nil {
		return nil, err
	}
	here := occupants[locationID]
	if here == nil {
		here = []herd.AnimalWithKPIs{}
	}

	return &LocationDetail{
		LocationDetails: s.buildOverview(*loc, subs, here),
		Animals:         here,
	}, nil
}

func (s *Service) buildOverview(loc Location, subs []Sublocation, occupants []herd.AnimalWithKPIs) LocationOverview {
	snapshots := make([]kpi.Snapshot, 0, len(occupants))
	for _, o := range occupants {
		snapshots = append(snapshots, o.KPIs)
	}
	summary := s.agg.SummarizeLocation(loc.AreaHectares, snapshots)

	occupancy := make([]SublocationOccupancy, 0, len(subs))
	for _, sub := range subs {
		occupancy = append(occupancy, SublocationOccupancy{
			Sublocation: sub,
			AnimalCount: summary.SublocationAnimalCounts[sub.ID],
		})
	}
	// Counts live on the sublocation rows, not in the summary
	summary.SublocationAnimalCounts = nil

	return LocationOverview{Location: loc, Sublocations: occupancy, KPIs: summary}
}

// occupantsByLocation groups a farm's active animals by their current
// location as of a date.
func (s *Service) occupantsByLocation(farmID int64, asOf temporal.Date) (map[int64][]herd.AnimalWithKPIs, error) {
	summary, err := s.stock.ActiveStockSummary(farmID, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stock snapshots: %w", err)
	}

	byLocation := make(map[int64][]herd.AnimalWithKPIs)
	for _, animal := range summary.Animals {
		if animal.KPIs.CurrentLocationID == nil {
			continue
		}
		byLocation[*animal.KPIs.CurrentLocationID] = append(byLocation[*animal.KPIs.CurrentLocationID], animal)
	}
	return byLocation, nil
}

// BulkAssign moves a batch of animals into a location, optionally into one
// of its sublocations, on a given date. All moves commit or none do.
func (s *Service) BulkAssign(farmID, locationID int64, sublocationID *int64, animalIDs []int64, date temporal.Date) error {
	if _, err := s.repo.GetByID(farmID, locationID); err != nil {
		return err
	}
	if sublocationID != nil {
		sub, err := s.repo.GetSublocationByID(farmID, *sublocationID)
		if err != nil {
			return err
		}
		if sub.ParentLocationID != locationID {
			return fmt.Errorf("sublocation %d does not belong to location %d: %w", *sublocationID, locationID, ErrNotFound)
		}
	}

	err := database.WithTransaction(s.db, func(tx *sql.Tx) error {
		for _, animalID := range animalIDs {
			var count int
			if err := tx.QueryRow(`SELECT COUNT(*) FROM animals WHERE id = ? AND farm_id = ?`, animalID, farmID).Scan(&count); err != nil {
				return fmt.Errorf("failed to check animal %d: %w", animalID, err)
			}
			if count == 0 {
				return fmt.Errorf("animal %d not found on farm %d: %w", animalID, farmID, herd.ErrNotFound)
			}
			_, err := tx.Exec(`
				INSERT INTO location_changes (animal_id, farm_id, location_id, sublocation_id, date)
				VALUES (?, ?, ?, ?, ?)`,
				animalID, farmID, locationID, sublocationID, date)
			if err != nil {
				return fmt.Errorf("failed to move animal %d: %w", animalID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().Int64("location_id", locationID).Int("animals", len(animalIDs)).
		Str("date", date.String()).Msg("Bulk sublocation assignment")
	return nil
}
