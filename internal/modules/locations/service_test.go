package locations

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pastolab/herdtrack/internal/modules/herd"
	"github.com/pastolab/herdtrack/internal/modules/kpi"
	"github.com/pastolab/herdtrack/pkg/temporal"
)

func date(s string) temporal.Date { return temporal.MustParseDate(s) }

type locationsFixture struct {
	db      *sql.DB
	repo    *Repository
	service *Service
	animals *herd.AnimalRepository
	events  *herd.EventRepository
}

func newLocationsFixture(t *testing.T) locationsFixture {
	t.Helper()
	db := setupLocationsDB(t)
	repo := NewRepository(db, zerolog.Nop())
	animals := herd.NewAnimalRepository(db, zerolog.Nop())
	events := herd.NewEventRepository(db, zerolog.Nop())
	stock := herd.NewService(animals, events, zerolog.Nop())
	return locationsFixture{
		db:      db,
		repo:    repo,
		service: NewService(db, repo, stock, kpi.NewAggregator(450), zerolog.Nop()),
		animals: animals,
		events:  events,
	}
}

func (f locationsFixture) addAnimal(t *testing.T, earTag string, weightKg float64) *herd.Animal {
	t.Helper()
	animal := &herd.Animal{
		FarmID:         1,
		EarTag:         earTag,
		Lot:            "7",
		EntryDate:      date("2024-01-01"),
		EntryWeightKg:  weightKg,
		EntryAgeMonths: 12,
		Sex:            "M",
	}
	require.NoError(t, f.animals.Create(animal))
	return animal
}

func (f locationsFixture) moveAnimal(t *testing.T, animalID, locationID int64, sublocationID *int64, day string) {
	t.Helper()
	require.NoError(t, f.events.AddLocationChange(&herd.LocationChange{
		AnimalID:      animalID,
		FarmID:        1,
		LocationID:    locationID,
		SublocationID: sublocationID,
		Date:          date(day),
	}))
}

func TestService_Overview(t *testing.T) {
	f := newLocationsFixture(t)

	// 9 ha pasture with one paddock, plus an empty feedlot
	pastureA := pasture("Pasture A", 9)
	require.NoError(t, f.repo.Create(pastureA))
	paddock := &Sublocation{FarmID: 1, ParentLocationID: pastureA.ID, Name: "Paddock 1"}
	require.NoError(t, f.repo.CreateSublocation(paddock))
	feedlot := &Location{FarmID: 1, Name: "Feedlot", LocationType: sptr("feedlot")}
	require.NoError(t, f.repo.Create(feedlot))

	a := f.addAnimal(t, "BR-1001", 400)
	f.moveAnimal(t, a.ID, pastureA.ID, &paddock.ID, "2024-01-01")
	b := f.addAnimal(t, "BR-1002", 500)
	f.moveAnimal(t, b.ID, pastureA.ID, nil, "2024-01-01")

	// A sold animal is not an occupant
	c := f.addAnimal(t, "BR-1003", 400)
	f.moveAnimal(t, c.ID, pastureA.ID, nil, "2024-01-01")
	require.NoError(t, f.events.RecordSale(&herd.Sale{AnimalID: c.ID, FarmID: 1, Date: date("2024-02-01"), SalePrice: 1000}))

	overviews, err := f.service.Overview(1, date("2024-06-01"))
	require.NoError(t, err)
	require.Len(t, overviews, 2)

	fl := overviews[0]
	assert.Equal(t, "Feedlot", fl.Name)
	assert.Equal(t, 0, fl.KPIs.AnimalCount)
	assert.Nil(t, fl.KPIs.CapacityRateActualUAHa, "No area, no capacity rate")

	pa := overviews[1]
	assert.Equal(t, "Pasture A", pa.Name)
	assert.Equal(t, 2, pa.KPIs.AnimalCount)
	assert.Equal(t, 900.0, pa.KPIs.TotalActualWeightKg)
	// 900 kg / 450 kg per UA / 9 ha = 0.22 UA/ha
	require.NotNil(t, pa.KPIs.CapacityRateActualUAHa)
	assert.Equal(t, 0.22, *pa.KPIs.CapacityRateActualUAHa)
	require.Len(t, pa.Sublocations, 1)
	assert.Equal(t, 1, pa.Sublocations[0].AnimalCount)
}

func TestService_Overview_NoLocations(t *testing.T) {
	f := newLocationsFixture(t)

	overviews, err := f.service.Overview(1, date("2024-06-01"))
	require.NoError(t, err)
	assert.Empty(t, overviews)
}

func TestService_Summary(t *testing.T) {
	f := newLocationsFixture(t)

	pastureA := pasture("Pasture A", 9)
	require.NoError(t, f.repo.Create(pastureA))
	pastureB := pasture("Pasture B", 5)
	require.NoError(t, f.repo.Create(pastureB))

	a := f.addAnimal(t, "BR-1001", 400)
	f.moveAnimal(t, a.ID, pastureA.ID, nil, "2024-01-01")
	// Moved away later, so no longer an occupant of Pasture A
	b := f.addAnimal(t, "BR-1002", 500)
	f.moveAnimal(t, b.ID, pastureA.ID, nil, "2024-01-01")
	f.moveAnimal(t, b.ID, pastureB.ID, nil, "2024-03-01")

	detail, err := f.service.Summary(1, pastureA.ID, date("2024-06-01"))
	require.NoError(t, err)

	assert.Equal(t, "Pasture A", detail.LocationDetails.Name)
	assert.Equal(t, 1, detail.LocationDetails.KPIs.AnimalCount)
	require.Len(t, detail.Animals, 1)
	assert.Equal(t, "BR-1001", detail.Animals[0].EarTag)
	assert.Equal(t, kpi.StatusActive, detail.Animals[0].KPIs.Status)

	_, err = f.service.Summary(1, 999, date("2024-06-01"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_BulkAssign(t *testing.T) {
	f := newLocationsFixture(t)

	pastureA := pasture("Pasture A", 9)
	require.NoError(t, f.repo.Create(pastureA))
	paddock := &Sublocation{FarmID: 1, ParentLocationID: pastureA.ID, Name: "Paddock 1"}
	require.NoError(t, f.repo.CreateSublocation(paddock))

	a := f.addAnimal(t, "BR-1001", 400)
	b := f.addAnimal(t, "BR-1002", 500)

	err := f.service.BulkAssign(1, pastureA.ID, &paddock.ID, []int64{a.ID, b.ID}, date("2024-02-01"))
	require.NoError(t, err)

	changes, err := f.events.ListLocationChangesByAnimal(a.ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, pastureA.ID, changes[0].LocationID)
	require.NotNil(t, changes[0].SublocationID)
	assert.Equal(t, paddock.ID, *changes[0].SublocationID)
}

func TestService_BulkAssign_RollsBackOnUnknownAnimal(t *testing.T) {
	f := newLocationsFixture(t)

	pastureA := pasture("Pasture A", 9)
	require.NoError(t, f.repo.Create(pastureA))
	a := f.addAnimal(t, "BR-1001", 400)

	err := f.service.BulkAssign(1, pastureA.ID, nil, []int64{a.ID, 999}, date("2024-02-01"))
	assert.ErrorIs(t, err, herd.ErrNotFound)

	changes, err := f.events.ListLocationChangesByAnimal(a.ID)
	require.NoError(t, err)
	assert.Empty(t, changes, "No partial writes")
}

func TestService_BulkAssign_SublocationMustMatchLocation(t *testing.T) {
	f := newLocationsFixture(t)

	pastureA := pasture("Pasture A", 9)
	require.NoError(t, f.repo.Create(pastureA))
	pastureB := pasture("Pasture B", 5)
	require.NoError(t, f.repo.Create(pastureB))
	paddock := &Sublocation{FarmID: 1, ParentLocationID: pastureB.ID, Name: "Paddock 1"}
	require.NoError(t, f.repo.CreateSublocation(paddock))

	a := f.addAnimal(t, "BR-1001", 400)
	err := f.service.BulkAssign(1, pastureA.ID, &paddock.ID, []int64{a.ID}, date("2024-02-01"))
	assert.ErrorIs(t, err, ErrNotFound)
}
