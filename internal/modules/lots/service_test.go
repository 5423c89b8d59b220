package lots

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pastolab/herdtrack/internal/database"
	"github.com/pastolab/herdtrack/internal/modules/herd"
	"github.com/pastolab/herdtrack/internal/modules/kpi"
	"github.com/pastolab/herdtrack/pkg/temporal"
)

func date(s string) temporal.Date { return temporal.MustParseDate(s) }

type lotsFixture struct {
	db      *sql.DB
	service *Service
	animals *herd.AnimalRepository
	events  *herd.EventRepository
}

func newLotsFixture(t *testing.T) lotsFixture {
	t.Helper()

	db, err := database.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	_, err = db.Conn().Exec("INSERT INTO farms (id, name) VALUES (1, 'Fazenda Norte')")
	require.NoError(t, err)

	animals := herd.NewAnimalRepository(db.Conn(), zerolog.Nop())
	events := herd.NewEventRepository(db.Conn(), zerolog.Nop())
	return lotsFixture{
		db:      db.Conn(),
		service: NewService(animals, events, zerolog.Nop()),
		animals: animals,
		events:  events,
	}
}

func (f lotsFixture) addAnimal(t *testing.T, earTag, lot string) *herd.Animal {
	t.Helper()
	price := 900.0
	animal := &herd.Animal{
		FarmID:         1,
		EarTag:         earTag,
		Lot:            lot,
		EntryDate:      date("2024-01-01"),
		EntryWeightKg:  300,
		EntryAgeMonths: 12,
		Sex:            "M",
		PurchasePrice:  &price,
	}
	require.NoError(t, f.animals.Create(animal))
	return animal
}

func TestParseStatusFilter(t *testing.T) {
	tests := []struct {
		raw     string
		want    StatusFilter
		wantErr bool
	}{
		{"", FilterActive, false},
		{"active", FilterActive, false},
		{"sold", FilterSold, false},
		{"dead", FilterDead, false},
		{"all", FilterAll, false},
		{"archived", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStatusFilter(tt.raw)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidStatus, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestService_LotReport_DefaultsToActive(t *testing.T) {
	f := newLotsFixture(t)

	f.addAnimal(t, "BR-1001", "7")
	sold := f.addAnimal(t, "BR-1002", "7")
	require.NoError(t, f.events.RecordSale(&herd.Sale{AnimalID: sold.ID, FarmID: 1, Date: date("2024-03-01"), SalePrice: 1150}))
	f.addAnimal(t, "BR-2001", "8") // different lot

	report, err := f.service.LotReport(1, "7", FilterActive, date("2024-06-01"))
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, "BR-1001", report[0].EarTag)
	assert.Equal(t, kpi.StatusActive, report[0].KPIs.Status)
	assert.Nil(t, report[0].ExitDate)
}

func TestService_LotReport_SoldCarriesExitDetails(t *testing.T) {
	f := newLotsFixture(t)

	f.addAnimal(t, "BR-1001", "7")
	sold := f.addAnimal(t, "BR-1002", "7")
	require.NoError(t, f.events.RecordSale(&herd.Sale{AnimalID: sold.ID, FarmID: 1, Date: date("2024-03-01"), SalePrice: 1150}))

	report, err := f.service.LotReport(1, "7", FilterSold, date("2024-06-01"))
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, "BR-1002", report[0].EarTag)
	require.NotNil(t, report[0].ExitDate)
	assert.Equal(t, "2024-03-01", report[0].ExitDate.String())
	require.NotNil(t, report[0].SalePrice)
	assert.Equal(t, 1150.0, *report[0].SalePrice)
	assert.Nil(t, report[0].DeathDetails)
}

func TestService_LotReport_DeadCarriesDeathDetails(t *testing.T) {
	f := newLotsFixture(t)

	dead := f.addAnimal(t, "BR-1001", "7")
	cause := "illness"
	require.NoError(t, f.events.RecordDeath(&herd.Death{AnimalID: dead.ID, FarmID: 1, Date: date("2024-02-15"), Cause: &cause}))

	report, err := f.service.LotReport(1, "7", FilterDead, date("2024-06-01"))
	require.NoError(t, err)
	require.Len(t, report, 1)
	require.NotNil(t, report[0].DeathDetails)
	assert.Equal(t, "illness", *report[0].DeathDetails.Cause)
	assert.Nil(t, report[0].SalePrice)
}

func TestService_LotReport_All(t *testing.T) {
	f := newLotsFixture(t)

	f.addAnimal(t, "BR-1001", "7")
	sold := f.addAnimal(t, "BR-1002", "7")
	require.NoError(t, f.events.RecordSale(&herd.Sale{AnimalID: sold.ID, FarmID: 1, Date: date("2024-03-01"), SalePrice: 1150}))

	report, err := f.service.LotReport(1, "7", FilterAll, date("2024-06-01"))
	require.NoError(t, err)
	assert.Len(t, report, 2)
}

func TestService_LotReport_UnknownLot(t *testing.T) {
	f := newLotsFixture(t)

	report, err := f.service.LotReport(1, "99", FilterAll, date("2024-06-01"))
	require.NoError(t, err)
	assert.Empty(t, report)
}

func TestService_Summaries(t *testing.T) {
	f := newLotsFixture(t)

	f.addAnimal(t, "BR-1001", "7")
	f.addAnimal(t, "BR-1002", "7")
	f.addAnimal(t, "BR-2001", "8")

	summaries, err := f.service.Summaries(1, date("2024-06-01"))
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "7", summaries[0].Lot)
	assert.Equal(t, 2, summaries[0].TotalAnimals)
	assert.Equal(t, "8", summaries[1].Lot)
	assert.Equal(t, 1, summaries[1].TotalAnimals)
}

func TestService_Lots(t *testing.T) {
	f := newLotsFixture(t)

	f.addAnimal(t, "BR-1001", "7")
	f.addAnimal(t, "BR-2001", "8")

	lots, err := f.service.Lots(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "8"}, lots)
}
