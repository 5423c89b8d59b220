package herd

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/pastolab/herdtrack/pkg/temporal"
)

func date(s string) temporal.Date { return temporal.MustParseDate(s) }

func fptr(v float64) *float64 { return &v }

func sptr(v string) *string { return &v }

// setupHerdDB creates an in-memory database with the herd tables.
func setupHerdDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	statements := []string{
		`CREATE TABLE farms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE locations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			farm_id INTEGER NOT NULL REFERENCES farms(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			area_hectares REAL,
			grass_type TEXT,
			location_type TEXT,
			geo_json_data TEXT
		)`,
		`CREATE TABLE sublocations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			farm_id INTEGER NOT NULL REFERENCES farms(id) ON DELETE CASCADE,
			parent_location_id INTEGER NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			area_hectares REAL,
			geo_json_data TEXT
		)`,
		`CREATE TABLE animals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			farm_id INTEGER NOT NULL REFERENCES farms(id) ON DELETE CASCADE,
			ear_tag TEXT NOT NULL,
			lot TEXT NOT NULL,
			entry_date TEXT NOT NULL,
			entry_weight_kg REAL NOT NULL,
			entry_age_months REAL NOT NULL,
			sex TEXT NOT NULL,
			race TEXT,
			purchase_price REAL,
			UNIQUE (ear_tag, lot, farm_id)
		)`,
		`CREATE TABLE weightings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			animal_id INTEGER NOT NULL REFERENCES animals(id) ON DELETE CASCADE,
			farm_id INTEGER NOT NULL REFERENCES farms(id) ON DELETE CASCADE,
			date TEXT NOT NULL,
			weight_kg REAL NOT NULL
		)`,
		`CREATE TABLE location_changes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			animal_id INTEGER NOT NULL REFERENCES animals(id) ON DELETE CASCADE,
			farm_id INTEGER NOT NULL REFERENCES farms(id) ON DELETE CASCADE,
			location_id INTEGER NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
			sublocation_id INTEGER REFERENCES sublocations(id) ON DELETE SET NULL,
			date TEXT NOT NULL,
			weight_kg REAL
		)`,
		`CREATE TABLE diet_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			animal_id INTEGER NOT NULL REFERENCES animals(id) ON DELETE CASCADE,
			farm_id INTEGER NOT NULL REFERENCES farms(id) ON DELETE CASCADE,
			date TEXT NOT NULL,
			diet_type TEXT NOT NULL,
			daily_intake_percentage REAL,
			weight_kg REAL
		)`,
		`CREATE TABLE sanitary_protocols (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			animal_id INTEGER NOT NULL REFERENCES animals(id) ON DELETE CASCADE,
			farm_id INTEGER NOT NULL REFERENCES farms(id) ON DELETE CASCADE,
			date TEXT NOT NULL,
			protocol_type TEXT NOT NULL,
			product_name TEXT,
			dosage TEXT,
			invoice_number TEXT
		)`,
		`CREATE TABLE sales (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			animal_id INTEGER NOT NULL UNIQUE REFERENCES animals(id) ON DELETE CASCADE,
			farm_id INTEGER NOT NULL REFERENCES farms(id) ON DELETE CASCADE,
			date TEXT NOT NULL,
			sale_price REAL NOT NULL,
			exit_weight_kg REAL
		)`,
		`CREATE TABLE deaths (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			animal_id INTEGER NOT NULL UNIQUE REFERENCES animals(id) ON DELETE CASCADE,
			farm_id INTEGER NOT NULL REFERENCES farms(id) ON DELETE CASCADE,
			date TEXT NOT NULL,
			cause TEXT
		)`,
	}
	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	_, err = db.Exec("INSERT INTO farms (id, name) VALUES (1, 'Fazenda Norte'), (2, 'Fazenda Sul')")
	require.NoError(t, err)

	return db
}

func testAnimal(earTag, lot string) *Animal {
	return &Animal{
		FarmID:         1,
		EarTag:         earTag,
		Lot:            lot,
		EntryDate:      date("2024-01-01"),
		EntryWeightKg:  300,
		EntryAgeMonths: 12,
		Sex:            "M",
	}
}

func TestAnimalRepository_CreateAndGet(t *testing.T) {
	db := setupHerdDB(t)
	repo := NewAnimalRepository(db, zerolog.Nop())

	race := "Nelore"
	price := 950.0
	animal := testAnimal("BR-1001", "7")
	animal.Race = &race
	animal.PurchasePrice = &price

	require.NoError(t, repo.Create(animal))
	assert.NotZero(t, animal.ID)

	got, err := repo.GetByID(animal.ID)
	require.NoError(t, err)
	assert.Equal(t, "BR-1001", got.EarTag)
	assert.Equal(t, "7", got.Lot)
	assert.Equal(t, "2024-01-01", got.EntryDate.String())
	assert.Equal(t, 300.0, got.EntryWeightKg)
	require.NotNil(t, got.Race)
	assert.Equal(t, "Nelore", *got.Race)
	require.NotNil(t, got.PurchasePrice)
	assert.Equal(t, 950.0, *got.PurchasePrice)
}

func TestAnimalRepository_GetByID_NotFound(t *testing.T) {
	db := setupHerdDB(t)
	repo := NewAnimalRepository(db, zerolog.Nop())

	_, err := repo.GetByID(12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnimalRepository_UniqueEarTagPerLot(t *testing.T) {
	db := setupHerdDB(t)
	repo := NewAnimalRepository(db, zerolog.Nop())

	require.NoError(t, repo.Create(testAnimal("BR-1001", "7")))

	// Same tag and lot on the same farm is a duplicate
	err := repo.Create(testAnimal("BR-1001", "7"))
	assert.Error(t, err)

	// Same tag in a different lot is allowed
	assert.NoError(t, repo.Create(testAnimal("BR-1001", "8")))
}

func TestAnimalRepository_ListByLotAndLots(t *testing.T) {
	db := setupHerdDB(t)
	repo := NewAnimalRepository(db, zerolog.Nop())

	require.NoError(t, repo.Create(testAnimal("BR-1001", "7")))
	require.NoError(t, repo.Create(testAnimal("BR-1002", "7")))
	require.NoError(t, repo.Create(testAnimal("BR-2001", "8")))

	inLot, err := repo.ListByLot(1, "7")
	require.NoError(t, err)
	assert.Len(t, inLot, 2)

	lots, err := repo.Lots(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "8"}, lots)
}

func TestAnimalRepository_ScopedToFarm(t *testing.T) {
	db := setupHerdDB(t)
	repo := NewAnimalRepository(db, zerolog.Nop())

	require.NoError(t, repo.Create(testAnimal("BR-1001", "7")))

	other := testAnimal("BR-9001", "7")
	other.FarmID = 2
	require.NoError(t, repo.Create(other))

	farm1, err := repo.ListByFarm(1)
	require.NoError(t, err)
	assert.Len(t, farm1, 1)
	assert.Equal(t, "BR-1001", farm1[0].EarTag)
}

func TestAnimalRepository_Search(t *testing.T) {
	db := setupHerdDB(t)
	repo := NewAnimalRepository(db, zerolog.Nop())

	require.NoError(t, repo.Create(testAnimal("BR-1001", "7")))
	require.NoError(t, repo.Create(testAnimal("BR-1002", "7")))
	require.NoError(t, repo.Create(testAnimal("AR-5000", "7")))

	matches, err := repo.Search(1, "100")
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	matches, err = repo.Search(1, "AR-")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "AR-5000", matches[0].EarTag)
}

func TestAnimalRepository_DeleteCascadesEvents(t *testing.T) {
	db := setupHerdDB(t)
	repo := NewAnimalRepository(db, zerolog.Nop())
	events := NewEventRepository(db, zerolog.Nop())

	animal := testAnimal("BR-1001", "7")
	require.NoError(t, repo.Create(animal))
	require.NoError(t, events.AddWeighting(&Weighting{AnimalID: animal.ID, FarmID: 1, Date: date("2024-02-01"), WeightKg: 320}))

	require.NoError(t, repo.Delete(animal.ID))

	_, err := repo.GetByID(animal.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM weightings").Scan(&count))
	assert.Zero(t, count, "Cascade should remove the animal's events")

	assert.ErrorIs(t, repo.Delete(animal.ID), ErrNotFound)
}
