package database

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupTestDBForValidation(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// Minimal herd tables; ear_tag is nullable here so the validator's
	// missing-tag check has something to find.
	_, err = db.Exec(`
		CREATE TABLE animals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			farm_id INTEGER NOT NULL DEFAULT 1,
			ear_tag TEXT,
			lot TEXT NOT NULL DEFAULT '1',
			entry_date TEXT NOT NULL,
			entry_weight_kg REAL NOT NULL DEFAULT 300,
			entry_age_months REAL NOT NULL DEFAULT 12,
			sex TEXT NOT NULL DEFAULT 'M'
		)
	`)
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE weightings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			animal_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			weight_kg REAL NOT NULL
		)
	`)
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE sales (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			animal_id INTEGER NOT NULL UNIQUE,
			date TEXT NOT NULL,
			sale_price REAL NOT NULL
		)
	`)
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE deaths (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			animal_id INTEGER NOT NULL UNIQUE,
			date TEXT NOT NULL,
			cause TEXT
		)
	`)
	require.NoError(t, err)

	return db
}

func TestValidateAllAnimalsHaveEarTag_AllPresent(t *testing.T) {
	db := setupTestDBForValidation(t)

	_, err := db.Exec(`
		INSERT INTO animals (ear_tag, entry_date) VALUES
		('BR-1001', '2024-01-01'),
		('BR-1002', '2024-01-05')
	`)
	require.NoError(t, err)

	validator := NewHerdValidator(db)
	missing, err := validator.ValidateAllAnimalsHaveEarTag()
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestValidateAllAnimalsHaveEarTag_SomeMissing(t *testing.T) {
	db := setupTestDBForValidation(t)

	_, err := db.Exec(`
		INSERT INTO animals (ear_tag, entry_date) VALUES
		('BR-1001', '2024-01-01'),
		('', '2024-01-05'),
		('   ', '2024-01-09')
	`)
	require.NoError(t, err)

	validator := NewHerdValidator(db)
	missing, err := validator.ValidateAllAnimalsHaveEarTag()
	require.NoError(t, err)
	assert.Len(t, missing, 2)
}

func TestValidateNoConflictingExits(t *testing.T) {
	db := setupTestDBForValidation(t)

	_, err := db.Exec(`
		INSERT INTO animals (id, ear_tag, entry_date) VALUES
		(1, 'BR-1001', '2024-01-01'),
		(2, 'BR-1002', '2024-01-01'),
		(3, 'BR-1003', '2024-01-01')
	`)
	require.NoError(t, err)

	// Animal 1 sold, animal 2 dead, animal 3 has both records
	_, err = db.Exec(`INSERT INTO sales (animal_id, date, sale_price) VALUES (1, '2024-06-01', 1200), (3, '2024-06-01', 900)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO deaths (animal_id, date, cause) VALUES (2, '2024-05-01', 'illness'), (3, '2024-05-15', NULL)`)
	require.NoError(t, err)

	validator := NewHerdValidator(db)
	conflicting, err := validator.ValidateNoConflictingExits()
	require.NoError(t, err)
	assert.Equal(t, []string{"BR-1003"}, conflicting)
}

func TestValidateWeightingDates(t *testing.T) {
	db := setupTestDBForValidation(t)

	_, err := db.Exec(`INSERT INTO animals (id, ear_tag, entry_date) VALUES (1, 'BR-1001', '2024-03-01')`)
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO weightings (animal_id, date, weight_kg) VALUES
		(1, '2024-02-15', 295),
		(1, '2024-04-01', 330)
	`)
	require.NoError(t, err)

	validator := NewHerdValidator(db)
	early, err := validator.ValidateWeightingDates()
	require.NoError(t, err)
	assert.Equal(t, []string{"BR-1001:2024-02-15"}, early)
}

func TestValidateAll(t *testing.T) {
	db := setupTestDBForValidation(t)

	_, err := db.Exec(`
		INSERT INTO animals (id, ear_tag, entry_date) VALUES
		(1, 'BR-1001', '2024-01-01'),
		(2, '', '2024-01-01')
	`)
	require.NoError(t, err)

	validator := NewHerdValidator(db)

	result, err := validator.ValidateAll()
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Len(t, result.MissingEarTags, 1)
	assert.Empty(t, result.ConflictingExits)
	assert.Empty(t, result.EarlyWeightings)
	assert.Contains(t, result.FormatErrors(), "missing ear tags")
}

func TestValidateAll_CleanHerd(t *testing.T) {
	db := setupTestDBForValidation(t)

	_, err := db.Exec(`INSERT INTO animals (ear_tag, entry_date) VALUES ('BR-1001', '2024-01-01')`)
	require.NoError(t, err)

	validator := NewHerdValidator(db)

	result, err := validator.ValidateAll()
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Equal(t, "All validations passed", result.FormatErrors())
}
