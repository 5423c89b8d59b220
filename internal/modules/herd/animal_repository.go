package herd

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// AnimalRepository handles animal (purchase record) database operations.
type AnimalRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// animalColumns is the column list for the animals table.
// Order must match scanAnimal.
const animalColumns = `id, farm_id, ear_tag, lot, entry_date, entry_weight_kg, entry_age_months, sex, race, purchase_price`

// NewAnimalRepository creates a new animal repository
func NewAnimalRepository(db *sql.DB, log zerolog.Logger) *AnimalRepository {
	return &AnimalRepository{
		db:  db,
		log: log.With().Str("repo", "animal").Logger(),
	}
}

// Create inserts a new animal entry record. The (ear_tag, lot, farm) triple
// must be unique; a second purchase of the same tag in the same lot fails.
func (r *AnimalRepository) Create(animal *Animal) error {
	query := `
		INSERT INTO animals
		(farm_id, ear_tag, lot, entry_date, entry_weight_kg, entry_age_months, sex, race, purchase_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		animal.FarmID,
		animal.EarTag,
		animal.Lot,
		animal.EntryDate,
		animal.EntryWeightKg,
		animal.EntryAgeMonths,
		animal.Sex,
		animal.Race,
		animal.PurchasePrice,
	)
	if err != nil {
		return fmt.Errorf("failed to create animal %s: %w", animal.EarTag, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get animal id: %w", err)
	}
	animal.ID = id

	r.log.Debug().Str("ear_tag", animal.EarTag).Int64("id", id).Msg("Animal created")
	return nil
}

// GetByID returns a single animal by row id.
func (r *AnimalRepository) GetByID(id int64) (*Animal, error) {
	query := fmt.Sprintf("SELECT %s FROM animals WHERE id = ?", animalColumns)
	animal, err := scanAnimal(r.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get animal %d: %w", id, err)
	}
	return animal, nil
}

// ListByFarm returns all animals for a farm ordered by entry date.
func (r *AnimalRepository) ListByFarm(farmID int64) ([]Animal, error) {
	query := fmt.Sprintf("SELECT %s FROM animals WHERE farm_id = ? ORDER BY entry_date, id", animalColumns)
	return r.queryAnimals(query, farmID)
}

// ListByLot returns all animals ever purchased into a lot on a farm.
func (r *AnimalRepository) ListByLot(farmID int64, lot string) ([]Animal, error) {
	query := fmt.Sprintf("SELECT %s FROM animals WHERE farm_id = ? AND lot = ? ORDER BY entry_date, id", animalColumns)
	return r.queryAnimals(query, farmID, lot)
}

// Lots returns the distinct lot identifiers used on a farm.
func (r *AnimalRepository) Lots(farmID int64) ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT lot FROM animals WHERE farm_id = ? ORDER BY lot", farmID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lots: %w", err)
	}
	defer rows.Close()

	var lots []string
	for rows.Next() {
		var lot string
		if err := rows.Scan(&lot); err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

// Search finds animals on a farm whose ear tag contains the given fragment.
func (r *AnimalRepository) Search(farmID int64, earTag string) ([]Animal, error) {
	query := fmt.Sprintf("SELECT %s FROM animals WHERE farm_id = ? AND ear_tag LIKE ? ORDER BY ear_tag", animalColumns)
	return r.queryAnimals(query, farmID, "%"+earTag+"%")
}

// Delete removes an animal and, via cascading foreign keys, all its events.
func (r *AnimalRepository) Delete(id int64) error {
	result, err := r.db.Exec("DELETE FROM animals WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete animal %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	r.log.Info().Int64("id", id).Msg("Animal deleted")
	return nil
}

func (r *AnimalRepository) queryAnimals(query string, args ...interface{}) ([]Animal, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query animals: %w", err)
	}
	defer rows.Close()

	var animals []Animal
	for rows.Next() {
		animal, err := scanAnimalFromRows(rows)
		if err != nil {
			return nil, err
		}
		animals = append(animals, *animal)
	}
	return animals, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAnimal(row rowScanner) (*Animal, error) {
	var a Animal
	err := row.Scan(
		&a.ID,
		&a.FarmID,
		&a.EarTag,
		&a.Lot,
		&a.EntryDate,
		&a.EntryWeightKg,
		&a.EntryAgeMonths,
		&a.Sex,
		&a.Race,
		&a.PurchasePrice,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanAnimalFromRows(rows *sql.Rows) (*Animal, error) {
	animal, err := scanAnimal(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan animal: %w", err)
	}
	return animal, nil
}
