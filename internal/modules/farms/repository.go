// Package farms manages the top-level farm records every other record
// hangs off. Deleting a farm cascades through its locations, animals and
// event histories.
package farms

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned when a farm does not exist.
	ErrNotFound = errors.New("farm not found")
	// ErrDuplicateName is returned when a farm name is already taken.
	ErrDuplicateName = errors.New("farm name already exists")
)

// Farm is a top-level tenant of the system.
type Farm struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Repository handles farm persistence.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new farm repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "farms").Logger(),
	}
}

// Create inserts a new farm and fills in its ID.
func (r *Repository) Create(farm *Farm) error {
	result, err := r.db.Exec(`INSERT INTO farms (name) VALUES (?)`, farm.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("failed to create farm: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get farm id: %w", err)
	}
	farm.ID = id

	r.log.Info().Int64("farm_id", id).Str("name", farm.Name).Msg("Farm created")
	return nil
}

// GetByID returns one farm.
func (r *Repository) GetByID(id int64) (*Farm, error) {
	var farm Farm
	err := r.db.QueryRow(`SELECT id, name FROM farms WHERE id = ?`, id).Scan(&farm.ID, &farm.Name)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get farm %d: %w", id, err)
	}
	return &farm, nil
}

// List returns all farms ordered by name.
func (r *Repository) List() ([]Farm, error) {
	rows, err := r.db.Query(`SELECT id, name FROM farms ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list farms: %w", err)
	}
	defer rows.Close()

	var farms []Farm
	for rows.Next() {
		var farm Farm
		if err := rows.Scan(&farm.ID, &farm.Name); err != nil {
			return nil, fmt.Errorf("failed to scan farm: %w", err)
		}
		farms = append(farms, farm)
	}
	return farms, rows.Err()
}

// Rename updates a farm's name.
func (r *Repository) Rename(id int64, name string) error {
	result, err := r.db.Exec(`UPDATE farms SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("failed to rename farm %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rename of farm %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a farm. Foreign keys cascade the delete through every
// location, animal and event row that belongs to it.
func (r *Repository) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM farms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete farm %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete of farm %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	r.log.Info().Int64("farm_id", id).Msg("Farm deleted")
	return nil
}

// Exists reports whether a farm exists.
func (r *Repository) Exists(id int64) (bool, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM farms WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check farm %d: %w", id, err)
	}
	return count > 0, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}
