package locations

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned when a location or sublocation does not exist.
	ErrNotFound = errors.New("location not found")
	// ErrDuplicateName is returned when a location name is already taken
	// on the farm.
	ErrDuplicateName = errors.New("location name already exists on this farm")
)

const locationColumns = `id, farm_id, name, area_hectares, grass_type, location_type, geo_json_data`

const sublocationColumns = `id, farm_id, parent_location_id, name, area_hectares, geo_json_data`

// Repository handles location and sublocation persistence.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new location repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "locations").Logger(),
	}
}

// Create inserts a new location. Names are unique per farm.
func (r *Repository) Create(loc *Location) error {
	taken, err := r.nameTaken(loc.FarmID, loc.Name, 0)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicateName
	}

	result, err := r.db.Exec(`
		INSERT INTO locations (farm_id, name, area_hectares, grass_type, location_type, geo_json_data)
		VALUES (?, ?, ?, ?, ?, ?)`,
		loc.FarmID, loc.Name, loc.AreaHectares, loc.GrassType, loc.LocationType, loc.GeoJSONData)
	if err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get location id: %w", err)
	}
	loc.ID = id

	r.log.Info().Int64("location_id", id).Str("name", loc.Name).Msg("Location created")
	return nil
}

// GetByID returns one location, scoped to a farm.
func (r *Repository) GetByID(farmID, id int64) (*Location, error) {
	row := r.db.QueryRow(`SELECT `+locationColumns+` FROM locations WHERE id = ? AND farm_id = ?`, id, farmID)
	loc, err := scanLocation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location %d: %w", id, err)
	}
	return loc, nil
}

// ListByFarm returns a farm's locations ordered by name.
func (r *Repository) ListByFarm(farmID int64) ([]Location, error) {
	rows, err := r.db.Query(`SELECT `+locationColumns+` FROM locations WHERE farm_id = ? ORDER BY name`, farmID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var locs []Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locs = append(locs, *loc)
	}
	return locs, rows.Err()
}

// Update rewrites a location's editable fields.
func (r *Repository) Update(loc *Location) error {
	taken, err := r.nameTaken(loc.FarmID, loc.Name, loc.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicateName
	}

	result, err := r.db.Exec(`
		UPDATE locations
		SET name = ?, area_hectares = ?, grass_type = ?, location_type = ?, geo_json_data = ?
		WHERE id = ? AND farm_id = ?`,
		loc.Name, loc.AreaHectares, loc.GrassType, loc.LocationType, loc.GeoJSONData, loc.ID, loc.FarmID)
	if err != nil {
		return fmt.Errorf("failed to update location %d: %w", loc.ID, err)
	}
	return requireAffected(result, loc.ID)
}

// Delete removes a location and, via cascade, its sublocations and the
// location change events that reference it.
func (r *Repository) Delete(farmID, id int64) error {
	result, err := r.db.Exec(`DELETE FROM locations WHERE id = ? AND farm_id = ?`, id, farmID)
	if err != nil {
		return fmt.Errorf("failed to delete location %d: %w", id, err)
	}
	if err := requireAffected(result, id); err != nil {
		return err
	}
	r.log.Info().Int64("location_id", id).Msg("Location deleted")
	return nil
}

// CreateSublocation inserts a new sublocation under a parent location.
func (r *Repository) CreateSublocation(sub *Sublocation) error {
	result, err := r.db.Exec(`
		INSERT INTO sublocations (farm_id, parent_location_id, name, area_hectares, geo_json_data)
		VALUES (?, ?, ?, ?, ?)`,
		sub.FarmID, sub.ParentLocationID, sub.Name, sub.AreaHectares, sub.GeoJSONData)
	if err != nil {
		return fmt.Errorf("failed to create sublocation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get sublocation id: %w", err)
	}
	sub.ID = id

	r.log.Info().Int64("sublocation_id", id).Int64("location_id", sub.ParentLocationID).
		Str("name", sub.Name).Msg("Sublocation created")
	return nil
}

// GetSublocationByID returns one sublocation, scoped to a farm.
func (r *Repository) GetSublocationByID(farmID, id int64) (*Sublocation, error) {
	row := r.db.QueryRow(`SELECT `+sublocationColumns+` FROM sublocations WHERE id = ? AND farm_id = ?`, id, farmID)
	sub, err := scanSublocation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sublocation %d: %w", id, err)
	}
	return sub, nil
}

// ListSublocations returns the sublocations under one location, by name.
func (r *Repository) ListSublocations(locationID int64) ([]Sublocation, error) {
	rows, err := r.db.Query(`SELECT `+sublocationColumns+` FROM sublocations WHERE parent_location_id = ? ORDER BY name`, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sublocations: %w", err)
	}
	defer rows.Close()

	var subs []Sublocation
	for rows.Next() {
		sub, err := scanSublocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sublocation: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// ListSublocationsByFarm returns every sublocation on a farm, grouped in
// memory by callers that need the full layout in one pass.
func (r *Repository) ListSublocationsByFarm(farmID int64) ([]Sublocation, error) {
	rows, err := r.db.Query(`SELECT `+sublocationColumns+` FROM sublocations WHERE farm_id = ? ORDER BY parent_location_id, name`, farmID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sublocations: %w", err)
	}
	defer rows.Close()

	var subs []Sublocation
	for rows.Next() {
		sub, err := scanSublocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sublocation: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// UpdateSublocation rewrites a sublocation's editable fields.
func (r *Repository) UpdateSublocation(sub *Sublocation) error {
	result, err := r.db.Exec(`
		UPDATE sublocations SET name = ?, area_hectares = ?, geo_json_data = ?
		WHERE id = ? AND farm_id = ?`,
		sub.Name, sub.AreaHectares, sub.GeoJSONData, sub.ID, sub.FarmID)
	if err != nil {
		return fmt.Errorf("failed to update sublocation %d: %w", sub.ID, err)
	}
	return requireAffected(result, sub.ID)
}

// DeleteSublocation removes a sublocation. Location change events that
// referenced it keep their location but lose the sublocation.
func (r *Repository) DeleteSublocation(farmID, id int64) error {
	result, err := r.db.Exec(`DELETE FROM sublocations WHERE id = ? AND farm_id = ?`, id, farmID)
	if err != nil {
		return fmt.Errorf("failed to delete sublocation %d: %w", id, err)
	}
	if err := requireAffected(result, id); err != nil {
		return err
	}
	r.log.Info().Int64("sublocation_id", id).Msg("Sublocation deleted")
	return nil
}

func (r *Repository) nameTaken(farmID int64, name string, excludeID int64) (bool, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM locations WHERE farm_id = ? AND LOWER(name) = ? AND id != ?`,
		farmID, strings.ToLower(name), excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check location name: %w", err)
	}
	return count > 0, nil
}

func requireAffected(result sql.Result, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLocation(row rowScanner) (*Location, error) {
	var loc Location
	err := row.Scan(&loc.ID, &loc.FarmID, &loc.Name, &loc.AreaHectares,
		&loc.GrassType, &loc.LocationType, &loc.GeoJSONData)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func scanSublocation(row rowScanner) (*Sublocation, error) {
	var sub Sublocation
	err := row.Scan(&sub.ID, &sub.FarmID, &sub.ParentLocationID, &sub.Name,
		&sub.AreaHectares, &sub.GeoJSONData)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
