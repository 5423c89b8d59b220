package database

import (
	"database/sql"
	"fmt"
	"strings"
)

// HerdValidator runs consistency checks over the herd tables
type HerdValidator struct {
	db *sql.DB
}

// ValidationResult contains the results of all validation checks
type ValidationResult struct {
	IsValid          bool
	MissingEarTags   []string // Animal IDs without an ear tag
	ConflictingExits []string // Animals with both a sale and a death record
	EarlyWeightings  []string // Weightings dated before the animal's entry date
}

// NewHerdValidator creates a new herd validator
func NewHerdValidator(db *sql.DB) *HerdValidator {
	return &HerdValidator{
		db: db,
	}
}

// ValidateAllAnimalsHaveEarTag checks that every animal has a non-empty ear tag.
// Returns the row IDs of animals that are missing one.
func (v *HerdValidator) ValidateAllAnimalsHaveEarTag() ([]string, error) {
	query := `
		SELECT id
		FROM animals
		WHERE ear_tag IS NULL OR ear_tag = '' OR TRIM(ear_tag) = ''
	`

	rows, err := v.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query animals: %w", err)
	}
	defer rows.Close()

	var missing []string
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan animal id: %w", err)
		}
		missing = append(missing, fmt.Sprintf("%d", id))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return missing, nil
}

// ValidateNoConflictingExits checks that no animal has both a sale and a death
// record. Returns the ear tags of animals recorded as exited twice.
func (v *HerdValidator) ValidateNoConflictingExits() ([]string, error) {
	query := `
		SELECT a.ear_tag
		FROM animals a
		INNER JOIN sales s ON s.animal_id = a.id
		INNER JOIN deaths d ON d.animal_id = a.id
	`

	rows, err := v.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicting exits: %w", err)
	}
	defer rows.Close()

	var conflicting []string
	for rows.Next() {
		var earTag string
		if err := rows.Scan(&earTag); err != nil {
			return nil, fmt.Errorf("failed to scan conflicting exit: %w", err)
		}
		conflicting = append(conflicting, earTag)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return conflicting, nil
}

// ValidateWeightingDates checks that no weighting predates its animal's entry.
// Returns offending records (format: "ear_tag:date").
func (v *HerdValidator) ValidateWeightingDates() ([]string, error) {
	query := `
		SELECT a.ear_tag, w.date
		FROM weightings w
		INNER JOIN animals a ON a.id = w.animal_id
		WHERE w.date < a.entry_date
	`

	rows, err := v.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query early weightings: %w", err)
	}
	defer rows.Close()

	var early []string
	for rows.Next() {
		var earTag, date string
		if err := rows.Scan(&earTag, &date); err != nil {
			return nil, fmt.Errorf("failed to scan early weighting: %w", err)
		}
		early = append(early, fmt.Sprintf("%s:%s", earTag, date))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return early, nil
}

// ValidateAll runs all validation checks and returns a comprehensive result
func (v *HerdValidator) ValidateAll() (*ValidationResult, error) {
	result := &ValidationResult{
		IsValid:          true,
		MissingEarTags:   []string{},
		ConflictingExits: []string{},
		EarlyWeightings:  []string{},
	}

	missing, err := v.ValidateAllAnimalsHaveEarTag()
	if err != nil {
		return nil, fmt.Errorf("failed to validate ear tag presence: %w", err)
	}
	result.MissingEarTags = missing
	if len(missing) > 0 {
		result.IsValid = false
	}

	conflicting, err := v.ValidateNoConflictingExits()
	if err != nil {
		return nil, fmt.Errorf("failed to validate exits: %w", err)
	}
	result.ConflictingExits = conflicting
	if len(conflicting) > 0 {
		result.IsValid = false
	}

	early, err := v.ValidateWeightingDates()
	if err != nil {
		return nil, fmt.Errorf("failed to validate weighting dates: %w", err)
	}
	result.EarlyWeightings = early
	if len(early) > 0 {
		result.IsValid = false
	}

	return result, nil
}

// FormatErrors formats validation errors for display
func (r *ValidationResult) FormatErrors() string {
	if r.IsValid {
		return "All validations passed"
	}

	var parts []string

	if len(r.MissingEarTags) > 0 {
		parts = append(parts, fmt.Sprintf("Animals missing ear tags (%d): %s", len(r.MissingEarTags), strings.Join(r.MissingEarTags, ", ")))
	}

	if len(r.ConflictingExits) > 0 {
		parts = append(parts, fmt.Sprintf("Conflicting exits (%d): %s", len(r.ConflictingExits), strings.Join(r.ConflictingExits, ", ")))
	}

	if len(r.EarlyWeightings) > 0 {
		parts = append(parts, fmt.Sprintf("Weightings before entry (%d): %s", len(r.EarlyWeightings), strings.Join(r.EarlyWeightings, ", ")))
	}

	return strings.Join(parts, "\n")
}
