package herd

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pastolab/herdtrack/internal/modules/kpi"
	"github.com/pastolab/herdtrack/pkg/temporal"
)

// ErrAlreadyExited is returned when recording a second exit for an animal.
var ErrAlreadyExited = errors.New("animal already has an exit record")

// EventRepository handles lifecycle event database operations: weightings,
// location changes, diet logs, sanitary protocols, sales and deaths.
type EventRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *sql.DB, log zerolog.Logger) *EventRepository {
	return &EventRepository{
		db:  db,
		log: log.With().Str("repo", "events").Logger(),
	}
}

// ---------------------------------------------------------------------------
// Weightings

// AddWeighting records a weight measurement for an animal.
func (r *EventRepository) AddWeighting(w *Weighting) error {
	result, err := r.db.Exec(
		"INSERT INTO weightings (animal_id, farm_id, date, weight_kg) VALUES (?, ?, ?, ?)",
		w.AnimalID, w.FarmID, w.Date, w.WeightKg,
	)
	if err != nil {
		return fmt.Errorf("failed to add weighting: %w", err)
	}
	w.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get weighting id: %w", err)
	}
	return nil
}

// ListWeightingsByAnimal returns all weightings for one animal, oldest first.
func (r *EventRepository) ListWeightingsByAnimal(animalID int64) ([]Weighting, error) {
	rows, err := r.db.Query(
		"SELECT id, animal_id, farm_id, date, weight_kg FROM weightings WHERE animal_id = ? ORDER BY date, id",
		animalID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query weightings: %w", err)
	}
	defer rows.Close()
	return scanWeightings(rows)
}

// ListWeightingsByFarm returns weightings for a farm, optionally bounded by
// an inclusive date range, newest first.
func (r *EventRepository) ListWeightingsByFarm(farmID int64, start, end *temporal.Date) ([]Weighting, error) {
	query := "SELECT id, animal_id, farm_id, date, weight_kg FROM weightings WHERE farm_id = ?"
	args := []interface{}{farmID}
	query, args = appendDateRange(query, args, start, end)
	query += " ORDER BY date DESC, id DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query weightings: %w", err)
	}
	defer rows.Close()
	return scanWeightings(rows)
}

func scanWeightings(rows *sql.Rows) ([]Weighting, error) {
	var weightings []Weighting
	for rows.Next() {
		var w Weighting
		if err := rows.Scan(&w.ID, &w.AnimalID, &w.FarmID, &w.Date, &w.WeightKg); err != nil {
			return nil, fmt.Errorf("failed to scan weighting: %w", err)
		}
		weightings = append(weightings, w)
	}
	return weightings, rows.Err()
}

// ---------------------------------------------------------------------------
// Location changes

// locationChangeSelect joins in the location and sublocation names so
// callers never need a second lookup.
const locationChangeSelect = `
	SELECT lc.id, lc.animal_id, lc.farm_id, lc.location_id, l.name,
	       lc.sublocation_id, sl.name, lc.date, lc.weight_kg
	FROM location_changes lc
	INNER JOIN locations l ON l.id = lc.location_id
	LEFT JOIN sublocations sl ON sl.id = lc.sublocation_id
`

// AddLocationChange records a move. The weight is optional; when present it
// feeds the animal's weight timeline.
func (r *EventRepository) AddLocationChange(lc *LocationChange) error {
	result, err := r.db.Exec(
		"INSERT INTO location_changes (animal_id, farm_id, location_id, sublocation_id, date, weight_kg) VALUES (?, ?, ?, ?, ?, ?)",
		lc.AnimalID, lc.FarmID, lc.LocationID, lc.SublocationID, lc.Date, lc.WeightKg,
	)
	if err != nil {
		return fmt.Errorf("failed to add location change: %w", err)
	}
	lc.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get location change id: %w", err)
	}
	return nil
}

// ListLocationChangesByAnimal returns all moves for one animal, oldest first.
func (r *EventRepository) ListLocationChangesByAnimal(animalID int64) ([]LocationChange, error) {
	rows, err := r.db.Query(locationChangeSelect+" WHERE lc.animal_id = ? ORDER BY lc.date, lc.id", animalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query location changes: %w", err)
	}
	defer rows.Close()
	return scanLocationChanges(rows)
}

// ListLocationChangesByFarm returns moves for a farm, newest first.
func (r *EventRepository) ListLocationChangesByFarm(farmID int64, start, end *temporal.Date) ([]LocationChange, error) {
	query := locationChangeSelect + " WHERE lc.farm_id = ?"
	args := []interface{}{farmID}
	query, args = appendPrefixedDateRange(query, args, "lc", start, end)
	query += " ORDER BY lc.date DESC, lc.id DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query location changes: %w", err)
	}
	defer rows.Close()
	return scanLocationChanges(rows)
}

func scanLocationChanges(rows *sql.Rows) ([]LocationChange, error) {
	var changes []LocationChange
	for rows.Next() {
		var lc LocationChange
		err := rows.Scan(&lc.ID, &lc.AnimalID, &lc.FarmID, &lc.LocationID, &lc.LocationName,
			&lc.SublocationID, &lc.SublocationName, &lc.Date, &lc.WeightKg)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location change: %w", err)
		}
		changes = append(changes, lc)
	}
	return changes, rows.Err()
}

// ---------------------------------------------------------------------------
// Diet logs

// AddDietLog records a diet change.
func (r *EventRepository) AddDietLog(d *DietLog) error {
	result, err := r.db.Exec(
		"INSERT INTO diet_logs (animal_id, farm_id, date, diet_type, daily_intake_percentage, weight_kg) VALUES (?, ?, ?, ?, ?, ?)",
		d.AnimalID, d.FarmID, d.Date, d.DietType, d.DailyIntakePct, d.WeightKg,
	)
	if err != nil {
		return fmt.Errorf("failed to add diet log: %w", err)
	}
	d.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get diet log id: %w", err)
	}
	return nil
}

// ListDietLogsByAnimal returns all diet changes for one animal, oldest first.
func (r *EventRepository) ListDietLogsByAnimal(animalID int64) ([]DietLog, error) {
	rows, err := r.db.Query(
		"SELECT id, animal_id, farm_id, date, diet_type, daily_intake_percentage, weight_kg FROM diet_logs WHERE animal_id = ? ORDER BY date, id",
		animalID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query diet logs: %w", err)
	}
	defer rows.Close()
	return scanDietLogs(rows)
}

// ListDietLogsByFarm returns diet changes for a farm, newest first.
func (r *EventRepository) ListDietLogsByFarm(farmID int64, start, end *temporal.Date) ([]DietLog, error) {
	query := "SELECT id, animal_id, farm_id, date, diet_type, daily_intake_percentage, weight_kg FROM diet_logs WHERE farm_id = ?"
	args := []interface{}{farmID}
	query, args = appendDateRange(query, args, start, end)
	query += " ORDER BY date DESC, id DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query diet logs: %w", err)
	}
	defer rows.Close()
	return scanDietLogs(rows)
}

func scanDietLogs(rows *sql.Rows) ([]DietLog, error) {
	var logs []DietLog
	for rows.Next() {
		var d DietLog
		if err := rows.Scan(&d.ID, &d.AnimalID, &d.FarmID, &d.Date, &d.DietType, &d.DailyIntakePct, &d.WeightKg); err != nil {
			return nil, fmt.Errorf("failed to scan diet log: %w", err)
		}
		logs = append(logs, d)
	}
	return logs, rows.Err()
}

// ---------------------------------------------------------------------------
// Sanitary protocols

// AddSanitaryProtocol records a health treatment.
func (r *EventRepository) AddSanitaryProtocol(p *SanitaryProtocol) error {
	result, err := r.db.Exec(
		"INSERT INTO sanitary_protocols (animal_id, farm_id, date, protocol_type, product_name, dosage, invoice_number) VALUES (?, ?, ?, ?, ?, ?, ?)",
		p.AnimalID, p.FarmID, p.Date, p.ProtocolType, p.ProductName, p.Dosage, p.InvoiceNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to add sanitary protocol: %w", err)
	}
	p.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get sanitary protocol id: %w", err)
	}
	return nil
}

// ListSanitaryProtocolsByAnimal returns treatments for one animal, oldest first.
func (r *EventRepository) ListSanitaryProtocolsByAnimal(animalID int64) ([]SanitaryProtocol, error) {
	rows, err := r.db.Query(
		"SELECT id, animal_id, farm_id, date, protocol_type, product_name, dosage, invoice_number FROM sanitary_protocols WHERE animal_id = ? ORDER BY date, id",
		animalID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sanitary protocols: %w", err)
	}
	defer rows.Close()
	return scanProtocols(rows)
}

// ListSanitaryProtocolsByFarm returns treatments for a farm, newest first.
func (r *EventRepository) ListSanitaryProtocolsByFarm(farmID int64, start, end *temporal.Date) ([]SanitaryProtocol, error) {
	query := "SELECT id, animal_id, farm_id, date, protocol_type, product_name, dosage, invoice_number FROM sanitary_protocols WHERE farm_id = ?"
	args := []interface{}{farmID}
	query, args = appendDateRange(query, args, start, end)
	query += " ORDER BY date DESC, id DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sanitary protocols: %w", err)
	}
	defer rows.Close()
	return scanProtocols(rows)
}

func scanProtocols(rows *sql.Rows) ([]SanitaryProtocol, error) {
	var protocols []SanitaryProtocol
	for rows.Next() {
		var p SanitaryProtocol
		err := rows.Scan(&p.ID, &p.AnimalID, &p.FarmID, &p.Date, &p.ProtocolType, &p.ProductName, &p.Dosage, &p.InvoiceNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sanitary protocol: %w", err)
		}
		protocols = append(protocols, p)
	}
	return protocols, rows.Err()
}

// ---------------------------------------------------------------------------
// Exits

// RecordSale marks an animal as sold. Fails with ErrAlreadyExited when the
// animal already has a sale or death record.
func (r *EventRepository) RecordSale(s *Sale) error {
	exited, err := r.hasExit(s.AnimalID)
	if err != nil {
		return err
	}
	if exited {
		return ErrAlreadyExited
	}

	result, err := r.db.Exec(
		"INSERT INTO sales (animal_id, farm_id, date, sale_price, exit_weight_kg) VALUES (?, ?, ?, ?, ?)",
		s.AnimalID, s.FarmID, s.Date, s.SalePrice, s.ExitWeightKg,
	)
	if err != nil {
		return fmt.Errorf("failed to record sale: %w", err)
	}
	s.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get sale id: %w", err)
	}

	r.log.Info().Int64("animal_id", s.AnimalID).Str("date", s.Date.String()).Msg("Sale recorded")
	return nil
}

// RecordDeath marks an animal as dead. Fails with ErrAlreadyExited when the
// animal already has a sale or death record.
func (r *EventRepository) RecordDeath(d *Death) error {
	exited, err := r.hasExit(d.AnimalID)
	if err != nil {
		return err
	}
	if exited {
		return ErrAlreadyExited
	}

	result, err := r.db.Exec(
		"INSERT INTO deaths (animal_id, farm_id, date, cause) VALUES (?, ?, ?, ?)",
		d.AnimalID, d.FarmID, d.Date, d.Cause,
	)
	if err != nil {
		return fmt.Errorf("failed to record death: %w", err)
	}
	d.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get death id: %w", err)
	}

	r.log.Info().Int64("animal_id", d.AnimalID).Str("date", d.Date.String()).Msg("Death recorded")
	return nil
}

func (r *EventRepository) hasExit(animalID int64) (bool, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT (SELECT COUNT(*) FROM sales WHERE animal_id = ?) +
		       (SELECT COUNT(*) FROM deaths WHERE animal_id = ?)
	`, animalID, animalID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check exit records: %w", err)
	}
	return count > 0, nil
}

// GetSale returns the sale record for an animal, or nil if not sold.
func (r *EventRepository) GetSale(animalID int64) (*Sale, error) {
	var s Sale
	err := r.db.QueryRow(
		"SELECT id, animal_id, farm_id, date, sale_price, exit_weight_kg FROM sales WHERE animal_id = ?",
		animalID,
	).Scan(&s.ID, &s.AnimalID, &s.FarmID, &s.Date, &s.SalePrice, &s.ExitWeightKg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	return &s, nil
}

// GetDeath returns the death record for an animal, or nil if alive.
func (r *EventRepository) GetDeath(animalID int64) (*Death, error) {
	var d Death
	err := r.db.QueryRow(
		"SELECT id, animal_id, farm_id, date, cause FROM deaths WHERE animal_id = ?",
		animalID,
	).Scan(&d.ID, &d.AnimalID, &d.FarmID, &d.Date, &d.Cause)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get death: %w", err)
	}
	return &d, nil
}

// ListSalesByFarm returns sales for a farm, optionally bounded by an
// inclusive date range, newest first.
func (r *EventRepository) ListSalesByFarm(farmID int64, start, end *temporal.Date) ([]Sale, error) {
	query := "SELECT id, animal_id, farm_id, date, sale_price, exit_weight_kg FROM sales WHERE farm_id = ?"
	args := []interface{}{farmID}
	query, args = appendDateRange(query, args, start, end)
	query += " ORDER BY date DESC, id DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.AnimalID, &s.FarmID, &s.Date, &s.SalePrice, &s.ExitWeightKg); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

// ListDeathsByFarm returns deaths for a farm, newest first.
func (r *EventRepository) ListDeathsByFarm(farmID int64, start, end *temporal.Date) ([]Death, error) {
	query := "SELECT id, animal_id, farm_id, date, cause FROM deaths WHERE farm_id = ?"
	args := []interface{}{farmID}
	query, args = appendDateRange(query, args, start, end)
	query += " ORDER BY date DESC, id DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deaths: %w", err)
	}
	defer rows.Close()

	var deaths []Death
	for rows.Next() {
		var d Death
		if err := rows.Scan(&d.ID, &d.AnimalID, &d.FarmID, &d.Date, &d.Cause); err != nil {
			return nil, fmt.Errorf("failed to scan death: %w", err)
		}
		deaths = append(deaths, d)
	}
	return deaths, rows.Err()
}

// ---------------------------------------------------------------------------
// History assembly

// LoadHistory assembles the full event history of one animal for the
// metrics engine.
func (r *EventRepository) LoadHistory(animal Animal) (kpi.History, error) {
	weightings, err := r.ListWeightingsByAnimal(animal.ID)
	if err != nil {
		return kpi.History{}, err
	}
	changes, err := r.ListLocationChangesByAnimal(animal.ID)
	if err != nil {
		return kpi.History{}, err
	}
	diets, err := r.ListDietLogsByAnimal(animal.ID)
	if err != nil {
		return kpi.History{}, err
	}
	protocols, err := r.ListSanitaryProtocolsByAnimal(animal.ID)
	if err != nil {
		return kpi.History{}, err
	}
	sale, err := r.GetSale(animal.ID)
	if err != nil {
		return kpi.History{}, err
	}
	death, err := r.GetDeath(animal.ID)
	if err != nil {
		return kpi.History{}, err
	}

	return assembleHistory(animal, weightings, changes, diets, protocols, sale, death), nil
}

// LoadHistories assembles histories for every animal on a farm in six
// queries total, instead of six per animal.
func (r *EventRepository) LoadHistories(animals []Animal) ([]kpi.History, error) {
	if len(animals) == 0 {
		return nil, nil
	}
	farmID := animals[0].FarmID

	weightings, err := r.ListWeightingsByFarm(farmID, nil, nil)
	if err != nil {
		return nil, err
	}
	changes, err := r.ListLocationChangesByFarm(farmID, nil, nil)
	if err != nil {
		return nil, err
	}
	diets, err := r.ListDietLogsByFarm(farmID, nil, nil)
	if err != nil {
		return nil, err
	}
	protocols, err := r.ListSanitaryProtocolsByFarm(farmID, nil, nil)
	if err != nil {
		return nil, err
	}
	sales, err := r.ListSalesByFarm(farmID, nil, nil)
	if err != nil {
		return nil, err
	}
	deaths, err := r.ListDeathsByFarm(farmID, nil, nil)
	if err != nil {
		return nil, err
	}

	weightingsByAnimal := make(map[int64][]Weighting)
	for _, w := range weightings {
		weightingsByAnimal[w.AnimalID] = append(weightingsByAnimal[w.AnimalID], w)
	}
	changesByAnimal := make(map[int64][]LocationChange)
	for _, lc := range changes {
		changesByAnimal[lc.AnimalID] = append(changesByAnimal[lc.AnimalID], lc)
	}
	dietsByAnimal := make(map[int64][]DietLog)
	for _, d := range diets {
		dietsByAnimal[d.AnimalID] = append(dietsByAnimal[d.AnimalID], d)
	}
	protocolsByAnimal := make(map[int64][]SanitaryProtocol)
	for _, p := range protocols {
		protocolsByAnimal[p.AnimalID] = append(protocolsByAnimal[p.AnimalID], p)
	}
	saleByAnimal := make(map[int64]Sale)
	for _, s := range sales {
		saleByAnimal[s.AnimalID] = s
	}
	deathByAnimal := make(map[int64]Death)
	for _, d := range deaths {
		deathByAnimal[d.AnimalID] = d
	}

	histories := make([]kpi.History, 0, len(animals))
	for _, animal := range animals {
		var sale *Sale
		if s, ok := saleByAnimal[animal.ID]; ok {
			sale = &s
		}
		var death *Death
		if d, ok := deathByAnimal[animal.ID]; ok {
			death = &d
		}
		histories = append(histories, assembleHistory(
			animal,
			weightingsByAnimal[animal.ID],
			changesByAnimal[animal.ID],
			dietsByAnimal[animal.ID],
			protocolsByAnimal[animal.ID],
			sale,
			death,
		))
	}
	return histories, nil
}

func assembleHistory(
	animal Animal,
	weightings []Weighting,
	changes []LocationChange,
	diets []DietLog,
	protocols []SanitaryProtocol,
	sale *Sale,
	death *Death,
) kpi.History {
	h := kpi.History{
		Animal: kpi.Animal{
			ID:             animal.ID,
			EarTag:         animal.EarTag,
			Lot:            animal.Lot,
			Sex:            animal.Sex,
			EntryDate:      animal.EntryDate,
			EntryAgeMonths: animal.EntryAgeMonths,
			EntryWeightKg:  animal.EntryWeightKg,
			PurchasePrice:  animal.PurchasePrice,
		},
	}
	if animal.Race != nil {
		h.Animal.Race = *animal.Race
	}

	for _, w := range weightings {
		h.Weightings = append(h.Weightings, kpi.WeightingEvent{ID: w.ID, Date: w.Date, WeightKg: w.WeightKg})
	}
	for _, lc := range changes {
		h.LocationChanges = append(h.LocationChanges, kpi.LocationChangeEvent{
			ID:              lc.ID,
			Date:            lc.Date,
			LocationID:      lc.LocationID,
			LocationName:    lc.LocationName,
			SublocationID:   lc.SublocationID,
			SublocationName: lc.SublocationName,
			WeightKg:        lc.WeightKg,
		})
	}
	for _, d := range diets {
		h.DietChanges = append(h.DietChanges, kpi.DietChangeEvent{
			ID:             d.ID,
			Date:           d.Date,
			DietType:       d.DietType,
			DailyIntakePct: d.DailyIntakePct,
			WeightKg:       d.WeightKg,
		})
	}
	for _, p := range protocols {
		event := kpi.SanitaryProtocolEvent{ID: p.ID, Date: p.Date, ProtocolType: p.ProtocolType}
		if p.ProductName != nil {
			event.ProductName = *p.ProductName
		}
		if p.Dosage != nil {
			event.Dosage = *p.Dosage
		}
		if p.InvoiceNumber != nil {
			event.InvoiceNumber = *p.InvoiceNumber
		}
		h.Protocols = append(h.Protocols, event)
	}
	if sale != nil {
		h.Sale = &kpi.SaleEvent{ID: sale.ID, Date: sale.Date, SalePrice: sale.SalePrice, ExitWeightKg: sale.ExitWeightKg}
	}
	if death != nil {
		event := &kpi.DeathEvent{ID: death.ID, Date: death.Date}
		if death.Cause != nil {
			event.Cause = *death.Cause
		}
		h.Death = event
	}
	return h
}

// appendDateRange adds inclusive date bounds on the bare "date" column.
func appendDateRange(query string, args []interface{}, start, end *temporal.Date) (string, []interface{}) {
	if start != nil {
		query += " AND date >= ?"
		args = append(args, *start)
	}
	if end != nil {
		query += " AND date <= ?"
		args = append(args, *end)
	}
	return query, args
}

// appendPrefixedDateRange adds inclusive date bounds on an aliased column.
func appendPrefixedDateRange(query string, args []interface{}, alias string, start, end *temporal.Date) (string, []interface{}) {
	if start != nil {
		query += fmt.Sprintf(" AND %s.date >= ?", alias)
		args = append(args, *start)
	}
	if end != nil {
		query += fmt.Sprintf(" AND %s.date <= ?", alias)
		args = append(args, *end)
	}
	return query, args
}
