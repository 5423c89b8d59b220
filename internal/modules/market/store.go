// Package market serves historical cattle market prices loaded from a CSV
// file. Prices are cached in memory and refreshed by a scheduler job.
package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pastolab/herdtrack/pkg/temporal"
)

// ErrNoData is returned from lookups when no prices are loaded.
var ErrNoData = errors.New("no market price data loaded")

// PricePoint is the purchase and sale price quoted for one day.
type PricePoint struct {
	Date          temporal.Date `json:"date"`
	PurchasePrice float64       `json:"purchase_price"`
	SalePrice     float64       `json:"sale_price"`
}

// Store caches the historical price series in memory. All reads see the
// snapshot of the last successful load.
type Store struct {
	path string
	log  zerolog.Logger

	mu       sync.RWMutex
	points   []PricePoint // sorted by date ascending
	loadedAt time.Time
}

// NewStore creates a price store reading from the given CSV path. Call
// Load before serving lookups.
func NewStore(path string, log zerolog.Logger) *Store {
	return &Store{
		path: path,
		log:  log.With().Str("component", "market_store").Logger(),
	}
}

// Load reads the CSV file and replaces the cached series. A missing file
// leaves the store empty without an error; malformed rows are skipped.
func (s *Store) Load() error {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Warn().Str("path", s.path).Msg("Historical price file not found, market prices unavailable")
			s.replace(nil)
			return nil
		}
		return fmt.Errorf("failed to open price file: %w", err)
	}
	defer file.Close()

	points, err := parsePrices(file, s.log)
	if err != nil {
		return err
	}

	s.replace(points)
	if len(points) == 0 {
		s.log.Warn().Str("path", s.path).Msg("Price file loaded but contained no valid records")
	} else {
		s.log.Info().Int("records", len(points)).Str("path", s.path).Msg("Historical prices loaded")
	}
	return nil
}

func (s *Store) replace(points []PricePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = points
	s.loadedAt = time.Now()
}

// parsePrices reads the CSV stream. Header names are matched
// case-insensitively by substring ('date', 'purchase', 'sale'); rows with
// only one price fill the missing side from the other.
func parsePrices(r io.Reader, log zerolog.Logger) ([]PricePoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read price file header: %w", err)
	}

	dateIdx, purchaseIdx, saleIdx := -1, -1, -1
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		switch {
		case dateIdx < 0 && strings.Contains(name, "date"):
			dateIdx = i
		case purchaseIdx < 0 && strings.Contains(name, "purchase"):
			purchaseIdx = i
		case saleIdx < 0 && strings.Contains(name, "sale"):
			saleIdx = i
		}
	}
	if dateIdx < 0 || purchaseIdx < 0 || saleIdx < 0 {
		return nil, fmt.Errorf("price file is missing a required header (date, purchase_price, sale_price)")
	}

	byDate := make(map[temporal.Date]PricePoint)
	for rowNum := 1; ; rowNum++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn().Int("row", rowNum).Err(err).Msg("Skipping malformed price row")
			continue
		}

		date, err := temporal.ParseDate(field(record, dateIdx))
		if err != nil {
			log.Warn().Int("row", rowNum).Msg("Skipping price row with missing or invalid date")
			continue
		}

		purchase, hasPurchase := parsePrice(field(record, purchaseIdx))
		sale, hasSale := parsePrice(field(record, saleIdx))
		switch {
		case hasPurchase && hasSale:
		case hasSale:
			purchase = sale
		case hasPurchase:
			sale = purchase
		default:
			log.Warn().Int("row", rowNum).Str("date", date.String()).Msg("Skipping price row without price values")
			continue
		}

		byDate[date] = PricePoint{Date: date, PurchasePrice: purchase, SalePrice: sale}
	}

	points := make([]PricePoint, 0, len(byDate))
	for _, p := range byDate {
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}

func field(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parsePrice(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Closest returns the price point nearest to the target date. Dates before
// the series clamp to the first point, dates after to the last.
func (s *Store) Closest(target temporal.Date) (PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.points) == 0 {
		return PricePoint{}, ErrNoData
	}

	pos := sort.Search(len(s.points), func(i int) bool {
		return !s.points[i].Date.Before(target)
	})
	if pos == 0 {
		return s.points[0], nil
	}
	if pos == len(s.points) {
		return s.points[len(s.points)-1], nil
	}

	before := s.points[pos-1]
	after := s.points[pos]
	if temporal.DaysBetween(before.Date, target) < temporal.DaysBetween(target, after.Date) {
		return before, nil
	}
	return after, nil
}

// Range returns the points between start and end inclusive; nil bounds are
// open. The returned slice is a copy.
func (s *Store) Range(start, end *temporal.Date) []PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []PricePoint
	for _, p := range s.points {
		if start != nil && p.Date.Before(*start) {
			continue
		}
		if end != nil && p.Date.After(*end) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// All returns a copy of the full series.
func (s *Store) All() []PricePoint {
	return s.Range(nil, nil)
}

// Len reports how many price points are loaded.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// LoadedAt reports when the series was last (re)loaded.
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}
