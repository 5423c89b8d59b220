// Package temporal provides calendar-date arithmetic for lifecycle records.
//
// All dates in the system are naive calendar dates (no time of day, no
// timezone). They are stored and exchanged as "YYYY-MM-DD" strings and
// normalized to UTC midnight internally so subtraction always yields whole
// days.
package temporal

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DateFormat is the wire and storage format for all calendar dates.
const DateFormat = "2006-01-02"

// DaysPerMonth is the average month length used to convert day counts into
// fractional months for age reporting.
const DaysPerMonth = 30.44

// Date is a naive calendar date.
type Date struct {
	t time.Time
}

// NewDate builds a Date from year, month, day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// MustParseDate parses a "YYYY-MM-DD" string and panics on failure.
// Intended for fixtures and compile-time constants only.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Today returns the current calendar date.
func Today() Date {
	now := time.Now()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// String formats the date as "YYYY-MM-DD".
func (d Date) String() string {
	return d.t.Format(DateFormat)
}

// MarshalJSON encodes the date as a quoted "YYYY-MM-DD" string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a quoted "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer; dates are stored as "YYYY-MM-DD" text.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner for TEXT date columns.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
		return nil
	case nil:
		*d = Date{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// IsZero reports whether the date is the zero value.
func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	return d.t.Before(other.t)
}

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool {
	return d.t.After(other.t)
}

// Equal reports whether two dates are the same calendar day.
func (d Date) Equal(other Date) bool {
	return d.t.Equal(other.t)
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// DaysBetween returns the whole-day count from start to end, exclusive of the
// start day: DaysBetween(d, d) == 0 and DaysBetween(d, d+1) == 1. Negative
// when end precedes start.
func DaysBetween(start, end Date) int {
	return int(end.t.Sub(start.t).Hours() / 24)
}

// AgeInMonths converts an age at a reference date into fractional months:
// the age already held at baseline plus the elapsed days divided by the
// average month length. Result is not rounded; presentation layers round to
// two decimals.
func AgeInMonths(baselineAgeMonths float64, baseline, asOf Date) float64 {
	return baselineAgeMonths + float64(DaysBetween(baseline, asOf))/DaysPerMonth
}

// MinDate returns the earlier of two dates.
func MinDate(a, b Date) Date {
	if b.Before(a) {
		return b
	}
	return a
}
