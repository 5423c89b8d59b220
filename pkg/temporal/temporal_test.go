package temporal

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		end      string
		expected int
	}{
		{"same day", "2024-01-01", "2024-01-01", 0},
		{"one day", "2024-01-01", "2024-01-02", 1},
		{"ninety days", "2024-01-01", "2024-04-01", 91}, // 2024 is a leap year
		{"reversed is negative", "2024-04-01", "2024-01-01", -91},
		{"across year boundary", "2023-12-30", "2024-01-02", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := MustParseDate(tt.start)
			end := MustParseDate(tt.end)
			if got := DaysBetween(start, end); got != tt.expected {
				t.Errorf("DaysBetween(%s, %s) = %d, want %d", tt.start, tt.end, got, tt.expected)
			}
		})
	}
}

func TestAgeInMonths(t *testing.T) {
	tests := []struct {
		name      string
		baseline  float64
		entry     string
		asOf      string
		expected  float64
		tolerance float64
	}{
		{"no elapsed time", 12.0, "2024-01-01", "2024-01-01", 12.0, 0.0001},
		{"one average month", 12.0, "2024-01-01", "2024-01-31", 12.0 + 30.0/30.44, 0.0001},
		{"entry age carried forward", 8.5, "2024-01-01", "2024-07-01", 8.5 + 182.0/30.44, 0.0001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AgeInMonths(tt.baseline, MustParseDate(tt.entry), MustParseDate(tt.asOf))
			if math.Abs(got-tt.expected) > tt.tolerance {
				t.Errorf("AgeInMonths() = %v, want %v (±%v)", got, tt.expected, tt.tolerance)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-06-15")
	if err != nil {
		t.Fatalf("ParseDate returned error: %v", err)
	}
	if d.String() != "2024-06-15" {
		t.Errorf("round trip = %s, want 2024-06-15", d.String())
	}

	if _, err := ParseDate("15/06/2024"); err == nil {
		t.Error("expected error for non-ISO date")
	}
	if _, err := ParseDate(""); err == nil {
		t.Error("expected error for empty date")
	}
}

func TestDateOrdering(t *testing.T) {
	a := NewDate(2024, time.March, 1)
	b := NewDate(2024, time.March, 2)

	if !a.Before(b) || b.Before(a) {
		t.Error("Before ordering is wrong")
	}
	if !b.After(a) || a.After(b) {
		t.Error("After ordering is wrong")
	}
	if !a.Equal(a) || a.Equal(b) {
		t.Error("Equal is wrong")
	}
	if got := MinDate(b, a); !got.Equal(a) {
		t.Errorf("MinDate = %s, want %s", got, a)
	}
	if got := a.AddDays(1); !got.Equal(b) {
		t.Errorf("AddDays = %s, want %s", got, b)
	}
}

func TestDateJSONRoundTrip(t *testing.T) {
	type payload struct {
		Date Date `json:"date"`
	}

	encoded, err := json.Marshal(payload{Date: MustParseDate("2024-06-15")})
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if string(encoded) != `{"date":"2024-06-15"}` {
		t.Errorf("Marshal = %s", encoded)
	}

	var decoded payload
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if decoded.Date.String() != "2024-06-15" {
		t.Errorf("round trip = %s", decoded.Date)
	}

	if err := json.Unmarshal([]byte(`{"date":"junk"}`), &decoded); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestDateScan(t *testing.T) {
	var d Date
	if err := d.Scan("2024-06-15"); err != nil {
		t.Fatalf("Scan(string) returned error: %v", err)
	}
	if d.String() != "2024-06-15" {
		t.Errorf("Scan(string) = %s", d)
	}

	if err := d.Scan([]byte("2024-07-01")); err != nil {
		t.Fatalf("Scan([]byte) returned error: %v", err)
	}
	if d.String() != "2024-07-01" {
		t.Errorf("Scan([]byte) = %s", d)
	}

	if err := d.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) returned error: %v", err)
	}
	if !d.IsZero() {
		t.Error("Scan(nil) should yield zero date")
	}

	if err := d.Scan(42); err == nil {
		t.Error("expected error for unsupported type")
	}
}
