package kpi

import "github.com/pastolab/herdtrack/pkg/temporal"

// CurrentLocation returns the location change in effect at asOf: the event
// with the greatest date not after asOf, ties broken by the highest record
// id. Nil when the animal had no location assigned by then. Because asOf is
// an arbitrary date, the resolver also serves historical point-in-time
// reporting.
func CurrentLocation(changes []LocationChangeEvent, asOf temporal.Date) *LocationChangeEvent {
	var current *LocationChangeEvent
	for i := range changes {
		c := &changes[i]
		if c.Date.After(asOf) {
			continue
		}
		if current == nil || c.Date.After(current.Date) ||
			(c.Date.Equal(current.Date) && c.ID > current.ID) {
			current = c
		}
	}
	return current
}

// CurrentDiet returns the diet change in effect at asOf, with the same
// ordering rules as CurrentLocation.
func CurrentDiet(changes []DietChangeEvent, asOf temporal.Date) *DietChangeEvent {
	var current *DietChangeEvent
	for i := range changes {
		c := &changes[i]
		if c.Date.After(asOf) {
			continue
		}
		if current == nil || c.Date.After(current.Date) ||
			(c.Date.Equal(current.Date) && c.ID > current.ID) {
			current = c
		}
	}
	return current
}
