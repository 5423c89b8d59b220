package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentLocation(t *testing.T) {
	changes := []LocationChangeEvent{
		{ID: 1, Date: date("2024-01-01"), LocationID: 10, LocationName: "Pasto Norte"},
		{ID: 2, Date: date("2024-03-01"), LocationID: 20, LocationName: "Pasto Sul"},
		{ID: 3, Date: date("2024-05-01"), LocationID: 30, LocationName: "Confinamento"},
	}

	t.Run("latest change on or before as-of wins", func(t *testing.T) {
		got := CurrentLocation(changes, date("2024-04-01"))
		require.NotNil(t, got)
		assert.Equal(t, int64(20), got.LocationID)
	})

	t.Run("change dated exactly as-of counts", func(t *testing.T) {
		got := CurrentLocation(changes, date("2024-05-01"))
		require.NotNil(t, got)
		assert.Equal(t, int64(30), got.LocationID)
	})

	t.Run("retroactive view", func(t *testing.T) {
		got := CurrentLocation(changes, date("2024-01-15"))
		require.NotNil(t, got)
		assert.Equal(t, int64(10), got.LocationID)
	})

	t.Run("nothing before as-of resolves to nil", func(t *testing.T) {
		assert.Nil(t, CurrentLocation(changes, date("2023-12-31")))
	})

	t.Run("no changes at all resolves to nil", func(t *testing.T) {
		assert.Nil(t, CurrentLocation(nil, date("2024-06-01")))
	})
}

func TestCurrentLocation_SameDateTieBreaksOnID(t *testing.T) {
	// Two moves recorded on the same day: the later record wins.
	changes := []LocationChangeEvent{
		{ID: 7, Date: date("2024-03-01"), LocationID: 10, LocationName: "Pasto Norte"},
		{ID: 8, Date: date("2024-03-01"), LocationID: 20, LocationName: "Pasto Sul"},
	}

	got := CurrentLocation(changes, date("2024-03-15"))
	require.NotNil(t, got)
	assert.Equal(t, int64(20), got.LocationID)

	// Order of the input slice must not matter.
	reversed := []LocationChangeEvent{changes[1], changes[0]}
	got = CurrentLocation(reversed, date("2024-03-15"))
	require.NotNil(t, got)
	assert.Equal(t, int64(20), got.LocationID)
}

func TestCurrentDiet(t *testing.T) {
	changes := []DietChangeEvent{
		{ID: 1, Date: date("2024-01-01"), DietType: "pasture", DailyIntakePct: fptr(2.5)},
		{ID: 2, Date: date("2024-04-01"), DietType: "feedlot", DailyIntakePct: fptr(3.0)},
	}

	got := CurrentDiet(changes, date("2024-06-01"))
	require.NotNil(t, got)
	assert.Equal(t, "feedlot", got.DietType)

	got = CurrentDiet(changes, date("2024-02-01"))
	require.NotNil(t, got)
	assert.Equal(t, "pasture", got.DietType)

	assert.Nil(t, CurrentDiet(changes, date("2023-06-01")))
}
