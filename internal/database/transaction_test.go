package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// setupTestDB creates an in-memory database with the full schema applied
func setupTestDB(t *testing.T) *DB {
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate())
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	// Applying the schema twice must be a no-op
	require.NoError(t, db.Migrate())

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM animals").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestWithTransaction_Success(t *testing.T) {
	db := setupTestDB(t)

	var count int
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO farms (name) VALUES (?)", "Fazenda Norte")
		if err != nil {
			return err
		}
		return tx.QueryRow("SELECT COUNT(*) FROM farms WHERE name = ?", "Fazenda Norte").Scan(&count)
	})

	require.NoError(t, err)
	assert.Equal(t, 1, count, "Row should be visible inside the transaction")

	err = db.QueryRow("SELECT COUNT(*) FROM farms WHERE name = ?", "Fazenda Norte").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "Row should persist after commit")
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	db := setupTestDB(t)

	testErr := errors.New("test error")

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO farms (name) VALUES (?)", "Fazenda Sul"); err != nil {
			return err
		}
		return testErr
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, testErr, "Error should be unwrappable")
	assert.Contains(t, err.Error(), "transaction")

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM farms").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "Row should not exist after rollback")
}

func TestWithTransaction_RollbackOnPanic(t *testing.T) {
	db := setupTestDB(t)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO farms (name) VALUES (?)", "Fazenda Sul"); err != nil {
			return err
		}
		panic("panic occurred")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
	assert.Contains(t, err.Error(), "panic occurred")

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM farms").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "Row should not exist after panic rollback")
}

func TestWithTransaction_ConstraintViolationRollsBack(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Exec("INSERT INTO farms (name) VALUES (?)", "Fazenda Norte")
	require.NoError(t, err)

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO farms (name) VALUES (?)", "Fazenda Norte")
		return err
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "transaction")

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM farms WHERE name = ?", "Fazenda Norte").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "Duplicate should not be inserted")
}

func TestWithTransaction_MultipleOperations(t *testing.T) {
	db := setupTestDB(t)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		res, err := tx.Exec("INSERT INTO farms (name) VALUES (?)", "Fazenda Norte")
		if err != nil {
			return err
		}
		farmID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		for _, tag := range []string{"BR-1001", "BR-1002", "BR-1003"} {
			_, err := tx.Exec(`
				INSERT INTO animals (farm_id, ear_tag, lot, entry_date, entry_weight_kg, entry_age_months, sex)
				VALUES (?, ?, '1', '2024-01-01', 300, 12, 'M')
			`, farmID, tag)
			if err != nil {
				return err
			}
		}
		return nil
	})

	require.NoError(t, err)

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM animals").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "All rows should be committed")
}

func TestWithTransaction_NilDB(t *testing.T) {
	err := WithTransaction(nil, func(tx *sql.Tx) error {
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil")
}

func TestQuickCheck(t *testing.T) {
	db := setupTestDB(t)

	// A freshly migrated database must report "ok" from PRAGMA quick_check
	require.NoError(t, db.QuickCheck(context.Background()))
}

func TestForeignKeysEnforced(t *testing.T) {
	db := setupTestDB(t)

	// No farm with id 99 exists
	_, err := db.Exec(`
		INSERT INTO animals (farm_id, ear_tag, lot, entry_date, entry_weight_kg, entry_age_months, sex)
		VALUES (99, 'BR-1001', '1', '2024-01-01', 300, 12, 'M')
	`)
	assert.Error(t, err, "Foreign key constraint should reject orphan animal")
}
