// Package testdb provides utilities specifically for database testing.
// Integration tests are gated on DATABASE_URL being set; without it the
// tests skip rather than fail, so the unit suite stays runnable offline.
package testdb

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/novaq/internal/platform/postgres"
)

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 5 * time.Second

// GetTestDatabaseURL returns the database URL for tests. It checks
// DATABASE_URL and NOVAQ_TEST_DB_URL in that order, returning the first
// non-empty value.
func GetTestDatabaseURL() string {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("NOVAQ_TEST_DB_URL")
	}
	return dbURL
}

// MustOpen opens a connection to the test database with the schema
// applied, skipping the test when no test database is configured.
func MustOpen(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := sql.Open("pgx", dbURL)
	require.NoError(t, err, "Failed to open test database")

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "Failed to ping test database")

	require.NoError(t, postgres.Migrate(db), "Failed to run migrations")

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// Reset truncates the job tables so each test starts from a clean slate.
func Reset(t *testing.T, db *sql.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	_, err := db.ExecContext(ctx, `TRUNCATE job_logs, jobs`)
	require.NoError(t, err, "Failed to truncate job tables")
}
