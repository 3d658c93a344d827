package testutil

import (
	"database/sql"
	"testing"

	_ "github.com/marcboeker/go-duckdb"
)

// NewTestDatabase creates an in-memory DuckDB database.
// The database is automatically cleaned up when the test completes.
func NewTestDatabase(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})

	return db
}
