package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ilya-zlobintsev/foobot/db"
)

// SetupTestDB creates a test database connection, runs migrations, and clears
// the bot tables so tests are idempotent across runs.
// It skips the test if TEST_PG_DSN environment variable is not set.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	ctx := context.Background()
	if err := db.Migrate(ctx, database); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	for _, table := range []string{
		"commands", "prefixes", "channels", "redeem_triggers",
		"guard_flags", "spotify_tokens", "settings",
	} {
		if _, err := database.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			database.Close()
			t.Fatalf("failed to clear table %s: %v", table, err)
		}
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}
