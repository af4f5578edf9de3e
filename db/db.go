// Package db provides database connection helpers, schema migration, and the
// command/settings/token store backing the bot.
package db

import (
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

// Connect opens a Postgres connection for the given DSN.
func Connect(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}
