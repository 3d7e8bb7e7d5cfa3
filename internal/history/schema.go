package history

import (
	"fmt"

	"github.com/aqasim81/schemaver/internal/database"
)

// DefaultTableName is the ledger table used when none is configured.
const DefaultTableName = "schema_version"

const createTablePostgres = `CREATE TABLE IF NOT EXISTS %s (
    version      TEXT PRIMARY KEY,
    description  TEXT NOT NULL,
    script       TEXT NOT NULL,
    checksum     TEXT NOT NULL,
    applied_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    duration_ms  INTEGER NOT NULL
)`

const createTableSQLite = `CREATE TABLE IF NOT EXISTS %s (
    version      TEXT PRIMARY KEY,
    description  TEXT NOT NULL,
    script       TEXT NOT NULL,
    checksum     TEXT NOT NULL,
    applied_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    duration_ms  INTEGER NOT NULL
)`

// createTableSQL returns the ledger DDL for the dialect, with the already
// quoted table name substituted.
func createTableSQL(driver database.Driver, quotedTable string) string {
	if driver == database.Postgres {
		return fmt.Sprintf(createTablePostgres, quotedTable)
	}

	return fmt.Sprintf(createTableSQLite, quotedTable)
}
