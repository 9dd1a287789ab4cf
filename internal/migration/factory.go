package migration

import (
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4/database/sqlite3"
)

// NewSQLiteMigrator builds a migrator over an already-open SQLite
// connection. The Store opens the connection (and applies its pragmas)
// before migrations run, so migrator and application share one pool
// and one set of PRAGMA settings (spec §4.1).
func NewSQLiteMigrator(db *sql.DB) (*DefaultMigrator, error) {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration: sqlite3 driver: %w", err)
	}

	return NewMigrator(&Config{
		DatabaseType: DatabaseTypeSQLite,
		TableName:    "schema_migrations",
	}, driver)
}
