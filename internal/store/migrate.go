package store

import (
	"context"
	"fmt"

	"github.com/agentmaild/agentmail/internal/migration"
)

// Migrate applies pending schema migrations and keeps the resulting
// migrator around as the Store's VersionReader for Health. A failure here
// is fatal and distinct from a plain reachability failure (spec §4.1:
// "SchemaMigrationFailed aborts startup").
//
// Only sqlite ships bundled migrations; Postgres/MySQL backends return a
// descriptive error rather than silently skipping schema setup.
func (s *Store) Migrate(ctx context.Context) error {
	if s.backend != BackendSQLite {
		return fmt.Errorf("store: migrate: %w", errUnsupportedMigrationBackend(s.backend))
	}

	m, err := migration.NewSQLiteMigrator(s.sqlDB)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}

	if err := m.Up(ctx); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}

	s.migrator = m
	return nil
}

// Migrator exposes the applied migrator for health probes and the
// operator CLI's migrate subcommand; nil until Migrate has run.
func (s *Store) Migrator() migration.Migrator {
	return s.migrator
}

func errUnsupportedMigrationBackend(b Backend) error {
	return fmt.Errorf("no bundled migrations for backend %q", b)
}
