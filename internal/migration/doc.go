// Package migration applies the collaboration kernel's forward-only schema
// migrations via golang-migrate, and carries a small CLI layer (CLI). No
// binary calls NewCLI: both `migrate` subcommands go through
// store.Store.Migrate. Only a SQLite
// migration set ships with this kernel; see migrator.go for why.
package migration
