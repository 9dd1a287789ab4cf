package store

import "context"

// HealthStatus is the coarse reachability state a Store can report.
type HealthStatus string

const (
	HealthReachable   HealthStatus = "reachable"
	HealthDegraded    HealthStatus = "degraded"
	HealthUnavailable HealthStatus = "unavailable"
)

// Health is the result of a store health probe (spec §4.1).
type Health struct {
	Status         HealthStatus `json:"status"`
	SchemaVersion  uint         `json:"schema_version"`
	Dirty          bool         `json:"dirty"`
	Error          string       `json:"error,omitempty"`
}

// VersionReader reports the applied migration version; satisfied by
// migration.Migrator (e.g. *migration.DefaultMigrator) without store importing that package directly,
// keeping C1 (store) and the migration runner decoupled.
type VersionReader interface {
	Version(ctx context.Context) (uint, bool, error)
}

// Health probes reachability and, when a VersionReader is supplied, the
// currently applied schema version.
func (s *Store) Health(ctx context.Context, versions VersionReader) Health {
	if err := s.Ping(ctx); err != nil {
		return Health{Status: HealthUnavailable, Error: err.Error()}
	}

	stats := s.Stats()
	status := HealthReachable
	if stats.OpenConnections > 0 && stats.InUse == stats.OpenConnections && stats.Idle == 0 && stats.WaitCount > 0 {
		status = HealthDegraded
	}

	h := Health{Status: status}
	if versions != nil {
		version, dirty, err := versions.Version(ctx)
		if err != nil {
			h.Error = err.Error()
		} else {
			h.SchemaVersion = version
			h.Dirty = dirty
		}
	}
	return h
}
