// Package metrics provides Prometheus instrumentation for the
// collaboration kernel: HTTP, tool-call, mail/ack/reservation/contact,
// event-bus, and database metrics, registered through a single Collector
// using promauto so nothing has to manage a Registry by hand.
//
// # Groups
//
//   - HTTP: request count, duration, and request/response body size,
//     labeled by method/path/status (status bucketed to 2xx/3xx/4xx/5xx).
//   - Tool calls: count and duration per tool, labeled by outcome.
//   - Mail/ack/reservation/contact: per-domain counters for delivery
//     states, overdue acknowledgements, reservation lifecycle events, and
//     contact graph transitions.
//   - Event bus: published and dropped counts per topic.
//   - Database: open/idle connection gauges and query duration.
package metrics
