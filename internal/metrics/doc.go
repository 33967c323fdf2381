// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Ledger operation counts by result code, and latencies
//   - Committed events by kind, sale volume and platform fees
//   - Active listings, track count and supply conservation from snapshots
//   - HTTP request counts and latencies by route
//
// Metrics live on their own registry, served by Handler.
package metrics
