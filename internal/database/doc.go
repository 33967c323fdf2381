// Package database provides connection pool management and schema setup for
// PostgreSQL.
//
// Tables:
//   - ledger_events: every committed event, keyed by seq
//   - payouts: settled payouts, keyed by transaction ref and index
//   - supply_snapshots, listing_snapshots: periodic state captures
//
// The database is a journal of the in-memory ledger, never its source of truth.
package database
