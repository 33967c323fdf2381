// Package writer persists ledger activity to PostgreSQL.
//
// Writers:
//   - Event writer: batches committed events into ledger_events
//   - Snapshot writer: stores poller snapshots in supply_snapshots and
//     listing_snapshots
//
// All writers are append-only. Amounts are written as numeric so the full
// unsigned 64-bit range survives.
package writer
