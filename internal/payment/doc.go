// Package payment settles the outbound value transfers scheduled by ledger
// operations.
//
// Settlers are all-or-nothing: either every payout of a transaction is
// applied or none is, and a failure aborts (and rolls back) the operation
// that scheduled them.
//
// Settlers:
//   - Book: in-memory payee accounts (default backend)
//   - Journal: PostgreSQL payouts table written in one database transaction
package payment
