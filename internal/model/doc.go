// Package model defines shared data types used across the track market.
//
// Conventions:
//   - Amounts: unsigned integer minor currency units (model.Amount)
//   - Quantities: whole edition copies (uint64)
//   - Addresses: 20-byte account ids, hex encoded on the wire
//   - IDs: sequential uint64 for tracks and listings, uuid.UUID for events
//     and ledger transaction refs
package model
