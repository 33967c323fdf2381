// Package market implements the fixed-price marketplace.
//
// The Marketplace:
//   - Opens listings for a quantity of one track at a unit price
//   - Sells any part of a listing's remaining quantity in one atomic step
//   - Moves the sold balance from seller to buyer through the registry
//   - Splits each payment into a platform fee and seller proceeds
//   - Keeps sold-out and cancelled listings in history
//
// All state lives behind the ledger lock shared with the registry, so a sale
// either changes balances, listing counters and payouts together or not at all.
package market
