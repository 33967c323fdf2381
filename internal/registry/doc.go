// Package registry implements the track registry: edition definitions,
// minting against a fixed per-unit price, and per-holder balances.
//
// Mint proceeds go in full to the royalty beneficiary. Balances only move
// through TransferLocked, which the marketplace calls during settlement.
package registry
