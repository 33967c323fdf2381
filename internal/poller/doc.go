// Package poller implements the snapshot poller.
//
// The Snapshot Poller:
//   - Takes a marketplace snapshot on a fixed interval and once at start
//   - Hands each snapshot to every handler concurrently, with a timeout
//   - Logs any track whose summed balances differ from its total supply
package poller
