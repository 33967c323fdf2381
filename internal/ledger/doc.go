// Package ledger is the single state authority shared by the track registry
// and the marketplace.
//
// Every mutating operation runs inside Update while holding the ledger's one
// write lock, so operations apply one at a time in a total order. Mutations
// register undo closures on the transaction; a failing operation unwinds them
// in reverse so no partial state survives. Scheduled payouts are settled only
// after internal state is final, and a settlement failure unwinds the whole
// transaction. Events are sequenced and published at commit.
//
// Read-only queries use View and observe a snapshot that never straddles two
// operations.
package ledger
