// Package router fans committed ledger events out to consumers.
//
// The ledger publishes while holding its write lock, so Publish only
// enqueues. A single goroutine copies each event into the buffer of every
// subscription whose kind filter matches. Buffers grow on demand up to a
// configured ceiling; past it the oldest queued event is dropped and counted.
package router
