// Package feed streams committed ledger events to websocket clients.
//
// A client connects to the feed endpoint with an optional ?since=N. The hub
// replays retained events with seq > N, then forwards live events from a
// router subscription. Events are sent as JSON text frames in seq order and
// never repeated on one connection.
//
// A client that falls behind by more than the send buffer is disconnected
// and can resume with since set to the last seq it saw. Events already
// evicted from ledger history cannot be replayed.
package feed
