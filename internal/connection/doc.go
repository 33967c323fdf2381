// Package connection follows a remote event feed over websocket.
//
// Client wraps one websocket connection with ping/pong liveness checks.
// Follower keeps a Client connected to the feed, reconnecting with
// exponential backoff and resuming from the last seq it delivered, so
// consumers see each event once and in order across reconnects.
package connection
