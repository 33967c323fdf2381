package connection

import (
	"errors"
	"time"

	"github.com/rickgao/track-market/internal/auth"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string            // WebSocket URL (e.g., ws://localhost:8080/v1/feed)
	Credentials  *auth.Credentials // Signs the handshake (nil = no auth)
	PingTimeout  time.Duration     // Max time without ping/pong before considering connection stale
	WriteTimeout time.Duration     // Write deadline for control frames
	BufferSize   int               // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  90 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   1024,
	}
}

// FollowerConfig configures a Follower.
type FollowerConfig struct {
	URL               string            // Feed endpoint
	Credentials       *auth.Credentials // Signs each handshake (nil = no auth)
	Since             uint64            // Resume after this seq
	PingTimeout       time.Duration
	WriteTimeout      time.Duration
	ReconnectBaseWait time.Duration // Base wait time for reconnection
	ReconnectMaxWait  time.Duration // Max wait time for reconnection
	BufferSize        int           // Delivered event channel size
}

// DefaultFollowerConfig returns sensible defaults.
func DefaultFollowerConfig() FollowerConfig {
	client := DefaultClientConfig()
	return FollowerConfig{
		PingTimeout:       client.PingTimeout,
		WriteTimeout:      client.WriteTimeout,
		ReconnectBaseWait: 1 * time.Second,
		ReconnectMaxWait:  60 * time.Second,
		BufferSize:        client.BufferSize,
	}
}

// FollowerStats contains runtime statistics.
type FollowerStats struct {
	Connects     int64
	Received     int64 // Events delivered
	Duplicates   int64 // Events skipped as already delivered
	DecodeErrors int64
	LastSeq      uint64
}
