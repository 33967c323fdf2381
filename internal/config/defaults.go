package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultUnitPrice       = 1
	DefaultHistorySize     = 10000
	DefaultServerAddr      = ":8080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxSkew         = 30 * time.Second
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 10
	DefaultMinConns        = 2
	DefaultBatchSize       = 500
	DefaultFlushInterval   = 1 * time.Second
	DefaultBufferSize      = 1000
	DefaultMaxBufferSize   = 100000
	DefaultPaymentsBackend = PaymentsMemory
	DefaultFeedPath        = "/v1/feed"
	DefaultPingInterval    = 15 * time.Second
	DefaultFeedWrite       = 10 * time.Second
	DefaultSendBuffer      = 256
	DefaultSnapshotEvery   = 5 * time.Minute
	DefaultSnapshotTimeout = 30 * time.Second
	DefaultMetricsPort     = 9090
	DefaultMetricsPath     = "/metrics"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

func (c *Config) applyDefaults() {
	// Registry defaults
	if c.Registry.UnitPrice == 0 {
		c.Registry.UnitPrice = DefaultUnitPrice
	}

	// Ledger defaults
	if c.Ledger.HistorySize == 0 {
		c.Ledger.HistorySize = DefaultHistorySize
	}

	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Auth defaults
	if c.Auth.MaxSkew == 0 {
		c.Auth.MaxSkew = DefaultMaxSkew
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Writers defaults
	if c.Writers.BatchSize == 0 {
		c.Writers.BatchSize = DefaultBatchSize
	}
	if c.Writers.FlushInterval == 0 {
		c.Writers.FlushInterval = DefaultFlushInterval
	}
	if c.Writers.BufferSize == 0 {
		c.Writers.BufferSize = DefaultBufferSize
	}
	if c.Writers.MaxBufferSize == 0 {
		c.Writers.MaxBufferSize = DefaultMaxBufferSize
	}

	// Payments defaults
	if c.Payments.Backend == "" {
		c.Payments.Backend = DefaultPaymentsBackend
	}

	// Feed defaults
	if c.Feed.Path == "" {
		c.Feed.Path = DefaultFeedPath
	}
	if c.Feed.PingInterval == 0 {
		c.Feed.PingInterval = DefaultPingInterval
	}
	if c.Feed.WriteTimeout == 0 {
		c.Feed.WriteTimeout = DefaultFeedWrite
	}
	if c.Feed.SendBuffer == 0 {
		c.Feed.SendBuffer = DefaultSendBuffer
	}

	// Snapshot defaults
	if c.Snapshots.Interval == 0 {
		c.Snapshots.Interval = DefaultSnapshotEvery
	}
	if c.Snapshots.Timeout == 0 {
		c.Snapshots.Timeout = DefaultSnapshotTimeout
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
