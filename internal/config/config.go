package config

import (
	"time"

	"github.com/rickgao/track-market/internal/model"
)

// Config is the root configuration for a marketd instance.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"  envPrefix:"INSTANCE_"`
	Registry  RegistryConfig  `yaml:"registry"  envPrefix:"REGISTRY_"`
	Market    MarketConfig    `yaml:"market"    envPrefix:"MARKET_"`
	Ledger    LedgerConfig    `yaml:"ledger"    envPrefix:"LEDGER_"`
	Server    ServerConfig    `yaml:"server"    envPrefix:"SERVER_"`
	Auth      AuthConfig      `yaml:"auth"      envPrefix:"AUTH_"`
	Database  DBConfig        `yaml:"database"  envPrefix:"DATABASE_"`
	Writers   WritersConfig   `yaml:"writers"   envPrefix:"WRITERS_"`
	Payments  PaymentsConfig  `yaml:"payments"  envPrefix:"PAYMENTS_"`
	Feed      FeedConfig      `yaml:"feed"      envPrefix:"FEED_"`
	Snapshots SnapshotsConfig `yaml:"snapshots" envPrefix:"SNAPSHOTS_"`
	Metrics   MetricsConfig   `yaml:"metrics"   envPrefix:"METRICS_"`
	Log       LogConfig       `yaml:"log"       envPrefix:"LOG_"`
}

// InstanceConfig identifies this instance.
type InstanceConfig struct {
	ID string `yaml:"id" env:"ID"`
}

// RegistryConfig holds the track registry parameters.
type RegistryConfig struct {
	UnitPrice          model.Amount `yaml:"unit_price"          env:"UNIT_PRICE"`
	RoyaltyBeneficiary string       `yaml:"royalty_beneficiary" env:"ROYALTY_BENEFICIARY"` // Hex address
	Artist             string       `yaml:"artist"              env:"ARTIST"`
	Collection         string       `yaml:"collection"          env:"COLLECTION"`
}

// MarketConfig holds the marketplace parameters.
type MarketConfig struct {
	FeeBasisPoints uint32 `yaml:"fee_basis_points" env:"FEE_BASIS_POINTS"`
	FeeRecipient   string `yaml:"fee_recipient"    env:"FEE_RECIPIENT"` // Hex address
}

// LedgerConfig holds ledger settings.
type LedgerConfig struct {
	HistorySize int `yaml:"history_size" env:"HISTORY_SIZE"`
}

// ServerConfig holds API server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// AuthConfig holds request signing settings. Keys maps a key id to the path
// of its RSA public key PEM file.
type AuthConfig struct {
	Enabled bool              `yaml:"enabled"  env:"ENABLED"`
	Keys    map[string]string `yaml:"keys"     env:"KEYS"`
	MaxSkew time.Duration     `yaml:"max_skew" env:"MAX_SKEW"`
}

// DBConfig holds the PostgreSQL connection. Database-backed components are
// disabled when Enabled is false.
type DBConfig struct {
	Enabled  bool   `yaml:"enabled"   env:"ENABLED"`
	Host     string `yaml:"host"      env:"HOST"`
	Port     int    `yaml:"port"      env:"PORT"`
	Name     string `yaml:"name"      env:"NAME"`
	User     string `yaml:"user"      env:"USER"`
	Password string `yaml:"password"  env:"PASSWORD"`
	SSLMode  string `yaml:"ssl_mode"  env:"SSL_MODE"`
	MaxConns int    `yaml:"max_conns" env:"MAX_CONNS"`
	MinConns int    `yaml:"min_conns" env:"MIN_CONNS"`
}

// WritersConfig holds batch writer and event router settings.
type WritersConfig struct {
	BatchSize     int           `yaml:"batch_size"      env:"BATCH_SIZE"`
	FlushInterval time.Duration `yaml:"flush_interval"  env:"FLUSH_INTERVAL"`
	BufferSize    int           `yaml:"buffer_size"     env:"BUFFER_SIZE"`
	MaxBufferSize int           `yaml:"max_buffer_size" env:"MAX_BUFFER_SIZE"`
}

// Payment backends.
const (
	PaymentsMemory   = "memory"
	PaymentsPostgres = "postgres"
)

// PaymentsConfig selects the settlement backend.
type PaymentsConfig struct {
	Backend string `yaml:"backend" env:"BACKEND"`
}

// FeedConfig holds websocket event feed settings.
type FeedConfig struct {
	Enabled      bool          `yaml:"enabled"       env:"ENABLED"`
	Path         string        `yaml:"path"          env:"PATH"`
	PingInterval time.Duration `yaml:"ping_interval" env:"PING_INTERVAL"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	SendBuffer   int           `yaml:"send_buffer"   env:"SEND_BUFFER"`
}

// SnapshotsConfig holds snapshot poller settings.
type SnapshotsConfig struct {
	Enabled  bool          `yaml:"enabled"  env:"ENABLED"`
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
	Timeout  time.Duration `yaml:"timeout"  env:"TIMEOUT"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Port    int    `yaml:"port"    env:"PORT"`
	Path    string `yaml:"path"    env:"PATH"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LEVEL"`  // debug, info, warn, error
	Format string `yaml:"format" env:"FORMAT"` // text or json
}

// Beneficiary returns the parsed royalty beneficiary address.
func (c RegistryConfig) Beneficiary() (model.Address, error) {
	return model.ParseAddress(c.RoyaltyBeneficiary)
}

// Recipient returns the parsed fee recipient address. An empty recipient
// yields the zero address.
func (c MarketConfig) Recipient() (model.Address, error) {
	if c.FeeRecipient == "" {
		return model.ZeroAddress, nil
	}
	return model.ParseAddress(c.FeeRecipient)
}
