package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/rickgao/track-market/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Registry.UnitPrice == 0 {
		return errors.New("registry.unit_price must be > 0")
	}
	if _, err := c.Registry.Beneficiary(); err != nil {
		return fmt.Errorf("registry.royalty_beneficiary: %w", err)
	}

	if c.Market.FeeBasisPoints > model.BasisPointsDenominator {
		return fmt.Errorf("market.fee_basis_points must be <= %d, got %d", model.BasisPointsDenominator, c.Market.FeeBasisPoints)
	}
	recipient, err := c.Market.Recipient()
	if err != nil {
		return fmt.Errorf("market.fee_recipient: %w", err)
	}
	if c.Market.FeeBasisPoints > 0 && recipient == model.ZeroAddress {
		return errors.New("market.fee_recipient is required when fee_basis_points > 0")
	}

	if c.Ledger.HistorySize < 0 {
		return errors.New("ledger.history_size must be >= 0")
	}

	if c.Auth.Enabled && len(c.Auth.Keys) == 0 {
		return errors.New("auth.keys is required when auth is enabled")
	}

	if c.Database.Enabled {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}

	switch c.Payments.Backend {
	case PaymentsMemory:
	case PaymentsPostgres:
		if !c.Database.Enabled {
			return errors.New("payments.backend postgres requires database.enabled")
		}
	default:
		return fmt.Errorf("payments.backend must be %q or %q, got %q", PaymentsMemory, PaymentsPostgres, c.Payments.Backend)
	}

	if c.Writers.BatchSize < 1 {
		return errors.New("writers.batch_size must be >= 1")
	}
	if c.Writers.BufferSize < 1 {
		return errors.New("writers.buffer_size must be >= 1")
	}

	if c.Feed.SendBuffer < 1 {
		return errors.New("feed.send_buffer must be >= 1")
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

// ParseLevel maps a log.level value to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}
