package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema lists the statements EnsureSchema runs, in order.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS ledger_events (
		seq         BIGINT PRIMARY KEY,
		event_id    UUID NOT NULL UNIQUE,
		kind        TEXT NOT NULL,
		tx_ref      UUID NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		data        JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ledger_events_kind_idx ON ledger_events (kind, seq)`,
	`CREATE INDEX IF NOT EXISTS ledger_events_tx_ref_idx ON ledger_events (tx_ref)`,
	`CREATE TABLE IF NOT EXISTS payouts (
		tx_ref     UUID NOT NULL,
		idx        INTEGER NOT NULL,
		payee      TEXT NOT NULL,
		amount     NUMERIC(20, 0) NOT NULL,
		reason     TEXT NOT NULL,
		settled_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (tx_ref, idx)
	)`,
	`CREATE INDEX IF NOT EXISTS payouts_payee_idx ON payouts (payee, settled_at)`,
	`CREATE TABLE IF NOT EXISTS supply_snapshots (
		taken_at     TIMESTAMPTZ NOT NULL,
		seq          BIGINT NOT NULL,
		track_id     BIGINT NOT NULL,
		total_supply NUMERIC(20, 0) NOT NULL,
		held         NUMERIC(20, 0) NOT NULL,
		holders      INTEGER NOT NULL,
		PRIMARY KEY (taken_at, track_id)
	)`,
	`CREATE TABLE IF NOT EXISTS listing_snapshots (
		taken_at        TIMESTAMPTZ NOT NULL,
		seq             BIGINT NOT NULL,
		listing_id      BIGINT NOT NULL,
		track_id        BIGINT NOT NULL,
		seller          TEXT NOT NULL,
		unit_price      NUMERIC(20, 0) NOT NULL,
		quantity_listed NUMERIC(20, 0) NOT NULL,
		quantity_sold   NUMERIC(20, 0) NOT NULL,
		PRIMARY KEY (taken_at, listing_id)
	)`,
}

// EnsureSchema creates any missing tables and indexes.
func EnsureSchema(ctx context.Context, db Execer) error {
	for i, stmt := range Schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
