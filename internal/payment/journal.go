package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/track-market/internal/model"
)

// TxBeginner starts database transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Journal is a Settler that records payouts in the payouts table. All payouts
// of one ledger transaction are inserted in a single database transaction.
type Journal struct {
	db     TxBeginner
	logger *slog.Logger
	now    func() time.Time
}

// NewJournal creates a Journal.
func NewJournal(db TxBeginner, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Settle inserts the payouts, committing only if every insert succeeds.
func (j *Journal) Settle(ctx context.Context, ref uuid.UUID, payouts []model.Payout) error {
	if len(payouts) == 0 {
		return nil
	}
	for _, p := range payouts {
		if p.To == model.ZeroAddress {
			return ErrZeroPayee
		}
	}

	tx, err := j.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin payout tx: %w", err)
	}
	defer tx.Rollback(ctx)

	settledAt := j.now().UnixMicro()
	batch := &pgx.Batch{}
	for i, p := range payouts {
		batch.Queue(`
			INSERT INTO payouts (tx_ref, idx, payee, amount, reason, settled_at)
			VALUES ($1, $2, $3, $4::text::numeric, $5, $6)
		`, ref, i, p.To.Hex(), p.Amount.String(), string(p.Reason), settledAt)
	}

	results := tx.SendBatch(ctx, batch)
	for range payouts {
		if _, err := results.Exec(); err != nil {
			results.Close()
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrAlreadySettled, ref)
			}
			return fmt.Errorf("insert payout: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close payout batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit payout tx: %w", err)
	}

	j.logger.Debug("payouts journaled", "tx_ref", ref, "count", len(payouts))
	return nil
}
