package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/rickgao/track-market/internal/model"
)

// Errors
var (
	ErrFrozenPayee    = errors.New("payee frozen")
	ErrZeroPayee      = errors.New("payout to zero address")
	ErrAlreadySettled = errors.New("transaction already settled")
)

// Settler applies the payouts of one ledger transaction atomically.
type Settler interface {
	Settle(ctx context.Context, ref uuid.UUID, payouts []model.Payout) error
}

// SettlerFunc is a function adapter for Settler.
type SettlerFunc func(ctx context.Context, ref uuid.UUID, payouts []model.Payout) error

func (f SettlerFunc) Settle(ctx context.Context, ref uuid.UUID, payouts []model.Payout) error {
	return f(ctx, ref, payouts)
}
