package payment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/rickgao/track-market/internal/model"
)

// Book is an in-memory Settler that credits payee accounts.
type Book struct {
	logger *slog.Logger

	mu       sync.RWMutex
	balances map[model.Address]model.Amount
	frozen   map[model.Address]struct{}
	settled  map[uuid.UUID]struct{}
}

// NewBook creates an empty Book.
func NewBook(logger *slog.Logger) *Book {
	if logger == nil {
		logger = slog.Default()
	}
	return &Book{
		logger:   logger,
		balances: make(map[model.Address]model.Amount),
		frozen:   make(map[model.Address]struct{}),
		settled:  make(map[uuid.UUID]struct{}),
	}
}

// Settle credits every payout or none of them.
func (b *Book) Settle(ctx context.Context, ref uuid.UUID, payouts []model.Payout) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.settled[ref]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadySettled, ref)
	}

	// Compute every new balance before touching the accounts.
	next := make(map[model.Address]model.Amount, len(payouts))
	for _, p := range payouts {
		if p.To == model.ZeroAddress {
			return ErrZeroPayee
		}
		if _, ok := b.frozen[p.To]; ok {
			return fmt.Errorf("%w: %s", ErrFrozenPayee, p.To.Hex())
		}
		cur, ok := next[p.To]
		if !ok {
			cur = b.balances[p.To]
		}
		sum, err := model.AddAmount(cur, p.Amount)
		if err != nil {
			return fmt.Errorf("credit %s: %w", p.To.Hex(), err)
		}
		next[p.To] = sum
	}

	for addr, bal := range next {
		b.balances[addr] = bal
	}
	b.settled[ref] = struct{}{}

	b.logger.Debug("payouts settled", "tx_ref", ref, "count", len(payouts))
	return nil
}

// Balance returns the total credited to addr.
func (b *Book) Balance(addr model.Address) model.Amount {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balances[addr]
}

// Freeze makes every later credit to addr fail.
func (b *Book) Freeze(addr model.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen[addr] = struct{}{}
}

// Unfreeze lifts a Freeze.
func (b *Book) Unfreeze(addr model.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.frozen, addr)
}
