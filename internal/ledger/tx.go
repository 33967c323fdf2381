package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/track-market/internal/model"
)

// Tx collects the effects of one operation until commit.
type Tx struct {
	ref     uuid.UUID
	at      time.Time
	undo    []func()
	payouts []model.Payout
	events  []model.Event
}

func newTx(at time.Time) *Tx {
	return &Tx{
		ref: uuid.New(),
		at:  at,
	}
}

// Ref identifies the transaction; it is stamped on its events and payouts.
func (tx *Tx) Ref() uuid.UUID {
	return tx.ref
}

// Now is the transaction timestamp. All effects of a transaction share it.
func (tx *Tx) Now() time.Time {
	return tx.at
}

// OnRollback registers fn to undo a mutation that has already been applied.
func (tx *Tx) OnRollback(fn func()) {
	tx.undo = append(tx.undo, fn)
}

// Pay schedules a payout, settled after the operation succeeds.
// Zero-amount payouts are dropped.
func (tx *Tx) Pay(to model.Address, amount model.Amount, reason model.PayoutReason) {
	if amount == 0 {
		return
	}
	tx.payouts = append(tx.payouts, model.Payout{To: to, Amount: amount, Reason: reason})
}

// Payouts returns the payouts scheduled so far.
func (tx *Tx) Payouts() []model.Payout {
	return tx.payouts
}

// Emit records an event, published only if the transaction commits.
func (tx *Tx) Emit(kind model.EventKind, data any) {
	tx.events = append(tx.events, model.Event{
		ID:    uuid.New(),
		Kind:  kind,
		TxRef: tx.ref,
		At:    tx.at,
		Data:  data,
	})
}

// rollback unwinds the journal newest first.
func (tx *Tx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	tx.payouts = nil
	tx.events = nil
}
