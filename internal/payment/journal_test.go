package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/track-market/internal/model"
)

// fakeTx implements the parts of pgx.Tx used by Journal.
type fakeTx struct {
	pgx.Tx

	queued     int
	execErr    error
	committed  bool
	rolledBack bool
}

func (f *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	f.queued = b.Len()
	return &fakeResults{err: f.execErr}
}

func (f *fakeTx) Commit(ctx context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

type fakeResults struct {
	pgx.BatchResults
	err error
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeResults) Close() error { return nil }

type fakeDB struct {
	tx       *fakeTx
	beginErr error
}

func (d *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	return d.tx, nil
}

func TestJournal_Settle(t *testing.T) {
	tx := &fakeTx{}
	j := NewJournal(&fakeDB{tx: tx}, nil)

	err := j.Settle(context.Background(), uuid.New(), []model.Payout{
		{To: alice, Amount: 25, Reason: model.PayoutPlatformFee},
		{To: bob, Amount: 975, Reason: model.PayoutSellerProceeds},
	})
	if err != nil {
		t.Fatalf("Settle() error = %v", err)
	}
	if tx.queued != 2 {
		t.Errorf("queued = %d, want 2", tx.queued)
	}
	if !tx.committed {
		t.Error("transaction not committed")
	}
}

func TestJournal_Settle_InsertFails(t *testing.T) {
	tx := &fakeTx{execErr: errors.New("disk full")}
	j := NewJournal(&fakeDB{tx: tx}, nil)

	err := j.Settle(context.Background(), uuid.New(), []model.Payout{{To: alice, Amount: 1}})
	if err == nil {
		t.Fatal("expected error")
	}
	if tx.committed {
		t.Error("transaction committed after failed insert")
	}
	if !tx.rolledBack {
		t.Error("transaction not rolled back")
	}
}

func TestJournal_Settle_DuplicateRef(t *testing.T) {
	tx := &fakeTx{execErr: &pgconn.PgError{Code: "23505"}}
	j := NewJournal(&fakeDB{tx: tx}, nil)

	err := j.Settle(context.Background(), uuid.New(), []model.Payout{{To: alice, Amount: 1}})
	if !errors.Is(err, ErrAlreadySettled) {
		t.Errorf("error = %v, want ErrAlreadySettled", err)
	}
}

func TestJournal_Settle_Empty(t *testing.T) {
	// No payouts never opens a transaction.
	j := NewJournal(&fakeDB{beginErr: errors.New("unreachable")}, nil)
	if err := j.Settle(context.Background(), uuid.New(), nil); err != nil {
		t.Errorf("Settle(nil) error = %v", err)
	}
}

func TestJournal_Settle_ZeroPayee(t *testing.T) {
	tx := &fakeTx{}
	j := NewJournal(&fakeDB{tx: tx}, nil)
	err := j.Settle(context.Background(), uuid.New(), []model.Payout{{To: model.ZeroAddress, Amount: 1}})
	if !errors.Is(err, ErrZeroPayee) {
		t.Errorf("error = %v, want ErrZeroPayee", err)
	}
	if tx.queued != 0 {
		t.Error("batch sent for invalid payouts")
	}
}
