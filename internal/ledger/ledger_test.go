package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/track-market/internal/model"
	"github.com/rickgao/track-market/internal/payment"
)

var payee = model.Address{19: 0x01}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (p *recordingPublisher) Publish(events []model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

type recordingObserver struct {
	ops  []string
	errs []error
}

func (o *recordingObserver) ObserveOp(op string, err error, d time.Duration) {
	o.ops = append(o.ops, op)
	o.errs = append(o.errs, err)
}

func TestUpdate_Commit(t *testing.T) {
	book := payment.NewBook(nil)
	pub := &recordingPublisher{}
	obs := &recordingObserver{}
	l := New(DefaultConfig(), book, WithPublisher(pub), WithObserver(obs))

	counter := 0
	err := l.Update(context.Background(), "incr", func(tx *Tx) error {
		counter++
		tx.OnRollback(func() { counter-- })
		tx.Pay(payee, 100, model.PayoutRoyalty)
		tx.Emit(model.EventListingCancelled, &model.ListingCancelled{ListingID: 1})
		tx.Emit(model.EventListingCancelled, &model.ListingCancelled{ListingID: 2})
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if counter != 1 {
		t.Errorf("counter = %d, want 1", counter)
	}
	if got := book.Balance(payee); got != 100 {
		t.Errorf("Balance(payee) = %d, want 100", got)
	}
	if len(pub.events) != 2 {
		t.Fatalf("published %d events, want 2", len(pub.events))
	}
	if pub.events[0].Seq != 1 || pub.events[1].Seq != 2 {
		t.Errorf("seqs = %d,%d, want 1,2", pub.events[0].Seq, pub.events[1].Seq)
	}
	if pub.events[0].TxRef != pub.events[1].TxRef {
		t.Error("events of one transaction carry different refs")
	}
	if l.Seq() != 2 {
		t.Errorf("Seq() = %d, want 2", l.Seq())
	}
	if len(obs.ops) != 1 || obs.ops[0] != "incr" || obs.errs[0] != nil {
		t.Errorf("observer = %v %v", obs.ops, obs.errs)
	}
}

func TestUpdate_RollbackOnError(t *testing.T) {
	pub := &recordingPublisher{}
	l := New(DefaultConfig(), payment.NewBook(nil), WithPublisher(pub))

	state := []string{"a"}
	wantErr := errors.New("boom")

	err := l.Update(context.Background(), "append", func(tx *Tx) error {
		state = append(state, "b")
		tx.OnRollback(func() { state = state[:len(state)-1] })
		state = append(state, "c")
		tx.OnRollback(func() { state = state[:len(state)-1] })
		tx.Emit(model.EventListingCancelled, &model.ListingCancelled{ListingID: 1})
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Update() error = %v, want %v", err, wantErr)
	}
	if len(state) != 1 || state[0] != "a" {
		t.Errorf("state = %v, want [a]", state)
	}
	if len(pub.events) != 0 {
		t.Errorf("published %d events after failure", len(pub.events))
	}
	if l.Seq() != 0 {
		t.Errorf("Seq() = %d, want 0", l.Seq())
	}
}

func TestUpdate_RollbackOnSettlementFailure(t *testing.T) {
	settleErr := errors.New("payee unreachable")
	settler := payment.SettlerFunc(func(ctx context.Context, ref uuid.UUID, payouts []model.Payout) error {
		return settleErr
	})
	pub := &recordingPublisher{}
	l := New(DefaultConfig(), settler, WithPublisher(pub))

	balance := 10
	err := l.Update(context.Background(), "sale", func(tx *Tx) error {
		balance -= 4
		tx.OnRollback(func() { balance += 4 })
		tx.Pay(payee, 40, model.PayoutSellerProceeds)
		tx.Emit(model.EventItemSold, &model.ItemSold{ListingID: 1, Quantity: 4})
		return nil
	})
	if !errors.Is(err, model.ErrPaymentFailed) {
		t.Fatalf("Update() error = %v, want ErrPaymentFailed", err)
	}
	if balance != 10 {
		t.Errorf("balance = %d, want 10 after rollback", balance)
	}
	if len(pub.events) != 0 {
		t.Errorf("published %d events after failed settlement", len(pub.events))
	}
}

func TestUpdate_NoPayoutsSkipsSettler(t *testing.T) {
	called := false
	settler := payment.SettlerFunc(func(ctx context.Context, ref uuid.UUID, payouts []model.Payout) error {
		called = true
		return nil
	})
	l := New(DefaultConfig(), settler)

	err := l.Update(context.Background(), "noop", func(tx *Tx) error {
		tx.Pay(payee, 0, model.PayoutPlatformFee) // dropped
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if called {
		t.Error("settler called without payouts")
	}
}

func TestUpdate_RollbackOnPanic(t *testing.T) {
	l := New(DefaultConfig(), payment.NewBook(nil))
	value := 1

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		l.Update(context.Background(), "panic", func(tx *Tx) error {
			value = 2
			tx.OnRollback(func() { value = 1 })
			panic("bad")
		})
	}()

	if value != 1 {
		t.Errorf("value = %d, want 1", value)
	}

	// Lock must have been released.
	done := make(chan struct{})
	go func() {
		l.View(func() {})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ledger lock held after panic")
	}
}

func TestHistory(t *testing.T) {
	l := New(Config{HistorySize: 3}, payment.NewBook(nil))

	for i := 1; i <= 5; i++ {
		id := uint64(i)
		l.Update(context.Background(), "emit", func(tx *Tx) error {
			tx.Emit(model.EventListingCancelled, &model.ListingCancelled{ListingID: id})
			return nil
		})
	}

	all := l.History(0, 0)
	if len(all) != 3 {
		t.Fatalf("len(History(0)) = %d, want 3 (bounded)", len(all))
	}
	if all[0].Seq != 3 || all[2].Seq != 5 {
		t.Errorf("seqs = %d..%d, want 3..5", all[0].Seq, all[2].Seq)
	}

	since := l.History(3, 0)
	if len(since) != 2 || since[0].Seq != 4 {
		t.Errorf("History(3) = %d events starting %d, want 2 starting 4", len(since), since[0].Seq)
	}

	limited := l.History(0, 1)
	if len(limited) != 1 || limited[0].Seq != 3 {
		t.Errorf("History(0, 1) = %+v", limited)
	}

	if got := l.History(5, 0); len(got) != 0 {
		t.Errorf("History(5) = %d events, want 0", len(got))
	}
}

func TestUpdate_Serialized(t *testing.T) {
	l := New(DefaultConfig(), payment.NewBook(nil))

	var inside, maxInside int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Update(context.Background(), "concurrent", func(tx *Tx) error {
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				time.Sleep(time.Microsecond)
				inside--
				tx.Emit(model.EventListingCancelled, &model.ListingCancelled{})
				return nil
			})
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max concurrent updates = %d, want 1", maxInside)
	}
	if l.Seq() != 50 {
		t.Errorf("Seq() = %d, want 50", l.Seq())
	}
}
