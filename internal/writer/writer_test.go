package writer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/track-market/internal/model"
	"github.com/rickgao/track-market/internal/router"
)

// fakeSender records queued statements and answers every Exec with the
// configured outcome.
type fakeSender struct {
	mu        sync.Mutex
	batches   int
	queued    int
	conflicts int // per batch, the first n statements report no rows
	err       error
}

func (f *fakeSender) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	f.queued += b.Len()
	return &fakeResults{conflicts: f.conflicts, err: f.err}
}

func (f *fakeSender) stats() (batches, queued int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches, f.queued
}

type fakeResults struct {
	pgx.BatchResults
	conflicts int
	err       error
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	if r.conflicts > 0 {
		r.conflicts--
		return pgconn.NewCommandTag("INSERT 0 0"), nil
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeResults) Close() error { return nil }

func soldEvent(seq uint64) model.Event {
	return model.Event{
		ID:    uuid.New(),
		Seq:   seq,
		Kind:  model.EventItemSold,
		TxRef: uuid.New(),
		At:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Data: &model.ItemSold{
			ListingID: 1,
			Buyer:     model.Address{19: 0xb0},
			Quantity:  2,
			TrackID:   1,
			Payment:   10,
		},
	}
}

func TestTransformEvent(t *testing.T) {
	ev := soldEvent(7)

	row, err := transformEvent(ev)
	if err != nil {
		t.Fatalf("transformEvent() error = %v", err)
	}
	if row.Seq != 7 {
		t.Errorf("Seq = %d, want 7", row.Seq)
	}
	if row.Kind != "item_sold" {
		t.Errorf("Kind = %q, want %q", row.Kind, "item_sold")
	}
	if row.EventID != ev.ID.String() || row.TxRef != ev.TxRef.String() {
		t.Errorf("ids = %s/%s", row.EventID, row.TxRef)
	}
	if !row.OccurredAt.Equal(ev.At) {
		t.Errorf("OccurredAt = %v, want %v", row.OccurredAt, ev.At)
	}
	want := `{"listing_id":1,"buyer":"0x00000000000000000000000000000000000000b0","quantity":2,"track_id":1,"seller":"0x0000000000000000000000000000000000000000","payment":10,"fee":0}`
	if string(row.Data) != want {
		t.Errorf("Data = %s, want %s", row.Data, want)
	}
}

func TestEventWriter_HandleEvent_AddsToBatch(t *testing.T) {
	cfg := WriterConfig{BatchSize: 100, FlushInterval: time.Hour}
	w := NewEventWriter(cfg, router.NewGrowableBuffer[model.Event](10, 0), &fakeSender{}, nil)

	w.handleEvent(soldEvent(3))
	w.handleEvent(soldEvent(2))

	w.batchMu.Lock()
	batchLen := len(w.batch)
	w.batchMu.Unlock()

	if batchLen != 2 {
		t.Errorf("batch length = %d, want 2", batchLen)
	}
	if w.LastSeq() != 3 {
		t.Errorf("LastSeq() = %d, want 3", w.LastSeq())
	}
}

func TestEventWriter_FlushOnBatchSize(t *testing.T) {
	cfg := WriterConfig{BatchSize: 5, FlushInterval: time.Hour}
	input := router.NewGrowableBuffer[model.Event](10, 0)
	db := &fakeSender{conflicts: 1}
	w := NewEventWriter(cfg, input, db, nil)

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for i := 1; i <= 5; i++ {
		input.Send(soldEvent(uint64(i)))
	}

	deadline := time.Now().Add(time.Second)
	for {
		if batches, _ := db.stats(); batches > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for flush")
		}
		time.Sleep(5 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	stats := w.Stats()
	if stats.Inserts != 4 || stats.Conflicts != 1 {
		t.Errorf("Inserts/Conflicts = %d/%d, want 4/1", stats.Inserts, stats.Conflicts)
	}
	if stats.Flushes != 1 {
		t.Errorf("Flushes = %d, want 1", stats.Flushes)
	}
}

func TestEventWriter_StopFlushesQueued(t *testing.T) {
	cfg := WriterConfig{BatchSize: 100, FlushInterval: time.Hour}
	input := router.NewGrowableBuffer[model.Event](10, 0)
	db := &fakeSender{}
	w := NewEventWriter(cfg, input, db, nil)

	ctx := context.Background()
	w.Start(ctx)
	for i := 1; i <= 3; i++ {
		input.Send(soldEvent(uint64(i)))
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if _, queued := db.stats(); queued != 3 {
		t.Errorf("queued = %d, want 3", queued)
	}
	if w.LastSeq() != 3 {
		t.Errorf("LastSeq() = %d, want 3", w.LastSeq())
	}
}

func TestEventWriter_InsertError(t *testing.T) {
	cfg := WriterConfig{BatchSize: 100, FlushInterval: time.Hour}
	db := &fakeSender{err: errors.New("connection reset")}
	w := NewEventWriter(cfg, router.NewGrowableBuffer[model.Event](10, 0), db, nil)
	w.ctx = context.Background()

	w.handleEvent(soldEvent(1))
	w.flushContext(context.Background())

	stats := w.Stats()
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
	if stats.Inserts != 0 {
		t.Errorf("Inserts = %d, want 0", stats.Inserts)
	}
}

func TestSnapshotWriter_HandleSnapshot(t *testing.T) {
	db := &fakeSender{}
	w := NewSnapshotWriter(db, nil)

	snap := model.Snapshot{
		TakenAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Seq:     42,
		ActiveListings: []model.Listing{
			{ID: 1, TrackID: 1, Seller: model.Address{19: 1}, UnitPrice: 5, QuantityListed: 10, QuantitySold: 4},
		},
		Supply: []model.SupplyAudit{
			{TrackID: 1, TotalSupply: 1000, Held: 1000, Holders: 2},
			{TrackID: 2, TotalSupply: 5, Held: 5, Holders: 1},
		},
	}

	if err := w.HandleSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("HandleSnapshot() error = %v", err)
	}
	if batches, queued := db.stats(); batches != 1 || queued != 3 {
		t.Errorf("batches/queued = %d/%d, want 1/3", batches, queued)
	}
	if stats := w.Stats(); stats.Inserts != 3 {
		t.Errorf("Inserts = %d, want 3", stats.Inserts)
	}
}

func TestSnapshotWriter_Empty(t *testing.T) {
	db := &fakeSender{}
	w := NewSnapshotWriter(db, nil)

	if err := w.HandleSnapshot(context.Background(), model.Snapshot{Seq: 1}); err != nil {
		t.Fatalf("HandleSnapshot() error = %v", err)
	}
	if batches, _ := db.stats(); batches != 0 {
		t.Errorf("batches = %d, want 0", batches)
	}
}

func TestSnapshotWriter_Error(t *testing.T) {
	db := &fakeSender{err: errors.New("relation does not exist")}
	w := NewSnapshotWriter(db, nil)

	err := w.HandleSnapshot(context.Background(), model.Snapshot{
		Seq:    9,
		Supply: []model.SupplyAudit{{TrackID: 1, TotalSupply: 1, Held: 1, Holders: 1}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if w.Stats().Errors != 1 {
		t.Errorf("Errors = %d, want 1", w.Stats().Errors)
	}
}

func TestTransformSnapshot(t *testing.T) {
	snap := model.Snapshot{
		TakenAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600)),
		Seq:     3,
		ActiveListings: []model.Listing{
			{ID: 2, TrackID: 1, Seller: model.Address{19: 1}, UnitPrice: 18446744073709551615, QuantityListed: 1},
		},
		Supply: []model.SupplyAudit{{TrackID: 1, TotalSupply: 18446744073709551615, Held: 1}},
	}

	supply, listings := transformSnapshot(snap)
	if supply[0].TotalSupply != "18446744073709551615" {
		t.Errorf("TotalSupply = %s", supply[0].TotalSupply)
	}
	if supply[0].TakenAt.Location() != time.UTC {
		t.Errorf("TakenAt location = %v, want UTC", supply[0].TakenAt.Location())
	}
	if listings[0].UnitPrice != "18446744073709551615" {
		t.Errorf("UnitPrice = %s", listings[0].UnitPrice)
	}
	if listings[0].Seller != "0x0000000000000000000000000000000000000001" {
		t.Errorf("Seller = %s", listings[0].Seller)
	}
}
