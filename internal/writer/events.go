package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/track-market/internal/model"
	"github.com/rickgao/track-market/internal/router"
)

// EventWriter consumes events from a router subscription and appends them to
// the ledger_events table. Replays are idempotent on seq.
type EventWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from the event router
	input *router.GrowableBuffer[model.Event]

	// Database
	db BatchSender

	// Batching
	batch       []eventRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker
	lastSeq     uint64

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewEventWriter creates a new EventWriter.
func NewEventWriter(
	cfg WriterConfig,
	input *router.GrowableBuffer[model.Event],
	db BatchSender,
	logger *slog.Logger,
) *EventWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]eventRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming events and writing to the database.
func (w *EventWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("event writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains whatever is already queued, then flushes.
func (w *EventWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping event writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("event writer stop timed out")
	}

	for _, ev := range w.input.DrainTo(0) {
		w.handleEvent(ev)
	}
	w.flushContext(ctx)

	w.logger.Info("event writer stopped", "last_seq", w.LastSeq())
	return nil
}

// Stats returns current metrics.
func (w *EventWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// LastSeq returns the highest seq handed to the batch so far.
func (w *EventWriter) LastSeq() uint64 {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.lastSeq
}

func (w *EventWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		events := w.input.DrainTo(w.cfg.BatchSize)
		if len(events) == 0 {
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}
		for _, ev := range events {
			w.handleEvent(ev)
		}
	}
}

func (w *EventWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flushContext(w.ctx)
		}
	}
}

// handleEvent transforms and adds an event to the batch.
func (w *EventWriter) handleEvent(ev model.Event) {
	row, err := transformEvent(ev)
	if err != nil {
		w.logger.Error("failed to encode event", "seq", ev.Seq, "kind", ev.Kind, "error", err)
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	if ev.Seq > w.lastSeq {
		w.lastSeq = ev.Seq
	}
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flushContext(w.ctx)
	}
}

// transformEvent converts an event to its table row.
func transformEvent(ev model.Event) (eventRow, error) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return eventRow{}, fmt.Errorf("marshal %s payload: %w", ev.Kind, err)
	}
	return eventRow{
		Seq:        int64(ev.Seq),
		EventID:    ev.ID.String(),
		Kind:       string(ev.Kind),
		TxRef:      ev.TxRef.String(),
		OccurredAt: ev.At,
		Data:       data,
	}, nil
}

// flushContext writes the current batch to the database.
func (w *EventWriter) flushContext(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]eventRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	if ctx.Err() != nil {
		// Final flush after Stop cancelled the writer context.
		ctx = context.Background()
	}

	start := time.Now()
	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("event batch insert failed",
			"error", err,
			"count", len(batch),
			"first_seq", batch[0].Seq,
		)
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed events",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *EventWriter) batchInsert(ctx context.Context, rows []eventRow) (int, error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO ledger_events (seq, event_id, kind, tx_ref, occurred_at, data)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (seq) DO NOTHING
		`, r.Seq, r.EventID, r.Kind, r.TxRef, r.OccurredAt, r.Data)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	return execAll(results, len(rows))
}
