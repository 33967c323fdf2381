package writer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/track-market/internal/model"
)

// SnapshotWriter stores snapshots delivered by the poller. It implements
// poller.SnapshotHandler.
type SnapshotWriter struct {
	db     BatchSender
	logger *slog.Logger

	mu      sync.Mutex
	metrics WriterMetrics
}

// NewSnapshotWriter creates a new SnapshotWriter.
func NewSnapshotWriter(db BatchSender, logger *slog.Logger) *SnapshotWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotWriter{
		db:     db,
		logger: logger,
	}
}

// HandleSnapshot writes one supply row per track and one listing row per
// active listing in a single batch.
func (w *SnapshotWriter) HandleSnapshot(ctx context.Context, snap model.Snapshot) error {
	supply, listings := transformSnapshot(snap)
	if len(supply) == 0 && len(listings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range supply {
		batch.Queue(`
			INSERT INTO supply_snapshots (taken_at, seq, track_id, total_supply, held, holders)
			VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric, $6)
			ON CONFLICT (taken_at, track_id) DO NOTHING
		`, r.TakenAt, r.Seq, r.TrackID, r.TotalSupply, r.Held, r.Holders)
	}
	for _, r := range listings {
		batch.Queue(`
			INSERT INTO listing_snapshots (taken_at, seq, listing_id, track_id, seller, unit_price, quantity_listed, quantity_sold)
			VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7::text::numeric, $8::text::numeric)
			ON CONFLICT (taken_at, listing_id) DO NOTHING
		`, r.TakenAt, r.Seq, r.ListingID, r.TrackID, r.Seller, r.UnitPrice, r.QuantityListed, r.QuantitySold)
	}

	start := time.Now()
	n := len(supply) + len(listings)

	results := w.db.SendBatch(ctx, batch)
	conflicts, err := execAll(results, n)
	if closeErr := results.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		w.mu.Lock()
		w.metrics.Errors++
		w.mu.Unlock()
		return fmt.Errorf("write snapshot at seq %d: %w", snap.Seq, err)
	}

	w.mu.Lock()
	w.metrics.Inserts += int64(n - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.mu.Unlock()

	w.logger.Debug("snapshot stored",
		"seq", snap.Seq,
		"tracks", len(supply),
		"listings", len(listings),
		"duration", time.Since(start),
	)
	return nil
}

// Stats returns current metrics.
func (w *SnapshotWriter) Stats() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// transformSnapshot converts a snapshot to table rows.
func transformSnapshot(snap model.Snapshot) ([]supplyRow, []listingRow) {
	takenAt := snap.TakenAt.UTC()
	seq := int64(snap.Seq)

	supply := make([]supplyRow, len(snap.Supply))
	for i, a := range snap.Supply {
		supply[i] = supplyRow{
			TakenAt:     takenAt,
			Seq:         seq,
			TrackID:     int64(a.TrackID),
			TotalSupply: strconv.FormatUint(a.TotalSupply, 10),
			Held:        strconv.FormatUint(a.Held, 10),
			Holders:     a.Holders,
		}
	}

	listings := make([]listingRow, len(snap.ActiveListings))
	for i, l := range snap.ActiveListings {
		listings[i] = listingRow{
			TakenAt:        takenAt,
			Seq:            seq,
			ListingID:      int64(l.ID),
			TrackID:        int64(l.TrackID),
			Seller:         l.Seller.Hex(),
			UnitPrice:      l.UnitPrice.String(),
			QuantityListed: strconv.FormatUint(l.QuantityListed, 10),
			QuantitySold:   strconv.FormatUint(l.QuantitySold, 10),
		}
	}
	return supply, listings
}
