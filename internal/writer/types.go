package writer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// WriterConfig contains configuration for batch writers.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: time.Second,
	}
}

// WriterMetrics counts writer activity.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
}

// BatchSender is the subset of *pgxpool.Pool the writers need.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// eventRow is a row of the ledger_events table.
type eventRow struct {
	Seq        int64
	EventID    string
	Kind       string
	TxRef      string
	OccurredAt time.Time
	Data       []byte // JSONB payload
}

// supplyRow is a row of the supply_snapshots table.
type supplyRow struct {
	TakenAt     time.Time
	Seq         int64
	TrackID     int64
	TotalSupply string // numeric
	Held        string // numeric
	Holders     int
}

// listingRow is a row of the listing_snapshots table.
type listingRow struct {
	TakenAt        time.Time
	Seq            int64
	ListingID      int64
	TrackID        int64
	Seller         string
	UnitPrice      string // numeric
	QuantityListed string // numeric
	QuantitySold   string // numeric
}

// execAll reads one result per queued statement and counts statements that
// affected no rows.
func execAll(results pgx.BatchResults, n int) (conflicts int, err error) {
	for i := 0; i < n; i++ {
		ct, err := results.Exec()
		if err != nil {
			return conflicts, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}
	return conflicts, nil
}
