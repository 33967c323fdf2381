package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/track-market/internal/model"
	"github.com/rickgao/track-market/internal/payment"
)

// Publisher receives committed events in seq order.
type Publisher interface {
	Publish(events []model.Event)
}

// Observer is notified of every Update.
type Observer interface {
	ObserveOp(op string, err error, d time.Duration)
}

// Config holds ledger configuration.
type Config struct {
	// HistorySize is the number of committed events retained for replay.
	HistorySize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HistorySize: 10000,
	}
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPublisher sets the event publisher.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) {
		l.publisher = p
	}
}

// WithObserver sets the operation observer.
func WithObserver(o Observer) Option {
	return func(l *Ledger) {
		l.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithClock overrides the transaction clock.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// Ledger serializes all state mutation behind one lock.
type Ledger struct {
	cfg       Config
	settler   payment.Settler
	publisher Publisher
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.RWMutex
	seq     uint64
	history []model.Event
}

// New creates a Ledger that settles payouts through settler.
func New(cfg Config, settler payment.Settler, opts ...Option) *Ledger {
	if cfg.HistorySize < 0 {
		cfg.HistorySize = 0
	}
	l := &Ledger{
		cfg:     cfg,
		settler: settler,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Update runs fn as one atomic operation. If fn or settlement fails, every
// mutation fn made is undone and no event is published.
func (l *Ledger) Update(ctx context.Context, op string, fn func(tx *Tx) error) (err error) {
	start := time.Now()
	defer func() {
		if l.observer != nil {
			l.observer.ObserveOp(op, err, time.Since(start))
		}
	}()

	l.mu.Lock()
	defer l.mu.Unlock()

	tx := newTx(l.now().UTC())
	committed := false
	defer func() {
		if !committed {
			tx.rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if len(tx.payouts) > 0 {
		if err := l.settler.Settle(ctx, tx.ref, tx.payouts); err != nil {
			l.logger.Warn("settlement failed, rolling back",
				"op", op,
				"tx_ref", tx.ref,
				"payouts", len(tx.payouts),
				"error", err,
			)
			return fmt.Errorf("%w: %v", model.ErrPaymentFailed, err)
		}
	}
	committed = true

	l.commitEventsLocked(tx.events)
	return nil
}

// commitEventsLocked sequences, retains and publishes events.
func (l *Ledger) commitEventsLocked(events []model.Event) {
	if len(events) == 0 {
		return
	}
	for i := range events {
		l.seq++
		events[i].Seq = l.seq
	}

	if l.cfg.HistorySize > 0 {
		l.history = append(l.history, events...)
		if over := len(l.history) - l.cfg.HistorySize; over > 0 {
			trimmed := make([]model.Event, l.cfg.HistorySize)
			copy(trimmed, l.history[over:])
			l.history = trimmed
		}
	}

	// Publish under the lock so subscribers see seq order.
	if l.publisher != nil {
		l.publisher.Publish(events)
	}
}

// View runs fn under the read lock.
func (l *Ledger) View(fn func()) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fn()
}

// Seq returns the seq of the last committed event.
func (l *Ledger) Seq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.seq
}

// SeqLocked is Seq for callers already inside View or Update.
func (l *Ledger) SeqLocked() uint64 {
	return l.seq
}

// History returns up to limit retained events with seq > since, oldest
// first. limit <= 0 means no limit.
func (l *Ledger) History(since uint64, limit int) []model.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i := sort.Search(len(l.history), func(i int) bool {
		return l.history[i].Seq > since
	})
	n := len(l.history) - i
	if limit > 0 && limit < n {
		n = limit
	}

	result := make([]model.Event, n)
	copy(result, l.history[i:i+n])
	return result
}

// Now returns the ledger clock reading in UTC.
func (l *Ledger) Now() time.Time {
	return l.now().UTC()
}
