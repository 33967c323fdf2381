package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/track-market/internal/model"
)

// SnapshotSource produces point-in-time snapshots.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (model.Snapshot, error)
}

// SnapshotHandler receives snapshots.
type SnapshotHandler interface {
	HandleSnapshot(ctx context.Context, snapshot model.Snapshot) error
}

// SnapshotHandlerFunc is a function adapter for SnapshotHandler.
type SnapshotHandlerFunc func(context.Context, model.Snapshot) error

func (f SnapshotHandlerFunc) HandleSnapshot(ctx context.Context, s model.Snapshot) error {
	return f(ctx, s)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Poll interval (default: 1m)
	Concurrency int           // Max handlers running at once (default: 4)
	Timeout     time.Duration // Per-handler timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    time.Minute,
		Concurrency: 4,
		Timeout:     10 * time.Second,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	Polls         int64
	SourceErrors  int64
	HandlerErrors int64
	Unbalanced    int64 // Audits with held != total supply
	LastSeq       uint64
}

// Poller periodically snapshots the marketplace.
type Poller struct {
	cfg      Config
	source   SnapshotSource
	handlers []SnapshotHandler
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	polls         atomic.Int64
	sourceErrors  atomic.Int64
	handlerErrors atomic.Int64
	unbalanced    atomic.Int64
	lastSeq       atomic.Uint64
}

// New creates a new Poller.
func New(cfg Config, source SnapshotSource, handlers []SnapshotHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{
		cfg:      cfg,
		source:   source,
		handlers: handlers,
		logger:   logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("snapshot poller started",
		"interval", p.cfg.Interval,
		"handlers", len(p.handlers),
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("snapshot poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (p *Poller) Stats() Stats {
	return Stats{
		Polls:         p.polls.Load(),
		SourceErrors:  p.sourceErrors.Load(),
		HandlerErrors: p.handlerErrors.Load(),
		Unbalanced:    p.unbalanced.Load(),
		LastSeq:       p.lastSeq.Load(),
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.poll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll takes one snapshot and hands it to every handler concurrently.
func (p *Poller) poll() {
	start := time.Now()

	snap, err := p.source.Snapshot(p.ctx)
	if err != nil {
		if p.ctx.Err() == nil {
			p.sourceErrors.Add(1)
			p.logger.Warn("failed to take snapshot", "error", err)
		}
		return
	}
	p.polls.Add(1)
	p.lastSeq.Store(snap.Seq)

	for _, a := range snap.Supply {
		if !a.Balanced() {
			p.unbalanced.Add(1)
			p.logger.Error("supply not conserved",
				"track_id", a.TrackID,
				"total_supply", a.TotalSupply,
				"held", a.Held,
				"seq", snap.Seq,
			)
		}
	}

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var handled, failed atomic.Int64

	for i, h := range p.handlers {
		wg.Add(1)
		go func(idx int, h SnapshotHandler) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-p.ctx.Done():
				return
			}

			ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
			defer cancel()

			if err := h.HandleSnapshot(ctx, snap); err != nil {
				p.logger.Warn("snapshot handler failed",
					"handler", idx,
					"seq", snap.Seq,
					"error", err,
				)
				failed.Add(1)
				return
			}
			handled.Add(1)
		}(i, h)
	}

	wg.Wait()
	p.handlerErrors.Add(failed.Load())

	p.logger.Debug("poll cycle complete",
		"seq", snap.Seq,
		"listings", len(snap.ActiveListings),
		"tracks", len(snap.Supply),
		"handled", handled.Load(),
		"errors", failed.Load(),
		"duration", time.Since(start),
	)
}
