package router

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rickgao/track-market/internal/model"
)

// Config holds Router configuration.
type Config struct {
	InputBufferSize int // Initial capacity of the publish queue
	BufferSize      int // Initial capacity of each subscription buffer
	MaxBufferSize   int // Growth ceiling per subscription, 0 for unbounded
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		InputBufferSize: 1000,
		BufferSize:      1000,
		MaxBufferSize:   100000,
	}
}

// Subscription is one consumer's view of the event stream.
type Subscription struct {
	Name   string
	Events *GrowableBuffer[model.Event]

	kinds map[model.EventKind]struct{} // nil matches every kind
}

func (s *Subscription) matches(kind model.EventKind) bool {
	if s.kinds == nil {
		return true
	}
	_, ok := s.kinds[kind]
	return ok
}

// Stats contains runtime statistics.
type Stats struct {
	EventsReceived int64
	EventsRouted   int64
	LastSeq        uint64
	Input          BufferStats
	Subscriptions  map[string]BufferStats
}

// Router implements ledger.Publisher.
type Router struct {
	cfg    Config
	logger *slog.Logger

	input *GrowableBuffer[[]model.Event]

	subsMu sync.RWMutex
	subs   []*Subscription

	wg sync.WaitGroup

	mu       sync.Mutex
	received int64
	routed   int64
	lastSeq  uint64
}

// New creates a Router.
func New(cfg Config, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:    cfg,
		logger: logger,
		input:  NewGrowableBuffer[[]model.Event](cfg.InputBufferSize, 0),
	}
}

// Subscribe registers a consumer for the given kinds, or for every kind
// when none are given. Subscribe before Start to see every event.
func (r *Router) Subscribe(name string, kinds ...model.EventKind) *Subscription {
	sub := &Subscription{
		Name:   name,
		Events: NewGrowableBuffer[model.Event](r.cfg.BufferSize, r.cfg.MaxBufferSize),
	}
	if len(kinds) > 0 {
		sub.kinds = make(map[model.EventKind]struct{}, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = struct{}{}
		}
	}

	r.subsMu.Lock()
	r.subs = append(r.subs, sub)
	r.subsMu.Unlock()

	return sub
}

// Publish enqueues a committed batch. It never blocks on consumers.
func (r *Router) Publish(events []model.Event) {
	if len(events) == 0 {
		return
	}
	if !r.input.Send(events) {
		r.logger.Warn("router closed, dropping events",
			"count", len(events),
			"first_seq", events[0].Seq,
		)
	}
}

// Start begins routing.
func (r *Router) Start(ctx context.Context) error {
	r.wg.Add(1)
	go r.routeLoop()

	r.subsMu.RLock()
	n := len(r.subs)
	r.subsMu.RUnlock()

	r.logger.Info("event router started",
		"subscriptions", n,
		"buffer_size", r.cfg.BufferSize,
		"max_buffer_size", r.cfg.MaxBufferSize,
	)
	return nil
}

// Stop routes everything already published, then closes all subscription
// buffers. If ctx expires first, undelivered events are abandoned.
func (r *Router) Stop(ctx context.Context) error {
	r.logger.Info("stopping event router")
	r.input.Close()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("event router stopped")
	case <-ctx.Done():
		r.logger.Warn("event router stop timed out", "pending", r.input.Len())
	}

	r.subsMu.RLock()
	for _, sub := range r.subs {
		sub.Events.Close()
	}
	r.subsMu.RUnlock()

	return nil
}

// Stats returns current statistics.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	stats := Stats{
		EventsReceived: r.received,
		EventsRouted:   r.routed,
		LastSeq:        r.lastSeq,
	}
	r.mu.Unlock()

	stats.Input = r.input.Stats()
	stats.Subscriptions = make(map[string]BufferStats)

	r.subsMu.RLock()
	defer r.subsMu.RUnlock()
	for _, sub := range r.subs {
		stats.Subscriptions[sub.Name] = sub.Events.Stats()
	}
	return stats
}

func (r *Router) routeLoop() {
	defer r.wg.Done()

	for {
		batch, ok := r.input.Receive()
		if !ok {
			return
		}
		r.route(batch)
	}
}

// route copies each event of a batch into every matching subscription.
func (r *Router) route(batch []model.Event) {
	r.subsMu.RLock()
	defer r.subsMu.RUnlock()

	var routed int64
	for _, ev := range batch {
		for _, sub := range r.subs {
			if sub.matches(ev.Kind) && sub.Events.Send(ev) {
				routed++
			}
		}
	}

	r.mu.Lock()
	r.received += int64(len(batch))
	r.routed += routed
	r.lastSeq = batch[len(batch)-1].Seq
	r.mu.Unlock()
}
