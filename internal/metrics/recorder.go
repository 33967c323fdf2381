package metrics

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rickgao/track-market/internal/router"
)

// EventRecorder feeds events from a router subscription into Metrics.
type EventRecorder struct {
	metrics *Metrics
	sub     *router.Subscription
	logger  *slog.Logger

	wg sync.WaitGroup
}

// NewEventRecorder creates an EventRecorder.
func NewEventRecorder(m *Metrics, sub *router.Subscription, logger *slog.Logger) *EventRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventRecorder{
		metrics: m,
		sub:     sub,
		logger:  logger,
	}
}

// Start begins consuming events.
func (r *EventRecorder) Start(ctx context.Context) error {
	r.wg.Add(1)
	go r.run()
	r.logger.Debug("event recorder started", "subscription", r.sub.Name)
	return nil
}

// Stop waits for the subscription to drain. The router closes the
// subscription buffer on its own Stop.
func (r *EventRecorder) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.logger.Warn("event recorder stop timed out", "pending", r.sub.Events.Len())
		return ctx.Err()
	}
}

func (r *EventRecorder) run() {
	defer r.wg.Done()

	for {
		ev, ok := r.sub.Events.Receive()
		if !ok {
			return
		}
		r.metrics.ObserveEvent(ev)
	}
}
