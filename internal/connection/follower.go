package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rickgao/track-market/internal/model"
)

// Follower keeps a feed connection alive and delivers each event once.
type Follower struct {
	cfg    FollowerConfig
	logger *slog.Logger

	events chan model.Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	stats FollowerStats
}

// NewFollower creates a Follower.
func NewFollower(cfg FollowerConfig, logger *slog.Logger) *Follower {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultFollowerConfig()
	if cfg.ReconnectBaseWait <= 0 {
		cfg.ReconnectBaseWait = def.ReconnectBaseWait
	}
	if cfg.ReconnectMaxWait < cfg.ReconnectBaseWait {
		cfg.ReconnectMaxWait = cfg.ReconnectBaseWait
	}

	return &Follower{
		cfg:    cfg,
		logger: logger,
		events: make(chan model.Event, cfg.BufferSize),
		stats:  FollowerStats{LastSeq: cfg.Since},
	}
}

// Events returns delivered events in seq order. The channel is closed when
// the follower stops.
func (f *Follower) Events() <-chan model.Event {
	return f.events
}

// LastSeq returns the seq of the last delivered event.
func (f *Follower) LastSeq() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats.LastSeq
}

// Stats returns current statistics.
func (f *Follower) Stats() FollowerStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// Start connects in the background and keeps reconnecting until Stop.
func (f *Follower) Start(ctx context.Context) error {
	if _, err := f.feedURL(0); err != nil {
		return err
	}
	f.ctx, f.cancel = context.WithCancel(ctx)

	f.wg.Add(1)
	go f.run()

	f.logger.Info("follower started", "url", f.cfg.URL, "since", f.cfg.Since)
	return nil
}

// Stop disconnects and waits for the follower to exit.
func (f *Follower) Stop(ctx context.Context) error {
	if f.cancel != nil {
		f.cancel()
	}

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		f.logger.Info("follower stopped", "last_seq", f.LastSeq())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Follower) feedURL(since uint64) (string, error) {
	u, err := url.Parse(f.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	q := u.Query()
	if since > 0 {
		q.Set("since", strconv.FormatUint(since, 10))
	} else {
		q.Del("since")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// run connects with exponential backoff until the context ends.
func (f *Follower) run() {
	defer f.wg.Done()
	defer close(f.events)

	wait := f.cfg.ReconnectBaseWait
	for {
		if f.ctx.Err() != nil {
			return
		}

		err := f.session()
		if f.ctx.Err() != nil {
			return
		}

		if err == nil {
			wait = f.cfg.ReconnectBaseWait
		}
		f.logger.Warn("feed connection lost, reconnecting",
			"error", err,
			"wait", wait,
			"last_seq", f.LastSeq(),
		)

		select {
		case <-f.ctx.Done():
			return
		case <-time.After(wait):
		}

		if err != nil {
			// Exponential backoff
			wait *= 2
			if wait > f.cfg.ReconnectMaxWait {
				wait = f.cfg.ReconnectMaxWait
			}
		}
	}
}

// session runs one connection. It returns nil if the connection was
// established and later dropped, or the dial error.
func (f *Follower) session() error {
	target, err := f.feedURL(f.LastSeq())
	if err != nil {
		return err
	}

	c := NewClient(ClientConfig{
		URL:          target,
		Credentials:  f.cfg.Credentials,
		PingTimeout:  f.cfg.PingTimeout,
		WriteTimeout: f.cfg.WriteTimeout,
		BufferSize:   f.cfg.BufferSize,
	}, f.logger)
	if err := c.Connect(f.ctx); err != nil {
		return err
	}
	defer c.Close()

	f.mu.Lock()
	f.stats.Connects++
	f.mu.Unlock()
	f.logger.Info("feed connected", "since", f.LastSeq())

	for {
		select {
		case <-f.ctx.Done():
			return nil

		case err := <-c.Errors():
			f.logger.Debug("feed connection error", "error", err)
			// Frames read before the error are already buffered.
			for {
				select {
				case msg := <-c.Messages():
					if !f.deliver(msg.Data) {
						return nil
					}
				default:
					return nil
				}
			}

		case msg := <-c.Messages():
			if !f.deliver(msg.Data) {
				return nil
			}
		}
	}
}

// deliver decodes one frame and forwards it unless it was already seen.
// It returns false if the follower is stopping.
func (f *Follower) deliver(data []byte) bool {
	var ev model.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		f.mu.Lock()
		f.stats.DecodeErrors++
		f.mu.Unlock()
		f.logger.Warn("failed to decode feed event", "error", err)
		return true
	}

	f.mu.Lock()
	if ev.Seq <= f.stats.LastSeq {
		f.stats.Duplicates++
		f.mu.Unlock()
		return true
	}
	f.mu.Unlock()

	select {
	case f.events <- ev:
	case <-f.ctx.Done():
		return false
	}

	f.mu.Lock()
	f.stats.LastSeq = ev.Seq
	f.stats.Received++
	f.mu.Unlock()
	return true
}
