package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/track-market/internal/model"
	"github.com/rickgao/track-market/internal/router"
)

// History supplies retained events for replay.
type History interface {
	History(since uint64, limit int) []model.Event
}

// Config holds Hub configuration.
type Config struct {
	PingInterval time.Duration // Server ping cadence
	WriteTimeout time.Duration // Deadline for each frame
	SendBuffer   int           // Live events queued per client before it is dropped
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		PingInterval: 30 * time.Second,
		WriteTimeout: 5 * time.Second,
		SendBuffer:   1024,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	Clients   int
	Connected int64 // Total connections accepted
	Sent      int64 // Frames written
	Dropped   int64 // Clients disconnected for falling behind
}

// Hub fans events out to websocket clients.
type Hub struct {
	cfg      Config
	history  History
	events   *router.GrowableBuffer[model.Event]
	upgrader websocket.Upgrader
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	clients   map[*client]struct{}
	connected int64
	sent      int64
	dropped   int64
}

// NewHub creates a Hub reading live events from sub.
func NewHub(cfg Config, history History, sub *router.Subscription, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &Hub{
		cfg:     cfg,
		history: history,
		events:  sub.Events,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Start begins forwarding live events.
func (h *Hub) Start(ctx context.Context) error {
	h.ctx, h.cancel = context.WithCancel(ctx)

	h.wg.Add(1)
	go h.broadcastLoop()

	h.logger.Info("event feed started",
		"ping_interval", h.cfg.PingInterval,
		"send_buffer", h.cfg.SendBuffer,
	)
	return nil
}

// Stop disconnects all clients and waits for their goroutines.
func (h *Hub) Stop(ctx context.Context) error {
	h.logger.Info("stopping event feed")
	if h.cancel != nil {
		h.cancel()
	}
	h.events.Close()

	h.mu.Lock()
	for c := range h.clients {
		c.close()
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("event feed stopped")
		return nil
	case <-ctx.Done():
		h.logger.Warn("event feed stop timed out")
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		Clients:   len(h.clients),
		Connected: h.connected,
		Sent:      h.sent,
		Dropped:   h.dropped,
	}
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		since = v
	}

	if h.ctx == nil || h.ctx.Err() != nil {
		http.Error(w, "feed not running", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(conn, since, h.cfg.SendBuffer)

	// Registered before the history read. Overlap is dropped by seq.
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.connected++
	h.mu.Unlock()

	h.logger.Debug("feed client connected", "remote", r.RemoteAddr, "since", since)

	h.wg.Add(2)
	go h.readLoop(c)
	go h.writeLoop(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *Hub) broadcastLoop() {
	defer h.wg.Done()

	for {
		ev, ok := h.events.Receive()
		if !ok {
			return
		}

		h.mu.Lock()
		for c := range h.clients {
			if !c.enqueue(ev) {
				delete(h.clients, c)
				h.dropped++
				h.logger.Warn("feed client too slow, disconnecting",
					"remote", c.conn.RemoteAddr().String(),
					"seq", ev.Seq,
				)
				c.close()
			}
		}
		h.mu.Unlock()
	}
}

// readLoop discards inbound frames so control frames are processed, and
// notices when the peer goes away.
func (h *Hub) readLoop(c *client) {
	defer h.wg.Done()
	defer h.remove(c)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer h.wg.Done()
	defer h.remove(c)

	for _, ev := range h.history.History(c.lastSeq, 0) {
		if err := h.write(c, ev); err != nil {
			return
		}
	}

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case ev := <-c.send:
			if ev.Seq <= c.lastSeq {
				continue
			}
			if err := h.write(c, ev); err != nil {
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				h.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

func (h *Hub) write(c *client, ev model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", "seq", ev.Seq, "error", err)
		return err
	}

	c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Debug("feed write failed", "seq", ev.Seq, "error", err)
		return err
	}
	c.lastSeq = ev.Seq

	h.mu.Lock()
	h.sent++
	h.mu.Unlock()
	return nil
}
