package feed

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/track-market/internal/model"
)

// client is one connected feed subscriber.
type client struct {
	conn *websocket.Conn
	send chan model.Event
	done chan struct{}

	lastSeq uint64 // Owned by the write loop

	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, since uint64, buffer int) *client {
	return &client{
		conn:    conn,
		send:    make(chan model.Event, buffer),
		done:    make(chan struct{}),
		lastSeq: since,
	}
}

// enqueue queues ev without blocking. It returns false if the client's
// buffer is full.
func (c *client) enqueue(ev model.Event) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.conn.Close()
	})
}
