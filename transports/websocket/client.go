package websocket

import (
	"errors"
	"sync"
	"time"

	"aitherapist/core"
	"aitherapist/protocol"

	"github.com/gorilla/websocket"
)

var errClientStalled = errors.New("websocket: client send buffer full")

type frame struct {
	messageType int
	data        []byte
}

// client is one connected renderer. Writes are funnelled through send so
// callers never block on the network.
type client struct {
	id     string
	seq    uint64
	conn   *websocket.Conn
	logger *core.Logger

	mu     sync.Mutex // keeps multi-frame sends adjacent
	send   chan frame
	done   chan struct{}
	closed bool

	caps protocol.Capabilities // guarded by the hub's mutex
}

func newClient(id string, seq uint64, conn *websocket.Conn, buffer int, logger *core.Logger) *client {
	return &client{
		id:     id,
		seq:    seq,
		conn:   conn,
		logger: logger,
		send:   make(chan frame, buffer),
		done:   make(chan struct{}),
	}
}

// sendJSON queues one envelope.
func (c *client) sendJSON(msgType protocol.MessageType, payload interface{}) error {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		return err
	}
	return c.enqueue(frame{websocket.TextMessage, data})
}

func (c *client) enqueue(frames ...frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	if len(c.send)+len(frames) > cap(c.send) {
		return errClientStalled
	}
	for _, f := range frames {
		c.send <- f
	}
	return nil
}

func (c *client) writePump(writeTimeout time.Duration) {
	for {
		select {
		case <-c.done:
			return
		case f := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(f.messageType, f.data); err != nil {
				c.logger.Warn("write to client failed", "client", c.id, "error", err)
				c.close()
				return
			}
		}
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	c.conn.Close()
}
