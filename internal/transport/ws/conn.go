package ws

import (
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"lawrence.mp/internal/protocol"
)

// conn is the game-facing side of one websocket. The game loop calls Send and
// Close; the handler's goroutines own the socket.
type conn struct {
	id    string
	codec protocol.Codec
	log   *log.Logger

	out  chan []byte
	done chan struct{}
	once sync.Once

	closed  atomic.Bool
	last    atomic.Int64 // unix nanos
	dropped atomic.Uint64
}

func newConn(id string, codec protocol.Codec, queue int, logger *log.Logger) *conn {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &conn{
		id:    id,
		codec: codec,
		log:   logger,
		out:   make(chan []byte, queue),
		done:  make(chan struct{}),
	}
}

func (c *conn) ID() string { return c.id }

func (c *conn) IsClosed() bool { return c.closed.Load() }

func (c *conn) LastActivity() time.Time { return time.Unix(0, c.last.Load()) }

func (c *conn) touch(t time.Time) { c.last.Store(t.UnixNano()) }

// Send encodes msg and queues it, dropping the oldest queued frame when the
// client is not keeping up.
func (c *conn) Send(msg any) {
	if c.closed.Load() {
		return
	}
	b, err := c.codec.Encode(msg)
	if err != nil {
		c.log.Printf("[session %s] encode %T: %v", c.id, msg, err)
		return
	}
	if !sendLatest(c.out, b) {
		c.dropped.Add(1)
	}
}

// Close marks the connection closed. Frames already queued are still written.
func (c *conn) Close() {
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.done)
	})
}

// sendLatest reports false when an older frame had to be dropped.
func sendLatest(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
	return false
}
