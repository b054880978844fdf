// Package socket implements the buffered, completion-driven read path of a
// cache server connection: logical reads of exactly N bytes are satisfied
// from coalesced physical receives, so small protocol reads do not each hit
// the transport.
package socket

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/SethReber/Enyim.Caching/internal/transport"
)

// DefaultReadTimeout bounds how long a pending read waits for one physical
// receive to complete when no timeout is configured.
const DefaultReadTimeout = 10 * time.Second

// Conn is one connection to the server. It owns the receive-side buffering
// and supports exactly one outstanding logical read at a time; issuing a
// second read while one is pending is a caller error. Writes are a thin
// passthrough and may proceed concurrently with a pending read.
type Conn struct {
	tc          transport.Conn
	readTimeout time.Duration
	log         zerolog.Logger
	alive       atomic.Bool
	rd          *reader
}

// NewConn wraps an established transport connection. A non-positive
// readTimeout selects DefaultReadTimeout.
func NewConn(tc transport.Conn, readTimeout time.Duration, logger zerolog.Logger) *Conn {
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	c := &Conn{
		tc:          tc,
		readTimeout: readTimeout,
		log:         logger,
	}
	c.alive.Store(true)
	c.rd = newReader(c, &transportReceiver{tc: tc})
	return c
}

// Read starts the logical read described by req. When the buffered surplus
// already covers req.Count the result is placed in req synchronously and
// pending is false: no callback will fire and req is ready on return.
// Otherwise pending is true and req.Callback delivers the outcome exactly
// once, possibly on another goroutine, possibly before Read itself returns.
func (c *Conn) Read(req *Request) (pending bool, err error) {
	return c.rd.read(req)
}

// Write sends data on the connection, marking it dead on failure.
func (c *Conn) Write(data []byte) error {
	if _, err := c.tc.Write(data); err != nil {
		c.MarkDead()
		return fmt.Errorf("socket: write failed: %w", err)
	}
	return nil
}

// IsAlive reports whether the connection is still considered usable.
func (c *Conn) IsAlive() bool {
	return c.alive.Load()
}

// MarkDead flags the connection as no longer usable.
func (c *Conn) MarkDead() {
	c.alive.Store(false)
}

// DiscardBuffer drops all buffered unread bytes. It performs no
// synchronization: it must only be called with no read in flight, e.g.
// while resetting a connection between protocol exchanges.
func (c *Conn) DiscardBuffer() {
	c.rd.buf.Clear()
}

// Close marks the connection dead and closes the transport.
func (c *Conn) Close() error {
	c.MarkDead()
	return c.tc.Close()
}

// transportReceiver issues physical receives against a transport connection.
// Transport reads block, so every attempt completes asynchronously: the read
// runs on its own goroutine and reports through the completion callback.
type transportReceiver struct {
	tc transport.Conn
}

func (t *transportReceiver) receive(p []byte, complete func(n int, err error)) (done bool, n int, err error) {
	go func() {
		n, err := t.tc.Read(p)
		switch {
		case n > 0:
			// Deliver the bytes; a trailing error resurfaces on the
			// next attempt.
			complete(n, nil)
		case errors.Is(err, io.EOF):
			// Zero bytes, no error: the peer closed the stream.
			complete(0, nil)
		default:
			complete(0, err)
		}
	}()
	return false, 0, nil
}
