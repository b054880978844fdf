package memcache

import (
	"fmt"
	"sync"

	"github.com/SethReber/Enyim.Caching/internal/socket"
	"github.com/SethReber/Enyim.Caching/internal/transport"
	"github.com/SethReber/Enyim.Caching/pkg/protocol"
)

// Client is a connection to one cache server. Methods are safe for
// concurrent use; a mutex serializes protocol exchanges, which is also what
// upholds the connection's one-outstanding-read contract.
type Client struct {
	opts Options
	mu   sync.Mutex
	conn *socket.Conn
}

// Dial connects to the server described by opts.
func Dial(opts Options) (*Client, error) {
	opts = opts.withDefaults()

	tc, err := transport.Dial(opts.Network, opts.Address, opts.ConnectTimeout)
	if err != nil {
		return nil, err
	}

	c := &Client{
		opts: opts,
		conn: socket.NewConn(tc, opts.ReadTimeout, opts.Logger),
	}
	opts.Logger.Info().
		Str("network", opts.Network).
		Str("addr", opts.Address).
		Msg("connected to cache server")
	return c, nil
}

// IsConnected returns whether the client still has a usable connection.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.conn.IsAlive()
}

// Close closes the connection. The client cannot be reused afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// roundTrip performs one request/response exchange on the connection.
func (c *Client) roundTrip(req *protocol.Request) (protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn := c.conn
	if conn == nil || !conn.IsAlive() {
		return protocol.Response{}, ErrNotConnected
	}

	if err := conn.Write(req.Encode()); err != nil {
		c.teardownLocked("write failed", err)
		return protocol.Response{}, err
	}

	headerBytes, err := c.readExactly(conn, protocol.HeaderLen)
	if err != nil {
		c.teardownLocked("response header read failed", err)
		return protocol.Response{}, err
	}
	h, err := protocol.ParseResponseHeader(headerBytes)
	if err != nil {
		// The stream is out of sync; nothing sensible can follow.
		c.teardownLocked("protocol desync", err)
		return protocol.Response{}, err
	}

	body, err := c.readExactly(conn, int(h.TotalBody))
	if err != nil {
		c.teardownLocked("response body read failed", err)
		return protocol.Response{}, err
	}
	resp, err := h.SplitBody(body)
	if err != nil {
		c.teardownLocked("protocol desync", err)
		return protocol.Response{}, err
	}
	return resp, nil
}

// readExactly adapts the connection's completion-callback read to this
// client's synchronous call shape.
func (c *Client) readExactly(conn *socket.Conn, n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}

	done := make(chan *socket.Request, 1)
	req := &socket.Request{Count: n, Callback: func(r *socket.Request) { done <- r }}

	pending, err := conn.Read(req)
	if err != nil {
		return nil, err
	}
	if pending {
		req = <-done
	}
	if req.Err != nil {
		return nil, req.Err
	}
	return req.Data, nil
}

// teardownLocked closes a connection that can no longer be trusted. Any read
// failure lands here, timeouts included: a receive that completes after its
// read was abandoned would corrupt the buffered stream, so a timed-out
// connection is never reused. Caller holds mu.
func (c *Client) teardownLocked(reason string, cause error) {
	if c.conn == nil {
		return
	}
	c.opts.Logger.Warn().Err(cause).Str("reason", reason).Msg("closing cache connection")
	c.conn.Close()
	c.conn = nil
}

// check validates a key before it goes on the wire.
func check(key string) error {
	if err := protocol.ValidateKey(key); err != nil {
		return fmt.Errorf("memcache: %w", err)
	}
	return nil
}
