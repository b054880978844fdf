package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// WebSocketConn wraps net.Conn for WebSocket connections using gobwas/ws.
// The protocol is carried in binary frames; Read re-exposes frame payloads as
// a plain byte stream, buffering any leftover when a frame is larger than the
// caller's buffer.
type WebSocketConn struct {
	conn          net.Conn
	src           io.ReadWriter
	readBuffer    []byte
	readBufferPos int
	mu            sync.Mutex
}

// DialWebSocket connects and upgrades a WebSocket connection to address.
func DialWebSocket(address string, timeout time.Duration) (*WebSocketConn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	dialer := ws.Dialer{Timeout: timeout}
	conn, br, _, err := dialer.Dial(ctx, wsURL(address))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return newWebSocketConn(conn, br), nil
}

// NewWebSocketConn wraps an already-upgraded client-side WebSocket connection.
func NewWebSocketConn(conn net.Conn) *WebSocketConn {
	return newWebSocketConn(conn, nil)
}

func newWebSocketConn(conn net.Conn, br *bufio.Reader) *WebSocketConn {
	wc := &WebSocketConn{conn: conn}
	if br != nil && br.Buffered() > 0 {
		// ws.Dial may hand back bytes already read past the handshake.
		wc.src = struct {
			io.Reader
			io.Writer
		}{io.MultiReader(br, conn), conn}
	} else {
		wc.src = conn
	}
	return wc
}

func (wc *WebSocketConn) Read(buf []byte) (int, error) {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	if wc.readBufferPos < len(wc.readBuffer) {
		n := copy(buf, wc.readBuffer[wc.readBufferPos:])
		wc.readBufferPos += n
		if wc.readBufferPos >= len(wc.readBuffer) {
			wc.readBuffer = nil
			wc.readBufferPos = 0
		}
		return n, nil
	}

	data, err := wsutil.ReadServerBinary(wc.src)
	if err != nil {
		return 0, err
	}

	n := copy(buf, data)
	if n < len(data) {
		wc.readBuffer = data[n:]
		wc.readBufferPos = 0
	}

	return n, nil
}

func (wc *WebSocketConn) Write(data []byte) (int, error) {
	err := wsutil.WriteClientBinary(wc.src, data)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

func (wc *WebSocketConn) Close() error {
	_ = wsutil.WriteClientMessage(wc.src, ws.OpClose, nil)
	return wc.conn.Close()
}

func (wc *WebSocketConn) RemoteAddr() net.Addr {
	return wc.conn.RemoteAddr()
}
