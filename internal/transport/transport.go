// Package transport provides stream connections to a cache server. Raw TCP
// and WebSocket transports expose the same byte-stream interface, so the
// layers above never know which one carries the protocol.
package transport

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Conn represents a byte-stream connection to the server.
type Conn interface {
	// Read receives data from the server
	Read(buf []byte) (int, error)

	// Write sends data to the server
	Write(data []byte) (int, error)

	// Close closes the connection
	Close() error

	// RemoteAddr returns the server address
	RemoteAddr() net.Addr
}

// Dial establishes a connection to address using the given network, either
// "tcp" or "ws".
func Dial(network, address string, timeout time.Duration) (Conn, error) {
	switch network {
	case "tcp":
		conn, err := net.DialTimeout("tcp", address, timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to server: %w", err)
		}
		return NewTCPConn(conn), nil
	case "ws":
		return DialWebSocket(address, timeout)
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}
}

// TCPConn wraps net.Conn for raw TCP connections.
type TCPConn struct {
	conn net.Conn
}

// NewTCPConn creates a new TCP connection wrapper.
func NewTCPConn(conn net.Conn) *TCPConn {
	return &TCPConn{conn: conn}
}

func (tc *TCPConn) Read(buf []byte) (int, error) {
	return tc.conn.Read(buf)
}

func (tc *TCPConn) Write(data []byte) (int, error) {
	return tc.conn.Write(data)
}

func (tc *TCPConn) Close() error {
	return tc.conn.Close()
}

func (tc *TCPConn) RemoteAddr() net.Addr {
	return tc.conn.RemoteAddr()
}

// wsURL normalizes a host:port or ws:// address into a WebSocket URL.
func wsURL(address string) string {
	if strings.HasPrefix(address, "ws://") || strings.HasPrefix(address, "wss://") {
		return address
	}
	return "ws://" + address + "/"
}
