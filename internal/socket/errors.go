package socket

import "errors"

var (
	// ErrInvalidCount is returned when a read is requested for fewer than
	// one byte. The request descriptor is left untouched.
	ErrInvalidCount = errors.New("socket: read count must be at least 1")

	// ErrConnectionClosed is delivered when the peer closes the stream
	// (a receive transfers zero bytes). The connection is marked dead.
	ErrConnectionClosed = errors.New("socket: connection closed by peer")

	// ErrReadTimeout is delivered when no receive completes within the
	// connection's read timeout. The timeout alone does not mark the
	// connection dead; callers decide whether to keep using it.
	ErrReadTimeout = errors.New("socket: receive timed out")
)
