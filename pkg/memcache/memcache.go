// Package memcache provides a memcached binary-protocol client. Values move
// through a pluggable transcoder, and the connection's read side delivers
// exactly-sized protocol frames from buffered socket receives.
package memcache

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/SethReber/Enyim.Caching/pkg/transcoder"
)

var (
	// ErrNotConnected is returned once the client's connection is closed
	// or has failed; the caller decides whether to dial a new client.
	ErrNotConnected = errors.New("memcache: not connected to server")

	// ErrCacheMiss is returned when the key is not in the cache.
	ErrCacheMiss = errors.New("memcache: cache miss")
)

// Default option values.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 2 * time.Second
)

// Options configures a Client.
type Options struct {
	// Address of the server, host:port.
	Address string

	// Network selects the transport: "tcp" (default) or "ws".
	Network string

	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration

	// ReadTimeout bounds each wait for a physical receive during a read.
	ReadTimeout time.Duration

	// Transcoder converts typed values to payloads. Defaults to the raw
	// byte/string transcoder.
	Transcoder transcoder.Transcoder

	// Logger receives client logs; the zero value stays silent.
	Logger zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.Network == "" {
		o.Network = "tcp"
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.Transcoder == nil {
		o.Transcoder = transcoder.Raw{}
	}
	return o
}

// Item is one cache entry as seen by the client.
type Item struct {
	Key   string
	Value []byte

	// Flags are stored with the value and returned on Get; transcoders
	// use them to tag the codec.
	Flags uint32

	// CAS is the entry's version. On Set a non-zero CAS makes the store
	// conditional on the entry being unchanged.
	CAS uint64

	// Expiration in seconds; zero means no expiry.
	Expiration uint32
}
