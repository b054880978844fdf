// Package mockserver implements an in-memory memcached binary-protocol
// server. It backs the test suites and the mockd binary; it is not meant to
// be a production cache. One listener serves both raw TCP clients and
// WebSocket clients, telling them apart by the first byte on the wire.
package mockserver

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"

	"github.com/SethReber/Enyim.Caching/pkg/protocol"
)

// version reported by the VERSION command.
const version = "1.6.0-mock"

// Options configures a Server. The fault-injection knobs exist for tests
// that exercise client failure paths.
type Options struct {
	// Address to listen on, e.g. "127.0.0.1:0".
	Address string

	// ResponseDelay is slept before writing each response, to provoke
	// client read timeouts.
	ResponseDelay time.Duration

	// TruncateBody makes the server close the connection after sending a
	// response header that promises a body, to provoke mid-read peer
	// close on the client.
	TruncateBody bool

	// Logger receives server logs; zerolog.Nop() silences them.
	Logger zerolog.Logger
}

// Server is the mock cache server.
type Server struct {
	opts     Options
	log      zerolog.Logger
	store    *store
	listener net.Listener
	quit     chan struct{}
	stop     sync.Once
	wg       sync.WaitGroup

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// New creates a new Server instance.
func New(opts Options) *Server {
	return &Server{
		opts:  opts,
		log:   opts.Logger,
		store: newStore(),
		quit:  make(chan struct{}),
		conns: make(map[net.Conn]struct{}),
	}
}

// Start binds the listener and begins accepting connections.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener
	s.log.Info().Str("addr", listener.Addr().String()).Msg("mock server started")

	s.wg.Add(1)
	go s.acceptConnections()
	return nil
}

// Stop stops the server, closes active sessions, and waits for connection
// handlers to finish. Safe to call more than once.
func (s *Server) Stop() {
	s.stop.Do(func() {
		close(s.quit)
		if s.listener != nil {
			s.listener.Close()
		}
		s.connMu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.connMu.Unlock()
		s.wg.Wait()
		s.log.Info().Msg("mock server stopped")
	})
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// ItemCount returns the number of live stored items.
func (s *Server) ItemCount() int {
	return s.store.len()
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				s.log.Error().Err(err).Msg("failed to accept connection")
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection sniffs the first byte to tell a raw binary-protocol
// client (request magic) from a WebSocket client (HTTP upgrade).
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	s.connMu.Lock()
	s.conns[conn] = struct{}{}
	s.connMu.Unlock()
	defer func() {
		s.connMu.Lock()
		delete(s.conns, conn)
		s.connMu.Unlock()
	}()

	reader := bufio.NewReader(conn)
	prefix, err := reader.Peek(1)
	if err != nil {
		if err != io.EOF {
			s.log.Error().Err(err).Msg("failed to peek connection")
		}
		return
	}

	bc := &bufferedConn{Conn: conn, reader: reader}

	if prefix[0] == protocol.MagicRequest {
		s.serveStream(bc, conn.RemoteAddr())
		return
	}

	// Anything else is treated as an HTTP WebSocket upgrade.
	if _, err := ws.Upgrade(bc); err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.serveStream(&wsStream{rw: bc}, conn.RemoteAddr())
}

// bufferedConn keeps bytes peeked during protocol sniffing readable.
type bufferedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (bc *bufferedConn) Read(p []byte) (int, error) {
	return bc.reader.Read(p)
}

// wsStream re-exposes WebSocket binary frames as a byte stream, buffering
// frame leftovers, so one session loop serves both transports.
type wsStream struct {
	rw       io.ReadWriter
	leftover []byte
}

func (w *wsStream) Read(p []byte) (int, error) {
	if len(w.leftover) > 0 {
		n := copy(p, w.leftover)
		w.leftover = w.leftover[n:]
		return n, nil
	}
	data, err := wsutil.ReadClientBinary(w.rw)
	if err != nil {
		return 0, err
	}
	n := copy(p, data)
	if n < len(data) {
		w.leftover = data[n:]
	}
	return n, nil
}

func (w *wsStream) Write(p []byte) (int, error) {
	if err := wsutil.WriteServerBinary(w.rw, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// serveStream runs one client session: read a request frame, apply it to
// the store, write the response, until the client quits or the stream ends.
func (s *Server) serveStream(rw io.ReadWriter, remote net.Addr) {
	s.log.Debug().Stringer("remote", remote).Msg("client connected")
	defer s.log.Debug().Stringer("remote", remote).Msg("client disconnected")

	header := make([]byte, protocol.HeaderLen)
	for {
		if _, err := io.ReadFull(rw, header); err != nil {
			if err != io.EOF {
				s.log.Debug().Err(err).Msg("failed to read request header")
			}
			return
		}
		h, err := protocol.ParseRequestHeader(header)
		if err != nil {
			s.log.Error().Err(err).Msg("malformed request header")
			return
		}

		body := make([]byte, h.TotalBody)
		if _, err := io.ReadFull(rw, body); err != nil {
			s.log.Debug().Err(err).Msg("failed to read request body")
			return
		}
		req, err := h.SplitBody(body)
		if err != nil {
			s.log.Error().Err(err).Msg("malformed request body")
			return
		}

		resp, quit := s.dispatch(&req)
		resp.Op = req.Op
		resp.Opaque = req.Opaque

		if s.opts.ResponseDelay > 0 {
			time.Sleep(s.opts.ResponseDelay)
		}

		wire := protocol.EncodeResponse(resp)
		if s.opts.TruncateBody && len(wire) > protocol.HeaderLen {
			rw.Write(wire[:protocol.HeaderLen])
			return
		}
		if _, err := rw.Write(wire); err != nil {
			s.log.Debug().Err(err).Msg("failed to write response")
			return
		}
		if quit {
			return
		}
	}
}
