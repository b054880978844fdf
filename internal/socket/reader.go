package socket

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/SethReber/Enyim.Caching/internal/buffer"
)

// chunkSize is the capacity of the scratch buffer one physical receive is
// issued into. Logical reads larger than this are satisfied across several
// receives; smaller reads are satisfied from whatever the chunks buffered.
const chunkSize = 64 * 1024

// receiver issues one physical receive into p. When it completes the attempt
// immediately it returns done=true with the outcome; otherwise it returns
// done=false and invokes complete(n, err) later, on an arbitrary goroutine.
type receiver interface {
	receive(p []byte, complete func(n int, err error)) (done bool, n int, err error)
}

// reader drives one logical read at a time over a connection: it satisfies
// requests from the accumulator when possible and otherwise loops physical
// receives until enough bytes arrive, delivering the outcome exactly once.
//
// A pending read can be finished by two racing paths: the receive completion
// and the timeout in the issuing goroutine. The inFlight flag is the only
// arbiter between them; whichever side wins its CompareAndSwap delivers the
// outcome and the loser becomes a no-op.
type reader struct {
	conn *Conn
	rcv  receiver
	buf  *buffer.Accumulator

	// chunk is reused across physical receives. After an aborted read a
	// straggling receive may still land here, which is why a connection
	// that failed a read must not be read from again.
	chunk []byte

	// signal is the wait primitive between the receive loop and the
	// completion callback: drained before each attempt, fired as the
	// first act of processing a completion.
	signal chan struct{}

	remaining int
	inFlight  atomic.Bool
	req       *Request
}

func newReader(conn *Conn, rcv receiver) *reader {
	return &reader{
		conn:   conn,
		rcv:    rcv,
		buf:    buffer.NewAccumulator(),
		chunk:  make([]byte, chunkSize),
		signal: make(chan struct{}, 1),
	}
}

// read is the single entry point. It returns pending=false when the request
// was satisfied inline from buffered bytes (no callback will fire), and
// pending=true when I/O was started and the callback will deliver the
// outcome exactly once.
func (r *reader) read(req *Request) (pending bool, err error) {
	if req == nil || req.Count < 1 {
		return false, ErrInvalidCount
	}
	req.Data, req.Err = nil, nil

	avail := r.buf.Available()
	if avail >= req.Count {
		data, err := r.buf.Consume(req.Count)
		if err != nil {
			return false, err
		}
		req.Data = data
		return false, nil
	}

	r.req = req
	r.remaining = req.Count - avail
	r.inFlight.Store(true)
	r.receiveLoop()
	return true, nil
}

// receiveLoop issues physical receives until the request is satisfied,
// aborted, or handed off to an asynchronous completion. It runs first on the
// goroutine that called read and, for each asynchronous completion that
// still needs data, again on the completion goroutine; the loop shape keeps
// the stack flat no matter how many chunks a large read spans.
func (r *reader) receiveLoop() {
	for r.remaining > 0 {
		if !r.inFlight.Load() {
			// A straggling completion from an already-aborted read.
			return
		}
		r.arm()

		done, n, err := r.rcv.receive(r.chunk, r.onComplete)
		if !done {
			timer := time.NewTimer(r.conn.readTimeout)
			select {
			case <-r.signal:
				// The completion callback has already processed the
				// attempt on its own goroutine; it owns the loop now.
				timer.Stop()
			case <-timer.C:
				r.abort(false, ErrReadTimeout)
			}
			return
		}

		if !r.endReceive(n, err) {
			return
		}
	}
}

// onComplete is invoked by the receiver when an asynchronous attempt
// finishes. Runs on whatever goroutine the receiver schedules it on.
func (r *reader) onComplete(n int, err error) {
	if r.endReceive(n, err) {
		r.receiveLoop()
	}
}

// endReceive processes one completed physical attempt. It reports whether
// the loop should issue another receive.
func (r *reader) endReceive(n int, err error) bool {
	// Unblock a concurrently waiting timeout before anything else, so it
	// observes this completion instead of racing in a late timeout.
	r.fire()

	if err != nil {
		r.abort(true, fmt.Errorf("socket: receive failed: %w", err))
		return false
	}
	if n == 0 {
		r.abort(true, ErrConnectionClosed)
		return false
	}

	r.remaining -= n
	r.buf.Append(r.chunk[:n])

	if r.remaining <= 0 {
		r.publish()
		return false
	}
	return true
}

// abort delivers a failure for the current read, at most once. When the flag
// was already claimed by another path this is a no-op, which is what makes a
// timeout and a late I/O error for the same read surface as a single
// failure. Buffered bytes are left untouched.
func (r *reader) abort(markDead bool, cause error) {
	if markDead {
		r.conn.MarkDead()
	}
	if !r.inFlight.CompareAndSwap(true, false) {
		return
	}

	req := r.req
	r.req = nil
	req.Data = nil
	req.Err = cause

	r.conn.log.Debug().Err(cause).Bool("connection_dead", markDead).Msg("read aborted")

	if req.Callback != nil {
		req.Callback(req)
	}
}

// publish delivers success for the current read, at most once. Surplus bytes
// beyond the requested count stay in the accumulator for the next read.
func (r *reader) publish() {
	if !r.inFlight.CompareAndSwap(true, false) {
		return
	}

	req := r.req
	r.req = nil

	data, err := r.buf.Consume(req.Count)
	if err != nil {
		// Cannot happen: publish only runs once remaining reached zero.
		req.Err = err
	} else {
		req.Data = data
	}

	if req.Callback != nil {
		req.Callback(req)
	}
}

// arm resets the wait primitive to "not signaled" before a receive attempt.
func (r *reader) arm() {
	select {
	case <-r.signal:
	default:
	}
}

// fire signals the wait primitive without blocking.
func (r *reader) fire() {
	select {
	case r.signal <- struct{}{}:
	default:
	}
}
