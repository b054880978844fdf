package socket

import (
	"bytes"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// receiveStep scripts one physical receive attempt.
type receiveStep struct {
	data  []byte
	err   error
	async bool
	delay time.Duration // async only: completion delay
	drop  bool          // async only: never complete, force a timeout
}

// scriptedReceiver plays back a fixed sequence of receive outcomes.
type scriptedReceiver struct {
	t     *testing.T
	steps []receiveStep
	calls atomic.Int32
}

func (s *scriptedReceiver) receive(p []byte, complete func(n int, err error)) (bool, int, error) {
	idx := int(s.calls.Add(1)) - 1
	if idx >= len(s.steps) {
		s.t.Errorf("unexpected receive attempt %d, scripted only %d", idx+1, len(s.steps))
		return false, 0, nil
	}
	st := s.steps[idx]
	n := copy(p, st.data)

	if !st.async {
		return true, n, st.err
	}
	if st.drop {
		return false, 0, nil
	}
	go func() {
		if st.delay > 0 {
			time.Sleep(st.delay)
		}
		complete(n, st.err)
	}()
	return false, 0, nil
}

func newTestConn(rcv receiver, timeout time.Duration) *Conn {
	c := &Conn{
		readTimeout: timeout,
		log:         zerolog.Nop(),
	}
	c.alive.Store(true)
	c.rd = newReader(c, rcv)
	return c
}

// repeatBytes builds n bytes of a recognizable rolling pattern.
func repeatBytes(n, seed int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte((seed + i) % 251)
	}
	return out
}

func TestRead_InvalidCount(t *testing.T) {
	tests := []struct {
		name  string
		count int
	}{
		{name: "zero count", count: 0},
		{name: "negative count", count: -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rcv := &scriptedReceiver{t: t} // any receive attempt fails the test
			c := newTestConn(rcv, time.Second)

			req := &Request{Count: tt.count, Callback: func(*Request) {
				t.Error("callback must not be invoked for an invalid count")
			}}
			pending, err := c.Read(req)
			if !errors.Is(err, ErrInvalidCount) {
				t.Errorf("Read() error = %v, want ErrInvalidCount", err)
			}
			if pending {
				t.Error("Read() pending = true, want false")
			}
		})
	}
}

func TestRead_InlineFromBufferedSurplus(t *testing.T) {
	rcv := &scriptedReceiver{t: t} // no physical receive may happen
	c := newTestConn(rcv, time.Second)
	c.rd.buf.Append([]byte("0123456789"))

	req := &Request{Count: 4, Callback: func(*Request) {
		t.Error("callback must not be invoked on the inline path")
	}}
	pending, err := c.Read(req)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if pending {
		t.Fatal("Read() pending = true, want false for buffered data")
	}
	if !bytes.Equal(req.Data, []byte("0123")) {
		t.Errorf("Read() data = %q, want %q", req.Data, "0123")
	}
	if got := c.rd.buf.Available(); got != 6 {
		t.Errorf("surplus after read = %d, want 6", got)
	}
}

func TestRead_SyncReceiveCompletesWithinCall(t *testing.T) {
	payload := repeatBytes(10, 1)
	rcv := &scriptedReceiver{t: t, steps: []receiveStep{{data: payload}}}
	c := newTestConn(rcv, time.Second)

	var delivered *Request
	req := &Request{Count: 10, Callback: func(r *Request) { delivered = r }}

	pending, err := c.Read(req)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if !pending {
		t.Fatal("Read() pending = false, want true: nothing was buffered")
	}
	// The synchronous receive path finishes before Read returns.
	if delivered == nil {
		t.Fatal("callback was not invoked within the Read call")
	}
	if delivered.Failed() {
		t.Fatalf("read failed: %v", delivered.Err)
	}
	if !bytes.Equal(delivered.Data, payload) {
		t.Errorf("data = %v, want %v", delivered.Data, payload)
	}
}

func TestRead_ChunkBoundariesInvisible(t *testing.T) {
	tests := []struct {
		name    string
		sizes   []int
		count   int
		surplus int
	}{
		{name: "single oversized chunk", sizes: []int{40}, count: 25, surplus: 15},
		{name: "many small chunks", sizes: []int{3, 3, 3, 3, 3}, count: 14, surplus: 1},
		{name: "boundary aligned", sizes: []int{8, 8}, count: 16, surplus: 0},
		{name: "one byte at a time", sizes: []int{1, 1, 1}, count: 3, surplus: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := repeatBytes(64, 7)
			var steps []receiveStep
			off := 0
			for _, sz := range tt.sizes {
				steps = append(steps, receiveStep{data: stream[off : off+sz]})
				off += sz
			}
			rcv := &scriptedReceiver{t: t, steps: steps}
			c := newTestConn(rcv, time.Second)

			var delivered *Request
			req := &Request{Count: tt.count, Callback: func(r *Request) { delivered = r }}
			if _, err := c.Read(req); err != nil {
				t.Fatalf("Read() failed: %v", err)
			}
			if delivered == nil {
				t.Fatal("callback was not invoked")
			}
			if !bytes.Equal(delivered.Data, stream[:tt.count]) {
				t.Errorf("data does not match first %d bytes of the stream", tt.count)
			}
			if got := c.rd.buf.Available(); got != tt.surplus {
				t.Errorf("surplus = %d, want %d", got, tt.surplus)
			}
		})
	}
}

func TestRead_AsyncMultiChunkLargeRead(t *testing.T) {
	// A 100000-byte read spans two chunk-sized receives.
	stream := repeatBytes(100000, 13)
	rcv := &scriptedReceiver{t: t, steps: []receiveStep{
		{data: stream[:65536], async: true},
		{data: stream[65536:], async: true},
	}}
	c := newTestConn(rcv, 5*time.Second)

	done := make(chan *Request, 2)
	req := &Request{Count: 100000, Callback: func(r *Request) { done <- r }}
	pending, err := c.Read(req)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if !pending {
		t.Fatal("Read() pending = false, want true")
	}

	select {
	case delivered := <-done:
		if delivered.Failed() {
			t.Fatalf("read failed: %v", delivered.Err)
		}
		if len(delivered.Data) != 100000 {
			t.Fatalf("data length = %d, want 100000", len(delivered.Data))
		}
		if !bytes.Equal(delivered.Data, stream) {
			t.Error("data does not match the received stream")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not invoked")
	}

	select {
	case <-done:
		t.Fatal("callback invoked more than once")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRead_PeerCloseFailsAndMarksDead(t *testing.T) {
	rcv := &scriptedReceiver{t: t, steps: []receiveStep{{data: nil}}} // zero bytes
	c := newTestConn(rcv, time.Second)

	var delivered *Request
	req := &Request{Count: 8, Callback: func(r *Request) { delivered = r }}
	if _, err := c.Read(req); err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if delivered == nil {
		t.Fatal("callback was not invoked")
	}
	if !errors.Is(delivered.Err, ErrConnectionClosed) {
		t.Errorf("Err = %v, want ErrConnectionClosed", delivered.Err)
	}
	if delivered.Data != nil {
		t.Error("failed read must not carry data")
	}
	if c.IsAlive() {
		t.Error("connection should be marked dead after peer close")
	}
}

func TestRead_ReceiveErrorFailsAndMarksDead(t *testing.T) {
	cause := errors.New("connection reset")
	rcv := &scriptedReceiver{t: t, steps: []receiveStep{{err: cause, async: true}}}
	c := newTestConn(rcv, time.Second)

	done := make(chan *Request, 1)
	req := &Request{Count: 8, Callback: func(r *Request) { done <- r }}
	if _, err := c.Read(req); err != nil {
		t.Fatalf("Read() failed: %v", err)
	}

	select {
	case delivered := <-done:
		if !errors.Is(delivered.Err, cause) {
			t.Errorf("Err = %v, want wrapped %v", delivered.Err, cause)
		}
	case <-time.After(time.Second):
		t.Fatal("callback was not invoked")
	}
	if c.IsAlive() {
		t.Error("connection should be marked dead after a receive error")
	}
}

func TestRead_TimeoutLeavesBufferAndAliveness(t *testing.T) {
	rcv := &scriptedReceiver{t: t, steps: []receiveStep{{async: true, drop: true}}}
	c := newTestConn(rcv, 30*time.Millisecond)
	c.rd.buf.Append(repeatBytes(20, 3)) // partial data from an earlier receive

	var deliveries atomic.Int32
	var delivered *Request
	req := &Request{Count: 50, Callback: func(r *Request) {
		deliveries.Add(1)
		delivered = r
	}}

	start := time.Now()
	if _, err := c.Read(req); err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	elapsed := time.Since(start)

	if got := deliveries.Load(); got != 1 {
		t.Fatalf("deliveries = %d, want 1", got)
	}
	if !errors.Is(delivered.Err, ErrReadTimeout) {
		t.Errorf("Err = %v, want ErrReadTimeout", delivered.Err)
	}
	if elapsed < 30*time.Millisecond {
		t.Errorf("read returned after %v, before the timeout", elapsed)
	}
	if !c.IsAlive() {
		t.Error("timeout alone must not mark the connection dead")
	}
	if got := c.rd.buf.Available(); got != 20 {
		t.Errorf("buffered bytes after failure = %d, want 20 (no partial consumption)", got)
	}
}

func TestRead_AbortIsIdempotentUnderRacingCompletions(t *testing.T) {
	// The receive completes with an error well after the timeout already
	// aborted the read: exactly one outcome must reach the descriptor.
	cause := errors.New("late failure")
	rcv := &scriptedReceiver{t: t, steps: []receiveStep{
		{err: cause, async: true, delay: 100 * time.Millisecond},
	}}
	c := newTestConn(rcv, 20*time.Millisecond)

	var deliveries atomic.Int32
	errc := make(chan error, 2)
	req := &Request{Count: 5, Callback: func(r *Request) {
		deliveries.Add(1)
		errc <- r.Err
	}}
	if _, err := c.Read(req); err != nil {
		t.Fatalf("Read() failed: %v", err)
	}

	firstErr := <-errc
	if !errors.Is(firstErr, ErrReadTimeout) {
		t.Errorf("delivered error = %v, want ErrReadTimeout (the timeout won the race)", firstErr)
	}

	// Wait out the late completion and make sure it stayed a no-op.
	time.Sleep(200 * time.Millisecond)
	if got := deliveries.Load(); got != 1 {
		t.Errorf("deliveries = %d, want exactly 1", got)
	}
}

func TestRead_LateDataCompletionIsDiscarded(t *testing.T) {
	// Same race with a successful late completion: no second delivery and
	// no further receive attempts.
	rcv := &scriptedReceiver{t: t, steps: []receiveStep{
		{data: []byte("abcde"), async: true, delay: 100 * time.Millisecond},
	}}
	c := newTestConn(rcv, 20*time.Millisecond)

	var deliveries atomic.Int32
	req := &Request{Count: 5, Callback: func(r *Request) { deliveries.Add(1) }}
	if _, err := c.Read(req); err != nil {
		t.Fatalf("Read() failed: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	if got := deliveries.Load(); got != 1 {
		t.Errorf("deliveries = %d, want exactly 1", got)
	}
	if got := rcv.calls.Load(); got != 1 {
		t.Errorf("receive attempts = %d, want 1: an aborted read must not keep receiving", got)
	}
}

func TestRead_SurplusServesNextReadInline(t *testing.T) {
	rcv := &scriptedReceiver{t: t, steps: []receiveStep{{data: repeatBytes(30, 9)}}}
	c := newTestConn(rcv, time.Second)

	var delivered *Request
	first := &Request{Count: 10, Callback: func(r *Request) { delivered = r }}
	if _, err := c.Read(first); err != nil {
		t.Fatalf("first Read() failed: %v", err)
	}
	if delivered == nil || delivered.Failed() {
		t.Fatalf("first read not delivered cleanly: %+v", delivered)
	}

	second := &Request{Count: 20}
	pending, err := c.Read(second)
	if err != nil {
		t.Fatalf("second Read() failed: %v", err)
	}
	if pending {
		t.Error("second Read() pending = true, want inline satisfaction from surplus")
	}
	if !bytes.Equal(second.Data, repeatBytes(30, 9)[10:]) {
		t.Error("second read data does not continue where the first left off")
	}
}

func TestDiscardBuffer(t *testing.T) {
	rcv := &scriptedReceiver{t: t, steps: []receiveStep{{data: []byte("xyz")}}}
	c := newTestConn(rcv, time.Second)
	c.rd.buf.Append([]byte("stale"))

	c.DiscardBuffer()
	if got := c.rd.buf.Available(); got != 0 {
		t.Fatalf("buffered bytes after DiscardBuffer = %d, want 0", got)
	}

	// The next read goes to the wire instead of the discarded bytes.
	var delivered *Request
	req := &Request{Count: 3, Callback: func(r *Request) { delivered = r }}
	pending, err := c.Read(req)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if !pending {
		t.Fatal("Read() pending = false, want true after discard")
	}
	if delivered == nil || !bytes.Equal(delivered.Data, []byte("xyz")) {
		t.Fatalf("read after discard delivered %+v, want xyz", delivered)
	}
}

func TestRead_DescriptorSlotsResetPerRead(t *testing.T) {
	rcv := &scriptedReceiver{t: t, steps: []receiveStep{{data: nil}}} // peer close
	c := newTestConn(rcv, time.Second)
	c.rd.buf.Append([]byte("ab"))

	req := &Request{Count: 2, Data: []byte("junk"), Err: errors.New("junk")}
	pending, err := c.Read(req)
	if err != nil || pending {
		t.Fatalf("Read() = (%v, %v), want inline success", pending, err)
	}
	if req.Err != nil {
		t.Errorf("stale Err was not reset: %v", req.Err)
	}
	if !bytes.Equal(req.Data, []byte("ab")) {
		t.Errorf("Data = %q, want %q", req.Data, "ab")
	}
}
