// Package buffer provides a growable FIFO byte store used to coalesce
// physical socket receives into buffered data for exact-size logical reads.
package buffer

import (
	"fmt"

	"github.com/gammazero/deque"
)

// Accumulator is a FIFO byte store. Received chunks are appended at the tail
// and consumed from the head in caller-chosen sizes, so chunk boundaries are
// invisible to consumers. It is not safe for concurrent use; the owning
// connection must never call it from two goroutines at once.
type Accumulator struct {
	segments deque.Deque[[]byte]
	offset   int // consumed prefix of the front segment
	avail    int
}

// NewAccumulator creates an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Available returns the number of buffered bytes not yet consumed.
func (a *Accumulator) Available() int {
	return a.avail
}

// Append copies p into the accumulator. The caller may reuse p afterwards.
func (a *Accumulator) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	seg := make([]byte, len(p))
	copy(seg, p)
	a.segments.PushBack(seg)
	a.avail += len(seg)
}

// Consume removes and returns exactly n bytes from the head of the
// accumulator. It fails if fewer than n bytes are available.
func (a *Accumulator) Consume(n int) ([]byte, error) {
	if n < 0 || n > a.avail {
		return nil, fmt.Errorf("buffer: cannot consume %d bytes, %d available", n, a.avail)
	}

	out := make([]byte, n)
	filled := 0
	for filled < n {
		front := a.segments.Front()
		c := copy(out[filled:], front[a.offset:])
		filled += c
		a.offset += c
		if a.offset == len(front) {
			a.segments.PopFront()
			a.offset = 0
		}
	}
	a.avail -= n
	return out, nil
}

// Clear discards all buffered bytes. It performs no synchronization; callers
// must guarantee no read is consuming the accumulator at the same time.
func (a *Accumulator) Clear() {
	a.segments.Clear()
	a.offset = 0
	a.avail = 0
}
