package socket

// Request describes one logical read: a demand for exactly Count bytes from
// the connection. The caller creates a fresh Request per read and must not
// reuse it until the read has been delivered.
//
// Exactly one outcome is ever delivered per Request: either Data holds Count
// bytes and Err is nil, or Data is nil and Err reports why the read failed.
type Request struct {
	// Count is the number of bytes to read. Must be at least 1.
	Count int

	// Callback is invoked exactly once when a pending read completes,
	// successfully or not. It is not invoked when Read satisfies the
	// request inline from buffered data. It may run on a different
	// goroutine than the one that called Read.
	Callback func(*Request)

	// Data holds the result on success, exactly Count bytes.
	Data []byte

	// Err reports the failure, nil on success.
	Err error
}

// Failed reports whether the read was delivered as a failure.
func (r *Request) Failed() bool {
	return r.Err != nil
}
