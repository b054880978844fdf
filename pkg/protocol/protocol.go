// Package protocol implements the memcached binary protocol framing: request
// encoding and response header parsing. It deals only in bytes; moving them
// over a connection is the caller's concern.
package protocol

import (
	"errors"
	"fmt"
)

// HeaderLen is the fixed size of both request and response headers.
const HeaderLen = 24

// Wire magic bytes.
const (
	MagicRequest  = 0x80
	MagicResponse = 0x81
)

// MaxKeyLen is the longest key the protocol accepts.
const MaxKeyLen = 250

// OpCode identifies a protocol command.
type OpCode byte

// Protocol commands.
const (
	OpGet       OpCode = 0x00
	OpSet       OpCode = 0x01
	OpAdd       OpCode = 0x02
	OpReplace   OpCode = 0x03
	OpDelete    OpCode = 0x04
	OpIncrement OpCode = 0x05
	OpDecrement OpCode = 0x06
	OpQuit      OpCode = 0x07
	OpFlush     OpCode = 0x08
	OpNoop      OpCode = 0x0a
	OpVersion   OpCode = 0x0b
	OpAppend    OpCode = 0x0e
	OpPrepend   OpCode = 0x0f
	OpTouch     OpCode = 0x1c
)

// String returns the string representation of OpCode.
func (op OpCode) String() string {
	switch op {
	case OpGet:
		return "GET"
	case OpSet:
		return "SET"
	case OpAdd:
		return "ADD"
	case OpReplace:
		return "REPLACE"
	case OpDelete:
		return "DELETE"
	case OpIncrement:
		return "INCREMENT"
	case OpDecrement:
		return "DECREMENT"
	case OpQuit:
		return "QUIT"
	case OpFlush:
		return "FLUSH"
	case OpNoop:
		return "NOOP"
	case OpVersion:
		return "VERSION"
	case OpAppend:
		return "APPEND"
	case OpPrepend:
		return "PREPEND"
	case OpTouch:
		return "TOUCH"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", byte(op))
	}
}

// Status is a response status code.
type Status uint16

// Response status codes.
const (
	StatusNoError        Status = 0x0000
	StatusKeyNotFound    Status = 0x0001
	StatusKeyExists      Status = 0x0002
	StatusValueTooLarge  Status = 0x0003
	StatusInvalidArgs    Status = 0x0004
	StatusNotStored      Status = 0x0005
	StatusBadDelta       Status = 0x0006
	StatusUnknownCommand Status = 0x0081
	StatusOutOfMemory    Status = 0x0082
)

// Err returns the error corresponding to a non-success status, nil for
// StatusNoError.
func (s Status) Err() error {
	switch s {
	case StatusNoError:
		return nil
	case StatusKeyNotFound:
		return ErrKeyNotFound
	case StatusKeyExists:
		return ErrKeyExists
	case StatusValueTooLarge:
		return ErrValueTooLarge
	case StatusInvalidArgs:
		return ErrInvalidArgs
	case StatusNotStored:
		return ErrNotStored
	case StatusBadDelta:
		return ErrBadDelta
	default:
		return fmt.Errorf("protocol: server returned status 0x%04x", uint16(s))
	}
}

// Errors corresponding to well-known response statuses.
var (
	ErrKeyNotFound   = errors.New("protocol: key not found")
	ErrKeyExists     = errors.New("protocol: key exists")
	ErrValueTooLarge = errors.New("protocol: value too large")
	ErrInvalidArgs   = errors.New("protocol: invalid arguments")
	ErrNotStored     = errors.New("protocol: item not stored")
	ErrBadDelta      = errors.New("protocol: non-numeric value for delta operation")
)

// ValidateKey checks that key is usable on the wire: 1 to 250 bytes, no
// whitespace or control characters.
func ValidateKey(key string) error {
	if len(key) == 0 {
		return errors.New("protocol: key is empty")
	}
	if len(key) > MaxKeyLen {
		return fmt.Errorf("protocol: key longer than %d bytes", MaxKeyLen)
	}
	for i := 0; i < len(key); i++ {
		if key[i] <= ' ' || key[i] == 0x7f {
			return fmt.Errorf("protocol: key contains invalid byte 0x%02x at position %d", key[i], i)
		}
	}
	return nil
}
