package transcoder

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack serializes arbitrary Go values with MessagePack.
type Msgpack struct{}

// Marshal implements Transcoder.
func (Msgpack) Marshal(v any) ([]byte, uint32, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, 0, fmt.Errorf("transcoder: msgpack marshal failed: %w", err)
	}
	return data, FlagMsgpack, nil
}

// Unmarshal implements Transcoder.
func (Msgpack) Unmarshal(data []byte, flags uint32, v any) error {
	if flags != FlagMsgpack {
		return ErrFlagMismatch
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("transcoder: msgpack unmarshal failed: %w", err)
	}
	return nil
}
