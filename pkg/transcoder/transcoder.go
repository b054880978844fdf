// Package transcoder converts application values to and from the byte
// payloads stored in the cache. The item flags carry which codec produced a
// payload, so a value written with one transcoder is rejected instead of
// silently misdecoded when read back with another.
package transcoder

import (
	"errors"
	"fmt"
)

// Codec flag values stored in an item's flags field.
const (
	FlagRaw     uint32 = 0x0000
	FlagMsgpack uint32 = 0x0101
	FlagProto   uint32 = 0x0102
)

// ErrFlagMismatch is returned when stored flags do not match the decoding
// transcoder.
var ErrFlagMismatch = errors.New("transcoder: stored flags do not match this transcoder")

// Transcoder encodes values into cacheable payloads and back.
type Transcoder interface {
	// Marshal serializes v, returning the payload and the flags to store
	// with it.
	Marshal(v any) (data []byte, flags uint32, err error)

	// Unmarshal deserializes data into v, validating flags.
	Unmarshal(data []byte, flags uint32, v any) error
}

// Raw passes byte slices and strings through untouched.
type Raw struct{}

// Marshal implements Transcoder for []byte and string values.
func (Raw) Marshal(v any) ([]byte, uint32, error) {
	switch val := v.(type) {
	case []byte:
		return val, FlagRaw, nil
	case string:
		return []byte(val), FlagRaw, nil
	default:
		return nil, 0, fmt.Errorf("transcoder: raw transcoder cannot marshal %T", v)
	}
}

// Unmarshal implements Transcoder for *[]byte and *string targets.
func (Raw) Unmarshal(data []byte, flags uint32, v any) error {
	if flags != FlagRaw {
		return ErrFlagMismatch
	}
	switch target := v.(type) {
	case *[]byte:
		*target = data
		return nil
	case *string:
		*target = string(data)
		return nil
	default:
		return fmt.Errorf("transcoder: raw transcoder cannot unmarshal into %T", v)
	}
}
