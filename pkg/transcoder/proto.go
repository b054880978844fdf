package transcoder

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Proto serializes protobuf messages, for callers whose cached values are
// already defined as proto schemas.
type Proto struct{}

// Marshal implements Transcoder for proto.Message values.
func (Proto) Marshal(v any) ([]byte, uint32, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, 0, fmt.Errorf("transcoder: %T is not a proto.Message", v)
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, 0, fmt.Errorf("transcoder: proto marshal failed: %w", err)
	}
	return data, FlagProto, nil
}

// Unmarshal implements Transcoder for proto.Message targets.
func (Proto) Unmarshal(data []byte, flags uint32, v any) error {
	if flags != FlagProto {
		return ErrFlagMismatch
	}
	msg, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("transcoder: %T is not a proto.Message", v)
	}
	if err := proto.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("transcoder: proto unmarshal failed: %w", err)
	}
	return nil
}
