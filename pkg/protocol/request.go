package protocol

import (
	"encoding/binary"
	"fmt"
)

// Request represents one binary-protocol request frame.
type Request struct {
	Op     OpCode
	Key    []byte
	Extras []byte
	Value  []byte
	Opaque uint32
	CAS    uint64
}

// Encode serializes the request into a single wire-ready buffer:
// a 24-byte header followed by extras, key and value.
func (r *Request) Encode() []byte {
	bodyLen := len(r.Extras) + len(r.Key) + len(r.Value)
	buf := make([]byte, HeaderLen+bodyLen)

	buf[0] = MagicRequest
	buf[1] = byte(r.Op)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(r.Key)))
	buf[4] = byte(len(r.Extras))
	// buf[5] data type, buf[6:8] vbucket id: always zero
	binary.BigEndian.PutUint32(buf[8:12], uint32(bodyLen))
	binary.BigEndian.PutUint32(buf[12:16], r.Opaque)
	binary.BigEndian.PutUint64(buf[16:24], r.CAS)

	p := buf[HeaderLen:]
	p = p[copy(p, r.Extras):]
	p = p[copy(p, r.Key):]
	copy(p, r.Value)

	return buf
}

// RequestHeader is the parsed 24-byte request header; the server side of
// the wire.
type RequestHeader struct {
	Op        OpCode
	KeyLen    uint16
	ExtrasLen uint8
	TotalBody uint32
	Opaque    uint32
	CAS       uint64
}

// ParseRequestHeader parses and validates exactly HeaderLen bytes.
func ParseRequestHeader(p []byte) (RequestHeader, error) {
	if len(p) != HeaderLen {
		return RequestHeader{}, fmt.Errorf("protocol: request header is %d bytes, want %d", len(p), HeaderLen)
	}
	if p[0] != MagicRequest {
		return RequestHeader{}, fmt.Errorf("protocol: bad request magic 0x%02x", p[0])
	}

	h := RequestHeader{
		Op:        OpCode(p[1]),
		KeyLen:    binary.BigEndian.Uint16(p[2:4]),
		ExtrasLen: p[4],
		TotalBody: binary.BigEndian.Uint32(p[8:12]),
		Opaque:    binary.BigEndian.Uint32(p[12:16]),
		CAS:       binary.BigEndian.Uint64(p[16:24]),
	}
	if int(h.ExtrasLen)+int(h.KeyLen) > int(h.TotalBody) {
		return RequestHeader{}, fmt.Errorf("protocol: extras(%d)+key(%d) exceed body length %d", h.ExtrasLen, h.KeyLen, h.TotalBody)
	}
	return h, nil
}

// SplitBody slices a received body of TotalBody bytes into a full Request
// according to the header.
func (h RequestHeader) SplitBody(body []byte) (Request, error) {
	if len(body) != int(h.TotalBody) {
		return Request{}, fmt.Errorf("protocol: body is %d bytes, header says %d", len(body), h.TotalBody)
	}
	ke := int(h.ExtrasLen)
	kk := ke + int(h.KeyLen)
	return Request{
		Op:     h.Op,
		Extras: body[:ke],
		Key:    body[ke:kk],
		Value:  body[kk:],
		Opaque: h.Opaque,
		CAS:    h.CAS,
	}, nil
}
