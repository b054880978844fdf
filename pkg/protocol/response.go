package protocol

import (
	"encoding/binary"
	"fmt"
)

// ResponseHeader is the parsed 24-byte response header.
type ResponseHeader struct {
	Op        OpCode
	KeyLen    uint16
	ExtrasLen uint8
	Status    Status
	TotalBody uint32
	Opaque    uint32
	CAS       uint64
}

// ParseResponseHeader parses and validates exactly HeaderLen bytes.
func ParseResponseHeader(p []byte) (ResponseHeader, error) {
	if len(p) != HeaderLen {
		return ResponseHeader{}, fmt.Errorf("protocol: response header is %d bytes, want %d", len(p), HeaderLen)
	}
	if p[0] != MagicResponse {
		return ResponseHeader{}, fmt.Errorf("protocol: bad response magic 0x%02x", p[0])
	}

	h := ResponseHeader{
		Op:        OpCode(p[1]),
		KeyLen:    binary.BigEndian.Uint16(p[2:4]),
		ExtrasLen: p[4],
		Status:    Status(binary.BigEndian.Uint16(p[6:8])),
		TotalBody: binary.BigEndian.Uint32(p[8:12]),
		Opaque:    binary.BigEndian.Uint32(p[12:16]),
		CAS:       binary.BigEndian.Uint64(p[16:24]),
	}
	if int(h.ExtrasLen)+int(h.KeyLen) > int(h.TotalBody) {
		return ResponseHeader{}, fmt.Errorf("protocol: extras(%d)+key(%d) exceed body length %d", h.ExtrasLen, h.KeyLen, h.TotalBody)
	}
	return h, nil
}

// Response is a fully received response frame.
type Response struct {
	ResponseHeader
	Extras []byte
	Key    []byte
	Value  []byte
}

// SplitBody slices a received body of TotalBody bytes into extras, key and
// value according to the header.
func (h ResponseHeader) SplitBody(body []byte) (Response, error) {
	if len(body) != int(h.TotalBody) {
		return Response{}, fmt.Errorf("protocol: body is %d bytes, header says %d", len(body), h.TotalBody)
	}
	ke := int(h.ExtrasLen)
	kk := ke + int(h.KeyLen)
	return Response{
		ResponseHeader: h,
		Extras:         body[:ke],
		Key:            body[ke:kk],
		Value:          body[kk:],
	}, nil
}

// EncodeResponse serializes a response frame; the server side of the wire.
func EncodeResponse(r *Response) []byte {
	bodyLen := len(r.Extras) + len(r.Key) + len(r.Value)
	buf := make([]byte, HeaderLen+bodyLen)

	buf[0] = MagicResponse
	buf[1] = byte(r.Op)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(r.Key)))
	buf[4] = byte(len(r.Extras))
	binary.BigEndian.PutUint16(buf[6:8], uint16(r.Status))
	binary.BigEndian.PutUint32(buf[8:12], uint32(bodyLen))
	binary.BigEndian.PutUint32(buf[12:16], r.Opaque)
	binary.BigEndian.PutUint64(buf[16:24], r.CAS)

	p := buf[HeaderLen:]
	p = p[copy(p, r.Extras):]
	p = p[copy(p, r.Key):]
	copy(p, r.Value)

	return buf
}
