package mockserver

import (
	"encoding/binary"

	"github.com/SethReber/Enyim.Caching/pkg/protocol"
)

// dispatch applies one request to the store and builds the response frame.
// The second result reports whether the session should end after replying.
func (s *Server) dispatch(req *protocol.Request) (*protocol.Response, bool) {
	key := string(req.Key)

	switch req.Op {
	case protocol.OpGet:
		it, ok := s.store.get(key)
		if !ok {
			return status(protocol.StatusKeyNotFound), false
		}
		extras := make([]byte, 4)
		binary.BigEndian.PutUint32(extras, it.flags)
		return &protocol.Response{
			ResponseHeader: protocol.ResponseHeader{CAS: it.cas},
			Extras:         extras,
			Value:          it.value,
		}, false

	case protocol.OpSet:
		flags, expiry, ok := storeExtras(req.Extras)
		if !ok {
			return status(protocol.StatusInvalidArgs), false
		}
		cas, stored := s.store.set(key, req.Value, flags, expiry, req.CAS)
		if !stored {
			return status(protocol.StatusKeyExists), false
		}
		return &protocol.Response{ResponseHeader: protocol.ResponseHeader{CAS: cas}}, false

	case protocol.OpAdd:
		flags, expiry, ok := storeExtras(req.Extras)
		if !ok {
			return status(protocol.StatusInvalidArgs), false
		}
		cas, stored := s.store.add(key, req.Value, flags, expiry)
		if !stored {
			return status(protocol.StatusKeyExists), false
		}
		return &protocol.Response{ResponseHeader: protocol.ResponseHeader{CAS: cas}}, false

	case protocol.OpReplace:
		flags, expiry, ok := storeExtras(req.Extras)
		if !ok {
			return status(protocol.StatusInvalidArgs), false
		}
		cas, stored := s.store.replace(key, req.Value, flags, expiry)
		if !stored {
			return status(protocol.StatusKeyNotFound), false
		}
		return &protocol.Response{ResponseHeader: protocol.ResponseHeader{CAS: cas}}, false

	case protocol.OpDelete:
		if !s.store.delete(key) {
			return status(protocol.StatusKeyNotFound), false
		}
		return status(protocol.StatusNoError), false

	case protocol.OpIncrement, protocol.OpDecrement:
		if len(req.Extras) != 20 {
			return status(protocol.StatusInvalidArgs), false
		}
		delta := binary.BigEndian.Uint64(req.Extras[0:8])
		initial := binary.BigEndian.Uint64(req.Extras[8:16])
		expiry := binary.BigEndian.Uint32(req.Extras[16:20])

		value, cas, res := s.store.counter(key, delta, initial, expiry, req.Op == protocol.OpDecrement)
		switch res {
		case counterMiss:
			return status(protocol.StatusKeyNotFound), false
		case counterNotNumber:
			return status(protocol.StatusBadDelta), false
		}
		out := make([]byte, 8)
		binary.BigEndian.PutUint64(out, value)
		return &protocol.Response{
			ResponseHeader: protocol.ResponseHeader{CAS: cas},
			Value:          out,
		}, false

	case protocol.OpAppend, protocol.OpPrepend:
		cas, stored := s.store.concat(key, req.Value, req.Op == protocol.OpPrepend)
		if !stored {
			return status(protocol.StatusNotStored), false
		}
		return &protocol.Response{ResponseHeader: protocol.ResponseHeader{CAS: cas}}, false

	case protocol.OpTouch:
		if len(req.Extras) != 4 {
			return status(protocol.StatusInvalidArgs), false
		}
		expiry := binary.BigEndian.Uint32(req.Extras)
		if !s.store.touch(key, expiry) {
			return status(protocol.StatusKeyNotFound), false
		}
		return status(protocol.StatusNoError), false

	case protocol.OpFlush:
		s.store.flushAll()
		return status(protocol.StatusNoError), false

	case protocol.OpNoop:
		return status(protocol.StatusNoError), false

	case protocol.OpVersion:
		return &protocol.Response{Value: []byte(version)}, false

	case protocol.OpQuit:
		return status(protocol.StatusNoError), true

	default:
		return status(protocol.StatusUnknownCommand), false
	}
}

func status(st protocol.Status) *protocol.Response {
	return &protocol.Response{ResponseHeader: protocol.ResponseHeader{Status: st}}
}

// storeExtras decodes the 8-byte flags+expiry extras of set/add/replace.
func storeExtras(extras []byte) (flags, expiry uint32, ok bool) {
	if len(extras) != 8 {
		return 0, 0, false
	}
	return binary.BigEndian.Uint32(extras[0:4]), binary.BigEndian.Uint32(extras[4:8]), true
}
