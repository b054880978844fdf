package mockserver

import (
	"strconv"
	"sync"
	"time"
)

// item is one stored cache entry.
type item struct {
	value     []byte
	flags     uint32
	cas       uint64
	expiresAt time.Time // zero means no expiry
}

// store is the in-memory item table behind the mock server. Expired items
// are dropped lazily on access.
type store struct {
	mu     sync.Mutex
	items  map[string]*item
	casGen uint64
}

func newStore() *store {
	return &store{items: make(map[string]*item)}
}

func expiryTime(seconds uint32) time.Time {
	if seconds == 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(seconds) * time.Second)
}

// lookup returns the live item for key, reaping it if expired. Caller holds mu.
func (s *store) lookup(key string) *item {
	it, ok := s.items[key]
	if !ok {
		return nil
	}
	if !it.expiresAt.IsZero() && time.Now().After(it.expiresAt) {
		delete(s.items, key)
		return nil
	}
	return it
}

func (s *store) nextCAS() uint64 {
	s.casGen++
	return s.casGen
}

func (s *store) get(key string) (*item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.lookup(key)
	if it == nil {
		return nil, false
	}
	cp := *it
	cp.value = append([]byte(nil), it.value...)
	return &cp, true
}

// set stores key unconditionally unless cas is non-zero and does not match.
// It reports the new cas and whether a cas conflict occurred.
func (s *store) set(key string, value []byte, flags, expiry uint32, cas uint64) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.lookup(key)
	if cas != 0 && (existing == nil || existing.cas != cas) {
		return 0, false
	}
	newCAS := s.nextCAS()
	s.items[key] = &item{
		value:     append([]byte(nil), value...),
		flags:     flags,
		cas:       newCAS,
		expiresAt: expiryTime(expiry),
	}
	return newCAS, true
}

// add stores key only when absent.
func (s *store) add(key string, value []byte, flags, expiry uint32) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookup(key) != nil {
		return 0, false
	}
	newCAS := s.nextCAS()
	s.items[key] = &item{
		value:     append([]byte(nil), value...),
		flags:     flags,
		cas:       newCAS,
		expiresAt: expiryTime(expiry),
	}
	return newCAS, true
}

// replace stores key only when present.
func (s *store) replace(key string, value []byte, flags, expiry uint32) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookup(key) == nil {
		return 0, false
	}
	newCAS := s.nextCAS()
	s.items[key] = &item{
		value:     append([]byte(nil), value...),
		flags:     flags,
		cas:       newCAS,
		expiresAt: expiryTime(expiry),
	}
	return newCAS, true
}

func (s *store) delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookup(key) == nil {
		return false
	}
	delete(s.items, key)
	return true
}

// concat appends or prepends data to an existing value.
func (s *store) concat(key string, data []byte, prepend bool) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.lookup(key)
	if it == nil {
		return 0, false
	}
	if prepend {
		it.value = append(append([]byte(nil), data...), it.value...)
	} else {
		it.value = append(it.value, data...)
	}
	it.cas = s.nextCAS()
	return it.cas, true
}

// counterResult distinguishes the failure modes of incr/decr.
type counterResult int

const (
	counterOK counterResult = iota
	counterMiss
	counterNotNumber
)

// counter applies an increment or decrement. Counters are stored as ASCII
// decimal, the protocol's convention. A missing key is seeded with initial
// unless expiry is 0xffffffff, which turns the miss into a failure.
func (s *store) counter(key string, delta, initial uint64, expiry uint32, decrement bool) (uint64, uint64, counterResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.lookup(key)
	if it == nil {
		if expiry == 0xffffffff {
			return 0, 0, counterMiss
		}
		newCAS := s.nextCAS()
		s.items[key] = &item{
			value:     []byte(strconv.FormatUint(initial, 10)),
			cas:       newCAS,
			expiresAt: expiryTime(expiry),
		}
		return initial, newCAS, counterOK
	}

	current, err := strconv.ParseUint(string(it.value), 10, 64)
	if err != nil {
		return 0, 0, counterNotNumber
	}
	if decrement {
		if delta > current {
			current = 0 // decrement clamps at zero
		} else {
			current -= delta
		}
	} else {
		current += delta
	}
	it.value = []byte(strconv.FormatUint(current, 10))
	it.cas = s.nextCAS()
	return current, it.cas, counterOK
}

// touch updates an item's expiry.
func (s *store) touch(key string, expiry uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.lookup(key)
	if it == nil {
		return false
	}
	it.expiresAt = expiryTime(expiry)
	return true
}

func (s *store) flushAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*item)
}

func (s *store) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
