package memcache

import (
	"encoding/binary"
	"errors"

	"github.com/SethReber/Enyim.Caching/pkg/protocol"
)

func storeExtras(flags, expiry uint32) []byte {
	extras := make([]byte, 8)
	binary.BigEndian.PutUint32(extras[0:4], flags)
	binary.BigEndian.PutUint32(extras[4:8], expiry)
	return extras
}

// Get retrieves the item stored under key. ErrCacheMiss reports an absent
// key.
func (c *Client) Get(key string) (*Item, error) {
	if err := check(key); err != nil {
		return nil, err
	}

	resp, err := c.roundTrip(&protocol.Request{Op: protocol.OpGet, Key: []byte(key)})
	if err != nil {
		return nil, err
	}
	if err := resp.Status.Err(); err != nil {
		if errors.Is(err, protocol.ErrKeyNotFound) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	it := &Item{Key: key, Value: resp.Value, CAS: resp.CAS}
	if len(resp.Extras) >= 4 {
		it.Flags = binary.BigEndian.Uint32(resp.Extras[:4])
	}
	return it, nil
}

// GetValue retrieves the value under key and decodes it into v using the
// client's transcoder.
func (c *Client) GetValue(key string, v any) error {
	it, err := c.Get(key)
	if err != nil {
		return err
	}
	return c.opts.Transcoder.Unmarshal(it.Value, it.Flags, v)
}

// Set stores the item unconditionally, or conditionally when item.CAS is
// non-zero.
func (c *Client) Set(item *Item) error {
	return c.store(protocol.OpSet, item)
}

// Add stores the item only when the key is absent.
func (c *Client) Add(item *Item) error {
	return c.store(protocol.OpAdd, item)
}

// Replace stores the item only when the key is present.
func (c *Client) Replace(item *Item) error {
	return c.store(protocol.OpReplace, item)
}

func (c *Client) store(op protocol.OpCode, item *Item) error {
	if err := check(item.Key); err != nil {
		return err
	}

	resp, err := c.roundTrip(&protocol.Request{
		Op:     op,
		Key:    []byte(item.Key),
		Extras: storeExtras(item.Flags, item.Expiration),
		Value:  item.Value,
		CAS:    item.CAS,
	})
	if err != nil {
		return err
	}
	if err := resp.Status.Err(); err != nil {
		return err
	}
	item.CAS = resp.CAS
	return nil
}

// SetValue encodes v with the client's transcoder and stores it under key.
func (c *Client) SetValue(key string, v any, expiration uint32) error {
	data, flags, err := c.opts.Transcoder.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(&Item{Key: key, Value: data, Flags: flags, Expiration: expiration})
}

// Delete removes the key. ErrCacheMiss reports an absent key.
func (c *Client) Delete(key string) error {
	if err := check(key); err != nil {
		return err
	}

	resp, err := c.roundTrip(&protocol.Request{Op: protocol.OpDelete, Key: []byte(key)})
	if err != nil {
		return err
	}
	if err := resp.Status.Err(); err != nil {
		if errors.Is(err, protocol.ErrKeyNotFound) {
			return ErrCacheMiss
		}
		return err
	}
	return nil
}

// Increment adds delta to the counter under key, seeding it with initial
// when absent.
func (c *Client) Increment(key string, delta, initial uint64, expiration uint32) (uint64, error) {
	return c.counter(protocol.OpIncrement, key, delta, initial, expiration)
}

// Decrement subtracts delta from the counter under key, clamping at zero.
func (c *Client) Decrement(key string, delta, initial uint64, expiration uint32) (uint64, error) {
	return c.counter(protocol.OpDecrement, key, delta, initial, expiration)
}

func (c *Client) counter(op protocol.OpCode, key string, delta, initial uint64, expiration uint32) (uint64, error) {
	if err := check(key); err != nil {
		return 0, err
	}

	extras := make([]byte, 20)
	binary.BigEndian.PutUint64(extras[0:8], delta)
	binary.BigEndian.PutUint64(extras[8:16], initial)
	binary.BigEndian.PutUint32(extras[16:20], expiration)

	resp, err := c.roundTrip(&protocol.Request{Op: op, Key: []byte(key), Extras: extras})
	if err != nil {
		return 0, err
	}
	if err := resp.Status.Err(); err != nil {
		if errors.Is(err, protocol.ErrKeyNotFound) {
			return 0, ErrCacheMiss
		}
		return 0, err
	}
	if len(resp.Value) != 8 {
		return 0, errors.New("memcache: counter response is not 8 bytes")
	}
	return binary.BigEndian.Uint64(resp.Value), nil
}

// Append appends data to the value under key.
func (c *Client) Append(key string, data []byte) error {
	return c.concat(protocol.OpAppend, key, data)
}

// Prepend prepends data to the value under key.
func (c *Client) Prepend(key string, data []byte) error {
	return c.concat(protocol.OpPrepend, key, data)
}

func (c *Client) concat(op protocol.OpCode, key string, data []byte) error {
	if err := check(key); err != nil {
		return err
	}

	resp, err := c.roundTrip(&protocol.Request{Op: op, Key: []byte(key), Value: data})
	if err != nil {
		return err
	}
	return resp.Status.Err()
}

// Touch updates the expiry of the item under key without fetching it.
func (c *Client) Touch(key string, expiration uint32) error {
	if err := check(key); err != nil {
		return err
	}

	extras := make([]byte, 4)
	binary.BigEndian.PutUint32(extras, expiration)

	resp, err := c.roundTrip(&protocol.Request{Op: protocol.OpTouch, Key: []byte(key), Extras: extras})
	if err != nil {
		return err
	}
	if err := resp.Status.Err(); err != nil {
		if errors.Is(err, protocol.ErrKeyNotFound) {
			return ErrCacheMiss
		}
		return err
	}
	return nil
}

// Noop performs a no-op exchange, useful as a connection health check.
func (c *Client) Noop() error {
	resp, err := c.roundTrip(&protocol.Request{Op: protocol.OpNoop})
	if err != nil {
		return err
	}
	return resp.Status.Err()
}

// Version returns the server's version string.
func (c *Client) Version() (string, error) {
	resp, err := c.roundTrip(&protocol.Request{Op: protocol.OpVersion})
	if err != nil {
		return "", err
	}
	if err := resp.Status.Err(); err != nil {
		return "", err
	}
	return string(resp.Value), nil
}

// FlushAll removes every item from the server.
func (c *Client) FlushAll() error {
	resp, err := c.roundTrip(&protocol.Request{Op: protocol.OpFlush})
	if err != nil {
		return err
	}
	return resp.Status.Err()
}

// Quit tells the server the session is over and closes the connection.
func (c *Client) Quit() error {
	if _, err := c.roundTrip(&protocol.Request{Op: protocol.OpQuit}); err != nil {
		return c.Close()
	}
	return c.Close()
}
