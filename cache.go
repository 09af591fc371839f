package slide

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

//------------------------//
// Tile cache             //
//------------------------//

// tileCache is a bounded store of decoded tiles keyed by (level, row, col).
// It is purely a performance layer: a cached buffer is byte-identical to a
// fresh decode of the same descriptor. Concurrent misses on one key run
// exactly one decode; distinct keys decode in parallel.
type tileCache struct {
	entries *lru.Cache
	flight  singleflight.Group

	mu       sync.Mutex
	bytes    int64
	maxBytes int64 // 0 means unbounded by size, tile count still applies.
}

func newTileCache(capacity int, maxBytes int64) (*tileCache, error) {
	c := &tileCache{maxBytes: maxBytes}
	entries, err := lru.NewWithEvict(capacity, func(_, value interface{}) {
		c.mu.Lock()
		c.bytes -= int64(len(value.([]byte)))
		c.mu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

// getOrDecode returns the decoded pixels of t, from the cache on a hit and
// through decode on a miss. decode runs at most once per key at a time.
func (c *tileCache) getOrDecode(key tileKey, decode func() ([]byte, error)) ([]byte, error) {
	if v, ok := c.entries.Get(key); ok {
		return v.([]byte), nil
	}

	v, err, _ := c.flight.Do(flightKey(key), func() (interface{}, error) {
		// A racing caller may have populated the entry between the cache
		// probe and the flight.
		if v, ok := c.entries.Get(key); ok {
			return v, nil
		}
		buf, err := decode()
		if err != nil {
			return nil, err
		}
		c.add(key, buf)
		return buf, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *tileCache) add(key tileKey, buf []byte) {
	c.mu.Lock()
	c.bytes += int64(len(buf))
	c.mu.Unlock()
	c.entries.Add(key, buf)

	if c.maxBytes <= 0 {
		return
	}
	for {
		c.mu.Lock()
		over := c.bytes > c.maxBytes && c.entries.Len() > 1
		c.mu.Unlock()
		if !over {
			return
		}
		if _, _, ok := c.entries.RemoveOldest(); !ok {
			return
		}
	}
}

// purge drops every entry. Called on handle close.
func (c *tileCache) purge() {
	c.entries.Purge()
}

func flightKey(key tileKey) string {
	return fmt.Sprintf("%d/%d/%d", key.level, key.row, key.col)
}
