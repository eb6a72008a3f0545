// Package ristretto implements the cache port with an in-process ristretto
// cache. Values are zstd-compressed; consultation results are JSON-heavy
// and shrink well.
package ristretto

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/klauspost/compress/zstd"
)

// Cache wraps a ristretto cache as the in-process result cache.
type Cache struct {
	c   *ristretto.Cache[string, []byte]
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// New creates a ristretto-backed cache. maxCostBytes is the maximum total
// size of cached values in bytes, counted after compression.
func New(maxCostBytes int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 100 * 10, // ~10x expected items
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		c.Close()
		_ = enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &Cache{c: c, enc: enc, dec: dec}, nil
}

// Get retrieves and decompresses a value from the cache.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	plain, err := c.dec.DecodeAll(val, nil)
	if err != nil {
		c.c.Del(key)
		return nil, false, fmt.Errorf("decompress cached value: %w", err)
	}
	return plain, true, nil
}

// Set compresses and stores a value in the cache with the given TTL.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	compressed := c.enc.EncodeAll(value, make([]byte, 0, len(value)/2))
	c.c.SetWithTTL(key, compressed, int64(len(compressed)), ttl)
	return nil
}

// Delete removes a value from the cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Wait blocks until buffered writes have been applied. Mainly for tests;
// ristretto applies sets asynchronously.
func (c *Cache) Wait() {
	c.c.Wait()
}

// Close shuts down the cache and releases resources.
func (c *Cache) Close() {
	c.c.Close()
	_ = c.enc.Close()
	c.dec.Close()
}
