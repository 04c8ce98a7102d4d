// Package translation provides the process-wide translation cache and the
// providers and stores behind it.
package translation

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Provider translates text from src to dst.
type Provider interface {
	Translate(ctx context.Context, src, dst, text string) (string, error)
}

// Store is an optional second-level cache shared across processes.
type Store interface {
	Get(ctx context.Context, key Key) (string, bool, error)
	Set(ctx context.Context, key Key, value string) error
}

// Key identifies a cache entry.
type Key struct {
	Src, Dst, Text string
}

func (k Key) String() string {
	return k.Src + "|" + k.Dst + "|" + k.Text
}

// Cache memoizes provider results for the process lifetime. Entries are
// never evicted. Concurrent lookups of one key share a single provider call.
type Cache struct {
	provider Provider
	store    Store
	log      *slog.Logger

	mu      sync.RWMutex
	entries map[Key]string
	group   singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithStore adds a second-level store consulted on local misses.
func WithStore(s Store) Option {
	return func(c *Cache) { c.store = s }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

func NewCache(p Provider, opts ...Option) *Cache {
	c := &Cache{
		provider: p,
		log:      slog.Default().With("component", "translation"),
		entries:  make(map[Key]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Translate returns the cached translation of text, calling the provider on
// the first lookup. Any failure returns text unchanged and is not cached.
// Whitespace-only text yields "".
func (c *Cache) Translate(ctx context.Context, src, dst, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	key := Key{Src: src, Dst: dst, Text: text}
	if v, ok := c.lookup(key); ok {
		return v
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		if v, ok := c.fromStore(ctx, key); ok {
			c.put(key, v)
			return v, nil
		}
		v, err := c.provider.Translate(ctx, src, dst, text)
		if err != nil {
			return nil, err
		}
		c.put(key, v)
		c.toStore(ctx, key, v)
		return v, nil
	})
	if err != nil {
		c.log.Warn("translation failed, using source text", "src", src, "dst", dst, "error", err)
		return text
	}
	return v.(string)
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) lookup(key Key) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *Cache) put(key Key, v string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		c.entries[key] = v
	}
}

func (c *Cache) fromStore(ctx context.Context, key Key) (string, bool) {
	if c.store == nil {
		return "", false
	}
	v, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Debug("translation store read failed", "error", err)
		return "", false
	}
	return v, ok
}

func (c *Cache) toStore(ctx context.Context, key Key, v string) {
	if c.store == nil {
		return
	}
	if err := c.store.Set(ctx, key, v); err != nil {
		c.log.Debug("translation store write failed", "error", err)
	}
}
