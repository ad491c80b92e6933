// Package memory provides the in-process cache tier. Entries live for the
// duration of one scan run and are shared by every worker in that run.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// Cache is a TTL map safe for concurrent use. Concurrent loads of the same
// missing key are collapsed into one call.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group

	loadTimeout time.Duration
}

// DefaultLoadTimeout bounds a shared load when none is configured.
const DefaultLoadTimeout = 30 * time.Second

// New creates a Cache whose entries expire after ttl.
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		now:     time.Now,

		loadTimeout: DefaultLoadTimeout,
	}
}

// WithLoadTimeout bounds each shared load. Non-positive values keep the
// default.
func (c *Cache[V]) WithLoadTimeout(d time.Duration) *Cache[V] {
	if d > 0 {
		c.loadTimeout = d
	}
	return c
}

// WithClock replaces the time source. Tests only.
func (c *Cache[V]) WithClock(now func() time.Time) *Cache[V] {
	c.now = now
	return c
}

// Get returns the value for key if present and unexpired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the cache TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expires: c.now().Add(c.ttl)}
}

// GetOrLoad returns the cached value for key or calls load once, caching a
// successful result. hit reports whether the value came from the cache.
// Errors are never cached.
//
// The shared load runs detached from every caller, bounded by the cache's
// load timeout, so one caller's cancellation never fails the others. Each
// caller stops waiting when its own ctx is done.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (v V, hit bool, err error) {
	var zero V
	for attempt := 0; ; attempt++ {
		if v, ok := c.Get(key); ok {
			return v, true, nil
		}

		ch := c.group.DoChan(key, func() (any, error) {
			if v, ok := c.Get(key); ok {
				return v, nil
			}
			loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
			defer cancel()
			v, err := load(loadCtx)
			if err != nil {
				return v, err
			}
			c.Set(key, v)
			return v, nil
		})

		select {
		case <-ctx.Done():
			return zero, false, ctx.Err()
		case res := <-ch:
			if res.Err == nil {
				return res.Val.(V), false, nil
			}
			// A flight cut short by its own context is retried once for a
			// caller that still has time.
			if attempt == 0 && ctx.Err() == nil && isContextErr(res.Err) {
				continue
			}
			return zero, false, res.Err
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cleanup removes expired entries.
func (c *Cache[V]) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
}
