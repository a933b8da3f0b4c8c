package cache

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[T any] struct {
	storedAt time.Time
	value    T
}

// Cache memoizes fetch results for a freshness window. Entries are replaced
// wholesale on the next miss after they go stale; failed fetches are never stored.
type Cache[T any] struct {
	mu           sync.RWMutex
	entries      map[string]entry[T]
	group        singleflight.Group
	now          func() time.Time
	fetchTimeout time.Duration
}

// New returns an empty cache. A shared fetch outlives the caller that started
// it and is bounded by fetchTimeout instead; zero leaves it unbounded.
func New[T any](fetchTimeout time.Duration) *Cache[T] {
	return &Cache[T]{entries: make(map[string]entry[T]), now: time.Now, fetchTimeout: fetchTimeout}
}

// Get returns the value stored under key if it is younger than ttl.
func (c *Cache[T]) Get(key string, ttl time.Duration) (T, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.storedAt) >= ttl {
		var zero T
		return zero, false
	}
	return e.value, true
}

// GetOrFetch returns the fresh value for key, or calls fetch and stores its
// result. Concurrent misses on one key share a single fetch. A caller whose ctx
// ends stops waiting, but the fetch keeps running for the others.
func (c *Cache[T]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := c.Get(key, ttl); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		if v, ok := c.Get(key, ttl); ok {
			return v, nil
		}
		fctx, cancel := c.fetchContext(ctx)
		defer cancel()

		slog.Debug("cache miss", "key", key)
		v, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = entry[T]{storedAt: c.now(), value: v}
		c.mu.Unlock()
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (c *Cache[T]) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if c.fetchTimeout > 0 {
		return context.WithTimeout(detached, c.fetchTimeout)
	}
	return context.WithCancel(detached)
}

// Key builds a cache key from every parameter that shapes a fetch result.
func Key(table string, top int, orderBy, filter string, projected bool) string {
	return strings.Join([]string{
		strconv.Quote(table),
		"top=" + strconv.Itoa(top),
		"order=" + strconv.Quote(orderBy),
		"filter=" + strconv.Quote(filter),
		"projected=" + strconv.FormatBool(projected),
	}, "|")
}
