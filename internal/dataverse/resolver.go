package dataverse

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Resolver maps logical table names to physical collection names. Mappings are
// kept for the life of the process; concurrent misses for one name share a
// single lookup. A shared lookup is detached from the caller that started it
// and bounded by timeout.
type Resolver struct {
	lookup  func(ctx context.Context, logicalName string) (string, error)
	timeout time.Duration

	mu    sync.RWMutex
	names map[string]string
	group singleflight.Group
}

func NewResolver(lookup func(ctx context.Context, logicalName string) (string, error), timeout time.Duration) *Resolver {
	return &Resolver{lookup: lookup, timeout: timeout, names: make(map[string]string)}
}

// Seed records a known mapping so it is never looked up.
func (r *Resolver) Seed(logicalName, collection string) {
	r.mu.Lock()
	r.names[logicalName] = collection
	r.mu.Unlock()
}

// Cached returns the mapping without any network call.
func (r *Resolver) Cached(logicalName string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.names[logicalName]
	return c, ok
}

func (r *Resolver) Resolve(ctx context.Context, logicalName string) (string, error) {
	if c, ok := r.Cached(logicalName); ok {
		return c, nil
	}

	ch := r.group.DoChan(logicalName, func() (interface{}, error) {
		if c, ok := r.Cached(logicalName); ok {
			return c, nil
		}
		lctx, cancel := r.lookupContext(ctx)
		defer cancel()

		c, err := r.lookup(lctx, logicalName)
		if err != nil {
			return "", err
		}
		r.Seed(logicalName, c)
		return c, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *Resolver) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if r.timeout > 0 {
		return context.WithTimeout(detached, r.timeout)
	}
	return context.WithCancel(detached)
}
