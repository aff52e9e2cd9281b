// Package cache provides a bounded, string-keyed loader cache. Concurrent
// misses for one key share a single load.
package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Observer is notified of lookups and evictions. Implementations must be safe for concurrent use.
type Observer interface {
	OnHit(ctx context.Context)
	OnMiss(ctx context.Context)
	OnEvict()
}

// Loader produces the value for key on a miss.
type Loader[V any] func(ctx context.Context, key string) (V, error)

// Option configures a LoaderCache.
type Option func(*options)

type options struct {
	observer Observer
}

// WithObserver reports hits, misses and evictions to o.
func WithObserver(o Observer) Option {
	return func(opts *options) {
		opts.observer = o
	}
}

// LoaderCache holds at most maxEntries values, evicting the least recently used.
// Failed loads are not cached.
type LoaderCache[V any] struct {
	entries  *lru.Cache[string, V]
	group    singleflight.Group
	load     Loader[V]
	observer Observer
}

// New creates a cache of maxEntries values filled by load.
func New[V any](maxEntries int, load Loader[V], opts ...Option) (*LoaderCache[V], error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &LoaderCache[V]{load: load, observer: o.observer}

	var onEvict func(string, V)
	if o.observer != nil {
		onEvict = func(string, V) { o.observer.OnEvict() }
	}

	entries, err := lru.NewWithEvict[string, V](maxEntries, onEvict)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}

	c.entries = entries

	return c, nil
}

// Get returns the value for key, loading it on a miss.
func (c *LoaderCache[V]) Get(ctx context.Context, key string) (V, error) {
	v, _, err := c.Lookup(ctx, key)

	return v, err
}

// Lookup is Get that also reports whether the value was already cached.
// The shared load is detached from ctx cancellation so one caller giving up
// does not fail the others waiting on the same key.
func (c *LoaderCache[V]) Lookup(ctx context.Context, key string) (V, bool, error) {
	if v, ok := c.entries.Get(key); ok {
		if c.observer != nil {
			c.observer.OnHit(ctx)
		}

		return v, true, nil
	}

	if c.observer != nil {
		c.observer.OnMiss(ctx)
	}

	ch := c.group.DoChan(key, func() (any, error) {
		loaded, err := c.load(context.WithoutCancel(ctx), key)
		if err != nil {
			return nil, err
		}

		c.entries.Add(key, loaded)

		return loaded, nil
	})

	var zero V

	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}

		return res.Val.(V), false, nil
	}
}

// Remove drops key.
func (c *LoaderCache[V]) Remove(key string) {
	c.entries.Remove(key)
}

// Purge drops every entry.
func (c *LoaderCache[V]) Purge() {
	c.entries.Purge()
}

func (c *LoaderCache[V]) Len() int {
	return c.entries.Len()
}
