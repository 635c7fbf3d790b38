package spaceweather

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/i474232898/sunflux/internal/logging"
)

// Cache ties one Source to one Store. Every feed, whatever its payload,
// goes through the same stale-check, fetch, merge and persist steps.
type Cache[T any] struct {
	name   string
	source Source[T]
	store  Store[T]
	policy Staleness
	merge  func(cached, fresh T) T

	group singleflight.Group
	log   *slog.Logger
}

// CacheOption customizes a Cache.
type CacheOption[T any] func(*Cache[T])

// WithLogger replaces the component logger.
func WithLogger[T any](l *slog.Logger) CacheOption[T] {
	return func(c *Cache[T]) { c.log = l }
}

// NewCache creates a Cache. merge receives what the store holds and what
// the source just returned, and produces what is saved.
func NewCache[T any](source Source[T], store Store[T], policy Staleness, merge func(cached, fresh T) T, opts ...CacheOption[T]) *Cache[T] {
	c := &Cache[T]{
		name:   source.Name(),
		source: source,
		store:  store,
		policy: policy,
		merge:  merge,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logging.Component("cache")
	}
	c.log = c.log.With("feed", c.name)
	return c
}

// Name returns the feed name.
func (c *Cache[T]) Name() string { return c.name }

// TTL returns the configured time-to-live.
func (c *Cache[T]) TTL() time.Duration { return c.policy.TTL }

// LastModified returns when the store was last written, zero if never.
func (c *Cache[T]) LastModified() time.Time { return c.store.ModTime() }

// Stale reports whether the stored data is older than the TTL.
func (c *Cache[T]) Stale() bool { return c.policy.Stale(c.store.ModTime()) }

// Get refreshes the store when it is stale, then returns whatever the store
// holds. A failed refresh is logged and the previous data is served.
func (c *Cache[T]) Get(ctx context.Context) T {
	if _, err := c.Sync(ctx); err != nil {
		c.log.Warn("refresh failed; serving cached data", "error", err)
	}
	return c.store.Load()
}

// Sync refreshes only when stale. It reports whether a refresh ran.
func (c *Cache[T]) Sync(ctx context.Context) (bool, error) {
	if !c.Stale() {
		c.log.Debug("cache is fresh", "modified", c.store.ModTime())
		return false, nil
	}
	return true, c.Refresh(ctx)
}

// Refresh fetches, merges and persists unconditionally. Concurrent calls
// for the same cache share one fetch. On error the store is untouched.
func (c *Cache[T]) Refresh(ctx context.Context) error {
	_, err, shared := c.group.Do(c.name, func() (interface{}, error) {
		return nil, c.refresh(ctx)
	})
	if shared {
		c.log.Debug("joined in-flight refresh")
	}
	return err
}

func (c *Cache[T]) refresh(ctx context.Context) error {
	log := c.log.With("run", uuid.NewString())
	start := time.Now()
	log.Info("refreshing")

	fresh, err := c.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}

	merged := c.merge(c.store.Load(), fresh)
	if err := c.store.Save(merged); err != nil {
		return fmt.Errorf("%s: save: %w", c.name, err)
	}

	log.Info("refreshed", "took", time.Since(start).Round(time.Millisecond))
	return nil
}
