package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

type localEntry struct {
	value      []byte
	insertedAt time.Time
	ttl        time.Duration
}

func (e localEntry) expired(now time.Time) bool {
	if e.ttl <= 0 {
		return false
	}
	return !now.Before(e.insertedAt.Add(e.ttl))
}

// LocalCache keeps entries in process memory. Expired entries are removed
// when they are read or replaced by a newer write.
type LocalCache struct {
	cache *lru.ARCCache
	now   func() time.Time
}

type LocalCacheOption func(*LocalCache)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) LocalCacheOption {
	return func(lc *LocalCache) {
		lc.now = now
	}
}

func NewLocalCache(ctx context.Context, size int, opts ...LocalCacheOption) (*LocalCache, error) {
	cache, err := lru.NewARC(size)
	if err != nil {
		return nil, err
	}

	lc := &LocalCache{
		cache: cache,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(lc)
	}

	return lc, nil
}

func (lc *LocalCache) Fetch(ctx context.Context, namespace string, key string) ([]byte, error) {
	k := cacheKey(namespace, key)

	value, ok := lc.cache.Get(k)
	if !ok {
		return nil, nil
	}

	entry := value.(localEntry)
	if entry.expired(lc.now()) {
		lc.cache.Remove(k)
		return nil, nil
	}

	return entry.value, nil
}

func (lc *LocalCache) Add(ctx context.Context, namespace string, key string, value []byte, ttl time.Duration) error {
	lc.cache.Add(cacheKey(namespace, key), localEntry{
		value:      value,
		insertedAt: lc.now(),
		ttl:        ttl,
	})

	return nil
}

func (lc *LocalCache) Shutdown(ctx context.Context) {
	lc.cache.Purge()
}
