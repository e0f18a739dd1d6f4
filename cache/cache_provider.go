package cache

import (
	"context"
	"time"
)

// CacheProvider is a key/value backend shared by all namespaces. Fetch
// returns nil without an error on a miss.
type CacheProvider interface {
	Fetch(ctx context.Context, namespace string, key string) ([]byte, error)
	Add(ctx context.Context, namespace string, key string, value []byte, ttl time.Duration) error
	Shutdown(ctx context.Context)
}

func cacheKey(namespace string, key string) string {
	return namespace + "--" + key
}
