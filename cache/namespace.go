package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cloud66-oss/ipinfo/metrics"
)

// Namespace is a typed view over a CacheProvider with its own TTL. Keys of
// different namespaces never collide. A namespace without a provider
// always misses.
type Namespace[T any] struct {
	name     string
	ttl      time.Duration
	provider CacheProvider
}

func NewNamespace[T any](name string, ttl time.Duration, provider CacheProvider) *Namespace[T] {
	return &Namespace[T]{
		name:     name,
		ttl:      ttl,
		provider: provider,
	}
}

func (n *Namespace[T]) Name() string {
	return n.name
}

func (n *Namespace[T]) TTL() time.Duration {
	return n.ttl
}

func (n *Namespace[T]) Get(ctx context.Context, key string) (T, bool) {
	var value T

	if n.provider == nil {
		return value, false
	}

	data, err := n.provider.Fetch(ctx, n.name, key)
	if err != nil {
		log.Error().Err(err).Str("namespace", n.name).Str("key", key).Msg("failed to fetch from cache")
	}
	if data == nil {
		metrics.CacheMissesTotal.WithLabelValues(n.name).Inc()
		return value, false
	}

	if err := json.Unmarshal(data, &value); err != nil {
		log.Error().Err(err).Str("namespace", n.name).Str("key", key).Msg("dropping undecodable cache entry")
		metrics.CacheMissesTotal.WithLabelValues(n.name).Inc()
		return value, false
	}

	metrics.CacheHitsTotal.WithLabelValues(n.name).Inc()
	return value, true
}

func (n *Namespace[T]) Set(ctx context.Context, key string, value T) {
	if n.provider == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("namespace", n.name).Msg("failed to encode cache entry")
		return
	}

	log.Trace().Str("namespace", n.name).Str("key", key).Msg("adding to cache")
	if err := n.provider.Add(ctx, n.name, key, data, n.ttl); err != nil {
		log.Error().Err(err).Str("namespace", n.name).Msg("failed to update cache")
	}
}
