// Package cache is a small TTL key/value store used for search results and
// idempotency keys, backed by process memory or Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cx-tal-miterani/flight-inventory/internal/metrics"
)

// Cache stores byte values with a time to live. A zero ttl means no expiry.
type Cache interface {
	// Get returns the value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// GetJSON decodes a cached JSON value into v.
func GetJSON(ctx context.Context, c Cache, key string, v any) (bool, error) {
	data, ok, err := c.Get(ctx, key)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return false, err
	}
	if !ok {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return false, fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return true, nil
}

// SetJSON stores v encoded as JSON.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return c.Set(ctx, key, data, ttl)
}
