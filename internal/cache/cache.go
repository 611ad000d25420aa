// Package cache is an optional redis-backed report cache. Reports are
// deterministic functions of the dataset, so a short TTL only delays
// visibility of freshly imported data, it cannot change a payload.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"enforcement-analytics/internal/metrics"
)

type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a nil-safe cache; an empty address disables caching.
func New(addr, password string, db int, ttl time.Duration) *ReportCache {
	if addr == "" {
		return &ReportCache{}
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &ReportCache{client: client, ttl: ttl}
}

func (c *ReportCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get unmarshals a cached report into out and reports whether it hit.
func (c *ReportCache) Get(ctx context.Context, key string, out interface{}) bool {
	if !c.Enabled() {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		metrics.CacheMissesTotal.Inc()
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false
	}
	metrics.CacheHitsTotal.Inc()
	return true
}

// Set stores a report; failures are silent, the cache is best effort.
func (c *ReportCache) Set(ctx context.Context, key string, value interface{}) {
	if !c.Enabled() {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, raw, c.ttl)
}
