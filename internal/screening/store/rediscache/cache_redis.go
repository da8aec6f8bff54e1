// Package rediscache memoizes classifications in Redis so repeated runs over
// overlapping datasets skip identifiers they have already seen.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"panval/internal/screening"
	"panval/pkg/fingerprint"
)

const (
	DefaultKeyPrefix = "panval:classification:"
	DefaultTTL       = 24 * time.Hour

	lookupBatch = 500
)

// Cache stores one key per identifier. Keys are blake2b fingerprints, so
// identifiers never appear in the keyspace.
type Cache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

type entry struct {
	Status     screening.Status      `json:"status"`
	Violations []screening.Violation `json:"violations,omitempty"`
}

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(c *Cache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

func New(client redis.Cmdable, opts ...Option) (*Cache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	c := &Cache{
		client: client,
		prefix: DefaultKeyPrefix,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *Cache) key(identifier string) string {
	return c.prefix + fingerprint.Of(identifier)
}

// Lookup fetches known classifications with MGET in batches. Entries that
// fail to decode are treated as misses.
func (c *Cache) Lookup(ctx context.Context, identifiers []string) (map[string]screening.Result, error) {
	out := make(map[string]screening.Result)
	for start := 0; start < len(identifiers); start += lookupBatch {
		batch := identifiers[start:min(start+lookupBatch, len(identifiers))]
		keys := make([]string, len(batch))
		for i, id := range batch {
			keys[i] = c.key(id)
		}

		values, err := c.client.MGet(ctx, keys...).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis mget: %w", err)
		}
		for i, v := range values {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			var e entry
			if err := json.Unmarshal([]byte(raw), &e); err != nil || !e.Status.IsValid() {
				continue
			}
			out[batch[i]] = screening.Result{
				Identifier: batch[i],
				Status:     e.Status,
				Violations: e.Violations,
			}
		}
	}
	return out, nil
}

// Store writes results through a single pipeline.
func (c *Cache) Store(ctx context.Context, results screening.Results) error {
	if len(results) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, r := range results {
		payload, err := json.Marshal(entry{Status: r.Status, Violations: r.Violations})
		if err != nil {
			return fmt.Errorf("marshal cache entry: %w", err)
		}
		pipe.Set(ctx, c.key(r.Identifier), payload, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}
