// Package cache provides a tenant-scoped, content-addressed cache around
// expensive generation calls. Keys always embed the tenant-resource id, so
// two tenants with identical content can never share an entry.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// ComputeFunc produces the value for a cache miss.
type ComputeFunc func(ctx context.Context) (json.RawMessage, error)

// Store is the persistent backend for cache entries. internal/sqlite
// provides the production implementation.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Put(ctx context.Context, key string, payload json.RawMessage, expiresAt time.Time) error
}

// Cache wraps a persistent store with TTL checks and single-flight miss
// coalescing, so concurrent misses on one key pay for at most one
// computation.
type Cache struct {
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// New creates a cache over the given store. The store is an injected
// dependency so tests can substitute an in-memory fake.
func New(store Store, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, ttl: ttl, logger: logger}
}

// Fingerprint returns a short deterministic digest of the canonical JSON
// serialization of inputs.
func Fingerprint(inputs any) (string, error) {
	canonical, err := json.Marshal(inputs)
	if err != nil {
		return "", fmt.Errorf("canonicalize fingerprint inputs: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:16], nil
}

// Key builds the full cache key from the function identity, the
// tenant-resource id, and the content fingerprint.
func Key(fnID, resourceID, fingerprint string) string {
	return fnID + ":" + resourceID + ":" + fingerprint
}

// Fetch returns the cached payload for (fnID, resourceID, inputs) when a
// live entry exists, otherwise invokes compute once, stores its result, and
// returns it. The second return reports a cache hit. Failed computations
// are never stored.
func (c *Cache) Fetch(ctx context.Context, fnID, resourceID string, inputs any, compute ComputeFunc) (json.RawMessage, bool, error) {
	fingerprint, err := Fingerprint(inputs)
	if err != nil {
		return nil, false, err
	}
	key := Key(fnID, resourceID, fingerprint)

	type fetchResult struct {
		payload json.RawMessage
		hit     bool
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if payload, ok, err := c.store.Get(ctx, key); err != nil {
			c.logger.Warn("cache read failed", "key", key, "error", err)
		} else if ok {
			return fetchResult{payload: payload, hit: true}, nil
		}

		payload, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		if err := c.store.Put(ctx, key, payload, time.Now().Add(c.ttl)); err != nil {
			// Store failures don't invalidate the computed value.
			c.logger.Warn("cache write failed", "key", key, "error", err)
		}
		return fetchResult{payload: payload}, nil
	})
	if err != nil {
		return nil, false, err
	}

	res := v.(fetchResult)
	return res.payload, res.hit, nil
}
