// Package cache memoizes deterministic layout results.
//
// Only layouts computed from a fixed seed are cached: a scene for a given
// dataset hash, year, region sizes and engine configuration is always the
// same, so it can be reused across CLI invocations and server requests.
// Time-seeded layouts bypass the cache entirely.
//
// Three backends implement [Cache]:
//
//   - [FileCache]: JSON entry files under the user cache directory (CLI)
//   - [RedisCache]: shared cache for the HTTP server
//   - [NullCache]: caching disabled
//
// Keys come from a [Keyer]; wrap one in [NewScopedKeyer] to isolate
// namespaces that share a backend.
package cache

import (
	"context"
	"errors"
	"time"
)

// TTLs for cached entries.
const (
	TTLScene  = 7 * 24 * time.Hour
	TTLPlane  = 24 * time.Hour
	TTLRender = 24 * time.Hour
)

// ErrCacheMiss is returned by helpers that surface a miss as an error.
var ErrCacheMiss = errors.New("cache miss")

// Cache stores opaque byte payloads under string keys.
//
// Get reports a miss as (nil, false, nil); an error means the backend
// itself failed. A ttl of 0 stores the entry without expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
