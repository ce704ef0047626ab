// Package cache implements the Cache Back-ends (C3) and the Composite Cache
// (C4): an in-memory LRU+TTL store, a Redis-backed distributed store, a
// no-op store, and a composite that layers any two Backends into an L1/L2
// hierarchy of arbitrary depth.
package cache

import (
	"context"
	"time"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/cachekey"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/epi"
)

// Entry is a cache entry's lifecycle payload: created by Set, touched on
// read (LRU recency), destroyed by TTL, LRU eviction, or InvalidateByEpi.
type Entry struct {
	Value           epi.Document
	ExpiresAt       time.Time
	ApproxSizeBytes int
}

// Stats holds the monotonic per-back-end counters from spec.md §4.3.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Sets        int64 `json:"sets"`
	Errors      int64 `json:"errors"`
	PartialHits int64 `json:"partialHits"`
}

// Backend is the uniform five-operation contract every cache back-end and
// the composite implement (spec.md §4.3).
type Backend interface {
	// Get searches from the longest prefix of steps to the shortest and
	// returns the first hit. matchedLen is the prefix length that matched;
	// it is never 0 on a hit (a miss is reported via ok=false instead).
	Get(ctx context.Context, schemaVersion, fingerprint string, steps []cachekey.Step) (value epi.Document, matchedLen int, ok bool)

	// Set stores value under the full prefix steps[:len(steps)]. When the
	// store is at capacity, a victim is evicted by LRU before insertion.
	Set(ctx context.Context, schemaVersion, fingerprint string, steps []cachekey.Step, value epi.Document, ttl time.Duration) error

	// InvalidateByEpi removes every key whose fingerprint field equals fp,
	// regardless of prefix length.
	InvalidateByEpi(ctx context.Context, schemaVersion, fingerprint string) error

	// Stats returns a snapshot of this back-end's own counters.
	Stats() Stats

	// Clear wipes all entries. Counters are not reset.
	Clear(ctx context.Context) error
}
