package cache

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/cachekey"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/epi"
)

// DefaultMaxItems is the in-memory back-end's default capacity
// (PREPROCESSING_CACHE_MAX_ITEMS default per spec.md §6).
const DefaultMaxItems = 1000

type memoryRecord struct {
	entry       Entry
	fingerprint string
}

// MemoryBackend is the hash-table-plus-recency-list back-end from spec.md
// §4.3, built on hashicorp/golang-lru/v2 for O(1) LRU eviction. Per-entry
// TTL is tracked alongside the LRU's own recency so that an entry can carry
// a different TTL than the default without the whole cache sharing one
// expiry, which the library's "expirable" variant would otherwise force.
type MemoryBackend struct {
	lru        *lru.Cache[string, memoryRecord]
	defaultTTL time.Duration

	hits, misses, sets, errs, partial atomic.Int64
}

// NewMemoryBackend creates an in-memory back-end with the given capacity
// and default TTL (used when Set is called with ttl<=0).
func NewMemoryBackend(maxItems int, defaultTTL time.Duration) (*MemoryBackend, error) {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	l, err := lru.New[string, memoryRecord](maxItems)
	if err != nil {
		return nil, err
	}
	return &MemoryBackend{lru: l, defaultTTL: defaultTTL}, nil
}

func (m *MemoryBackend) Get(_ context.Context, schemaVersion, fingerprint string, steps []cachekey.Step) (epi.Document, int, bool) {
	now := time.Now()
	for k := len(steps); k >= 1; k-- {
		key := cachekey.Key(schemaVersion, fingerprint, steps[:k])
		rec, ok := m.lru.Peek(key)
		if !ok {
			continue
		}
		if now.After(rec.entry.ExpiresAt) {
			m.lru.Remove(key)
			continue
		}
		// Touch recency on the matched entry, full or partial.
		m.lru.Get(key)
		m.hits.Add(1)
		if k < len(steps) {
			m.partial.Add(1)
		}
		return rec.entry.Value, k, true
	}
	m.misses.Add(1)
	return nil, 0, false
}

func (m *MemoryBackend) Set(_ context.Context, schemaVersion, fingerprint string, steps []cachekey.Step, value epi.Document, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	key := cachekey.Key(schemaVersion, fingerprint, steps)
	m.lru.Add(key, memoryRecord{
		entry: Entry{
			Value:           value,
			ExpiresAt:       time.Now().Add(ttl),
			ApproxSizeBytes: approxSize(value),
		},
		fingerprint: fingerprint,
	})
	m.sets.Add(1)
	return nil
}

func (m *MemoryBackend) InvalidateByEpi(_ context.Context, _ string, fingerprint string) error {
	for _, key := range m.lru.Keys() {
		rec, ok := m.lru.Peek(key)
		if ok && rec.fingerprint == fingerprint {
			m.lru.Remove(key)
		}
	}
	return nil
}

func (m *MemoryBackend) Stats() Stats {
	return Stats{
		Hits:        m.hits.Load(),
		Misses:      m.misses.Load(),
		Sets:        m.sets.Load(),
		Errors:      m.errs.Load(),
		PartialHits: m.partial.Load(),
	}
}

func (m *MemoryBackend) Clear(_ context.Context) error {
	m.lru.Purge()
	return nil
}

// approxSize is a cheap, allocation-light stand-in for a real size
// estimator: callers only use ApproxSizeBytes for observability.
func approxSize(doc epi.Document) int {
	n := 0
	for k, v := range doc {
		n += len(k) + approxValueSize(v)
	}
	return n
}

func approxValueSize(v any) int {
	switch val := v.(type) {
	case string:
		return len(val)
	case map[string]any:
		return approxSize(val)
	case []any:
		n := 0
		for _, e := range val {
			n += approxValueSize(e)
		}
		return n
	default:
		return 8
	}
}
