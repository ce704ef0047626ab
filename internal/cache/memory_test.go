package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/cachekey"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/epi"
)

func steps(names ...string) []cachekey.Step {
	out := make([]cachekey.Step, len(names))
	for i, n := range names {
		out[i] = cachekey.Step{Name: n}
	}
	return out
}

func TestMemoryBackend_SetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemoryBackend(10, time.Minute)
	require.NoError(t, err)

	doc := epi.Document{"resourceType": "Bundle"}
	require.NoError(t, m.Set(ctx, "v1", "fp", steps("a", "b"), doc, 0))

	got, matched, ok := m.Get(ctx, "v1", "fp", steps("a", "b"))
	require.True(t, ok)
	require.Equal(t, 2, matched)
	require.Equal(t, doc, got)
}

func TestMemoryBackend_PrefixMatch(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemoryBackend(10, time.Minute)
	require.NoError(t, err)

	doc := epi.Document{"resourceType": "Bundle"}
	require.NoError(t, m.Set(ctx, "v1", "fp", steps("a"), doc, 0))

	got, matched, ok := m.Get(ctx, "v1", "fp", steps("a", "b", "c"))
	require.True(t, ok)
	require.Equal(t, 1, matched)
	require.Equal(t, doc, got)

	stats := m.Stats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.PartialHits)
}

func TestMemoryBackend_Miss(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemoryBackend(10, time.Minute)
	require.NoError(t, err)

	_, _, ok := m.Get(ctx, "v1", "fp", steps("a"))
	require.False(t, ok)
	require.Equal(t, int64(1), m.Stats().Misses)
}

func TestMemoryBackend_ExpiredEntryIsEvictedOnRead(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemoryBackend(10, time.Millisecond)
	require.NoError(t, err)

	doc := epi.Document{"resourceType": "Bundle"}
	require.NoError(t, m.Set(ctx, "v1", "fp", steps("a"), doc, time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, _, ok := m.Get(ctx, "v1", "fp", steps("a"))
	require.False(t, ok)
}

func TestMemoryBackend_InvalidateByEpi(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemoryBackend(10, time.Minute)
	require.NoError(t, err)

	doc := epi.Document{"resourceType": "Bundle"}
	require.NoError(t, m.Set(ctx, "v1", "fp-1", steps("a"), doc, 0))
	require.NoError(t, m.Set(ctx, "v1", "fp-2", steps("a"), doc, 0))

	require.NoError(t, m.InvalidateByEpi(ctx, "v1", "fp-1"))

	_, _, ok := m.Get(ctx, "v1", "fp-1", steps("a"))
	require.False(t, ok)
	_, _, ok = m.Get(ctx, "v1", "fp-2", steps("a"))
	require.True(t, ok)
}
