package registry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeDiscovery struct {
	urls    []string
	err     error
	calls   atomic.Int64
	labels  []string
	mutable func(calls int64) ([]string, error) // overrides urls/err per call when set
}

func (f *fakeDiscovery) ListByLabel(_ context.Context, labelSelector string) ([]string, error) {
	n := f.calls.Add(1)
	f.labels = append(f.labels, labelSelector)
	if f.mutable != nil {
		return f.mutable(n)
	}
	return f.urls, f.err
}

func TestAssignNames_CollisionSuffix(t *testing.T) {
	names := assignNames([]string{"http://a.svc:8080", "http://a.svc:9090", "http://b.svc"})
	require.Equal(t, "http://a.svc:8080", names["a.svc"])
	require.Equal(t, "http://a.svc:9090", names["a.svc-2"])
	require.Equal(t, "http://b.svc", names["b.svc"])
}

func TestOrderedNames_Sorted(t *testing.T) {
	names := map[string]string{"z": "1", "a": "2", "m": "3"}
	require.Equal(t, []string{"a", "m", "z"}, orderedNames(names))
}

func TestPreprocessorRegistry_Refresh_MergesDiscoveredAndExternal(t *testing.T) {
	disc := &fakeDiscovery{urls: []string{"http://interactions.svc"}}
	r := NewPreprocessorRegistry(disc, "app=preprocessor", []string{"http://external.example.com"})

	names, err := r.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"external.example.com", "interactions.svc"}, names)
}

func TestPreprocessorRegistry_RefreshFailureKeepsPreviousMap(t *testing.T) {
	disc := &fakeDiscovery{urls: []string{"http://interactions.svc"}}
	r := NewPreprocessorRegistry(disc, "app=preprocessor", nil)
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)

	disc.err = errors.New("cluster unreachable")
	disc.urls = nil
	_, err = r.Refresh(context.Background())
	require.Error(t, err)

	require.Equal(t, []string{"interactions.svc"}, r.List())
}

func TestPreprocessorRegistry_ResolveWithRefresh_HardErrorAfterOneRetry(t *testing.T) {
	disc := &fakeDiscovery{urls: []string{"http://interactions.svc"}}
	r := NewPreprocessorRegistry(disc, "app=preprocessor", nil)

	_, err := r.ResolveWithRefresh(context.Background(), "nonexistent")
	require.Error(t, err)
	require.Equal(t, int64(1), disc.calls.Load())
}

func TestPreprocessorRegistry_ResolveWithRefresh_SucceedsAfterDiscoveryCatchesUp(t *testing.T) {
	disc := &fakeDiscovery{urls: nil}
	r := NewPreprocessorRegistry(disc, "app=preprocessor", nil)

	disc.mutable = func(n int64) ([]string, error) {
		return []string{"http://interactions.svc"}, nil
	}
	url, err := r.ResolveWithRefresh(context.Background(), "interactions.svc")
	require.NoError(t, err)
	require.Equal(t, "http://interactions.svc", url)
}
