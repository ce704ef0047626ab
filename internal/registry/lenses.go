package registry

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/discovery"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/errorkind"
)

// LensRef resolves a lens key to the selector that owns it and the lens's
// actual name on that selector (which may differ from the key when a
// collision forced a numeric suffix).
type LensRef struct {
	SelectorName string
	ActualName   string
}

// SelectorLister lists the lens names exposed by one selector's /lenses
// endpoint. Implemented by internal/lens's HTTP client; kept as an
// interface here so the registry has no dependency on lens compilation.
type SelectorLister interface {
	ListLensNames(ctx context.Context, baseURL string) ([]string, error)
}

type lensRegistryState struct {
	selectors map[string]string // selectorName -> baseUrl
	lenses    map[string]LensRef
}

// LensRegistry discovers lens-selector services by label and rebuilds the
// lens-name map from each selector's listing on every refresh (spec.md
// §4.5). Per spec.md §9 open question 4, the mapping is rebuilt wholesale
// on each refresh, so which suffix resolves to which lens can change across
// reloads if a selector's listing changes.
type LensRegistry struct {
	discovery     discovery.Backend
	labelSelector string
	lister        SelectorLister

	state atomic.Pointer[lensRegistryState]
	group singleflight.Group
}

// NewLensRegistry builds a lens-selector registry backed by the given
// discovery backend and selector-listing client.
func NewLensRegistry(backend discovery.Backend, labelSelector string, lister SelectorLister) *LensRegistry {
	r := &LensRegistry{discovery: backend, labelSelector: labelSelector, lister: lister}
	r.state.Store(&lensRegistryState{selectors: map[string]string{}, lenses: map[string]LensRef{}})
	return r
}

// Refresh discovers selector base URLs, lists each selector's lenses
// (serialized per selector, per spec.md §5), and atomically replaces both
// the selector map and the lens-name map on success.
func (r *LensRegistry) Refresh(ctx context.Context) ([]string, error) {
	v, err, _ := r.group.Do("refresh", func() (any, error) {
		discovered, derr := r.discovery.ListByLabel(ctx, r.labelSelector)
		if derr != nil {
			return nil, errorkind.New(errorkind.DiscoveryFailure, derr.Error())
		}
		selectors := assignNames(discovered)

		lenses := map[string]LensRef{}
		seen := map[string]int{}
		// Selector names are processed in deterministic order so that
		// suffix assignment is reproducible across identical discovery
		// results; listing of distinct selectors is independent (no
		// shared state), only a single selector's own listing is ever
		// read concurrently with itself.
		for _, selectorName := range orderedNames(selectors) {
			baseURL := selectors[selectorName]
			names, lerr := r.lister.ListLensNames(ctx, baseURL)
			if lerr != nil {
				// One selector's listing failure doesn't abort discovery
				// of the rest; it simply contributes no lenses.
				continue
			}
			for _, actual := range names {
				seen[actual]++
				key := actual
				if n := seen[actual]; n > 1 {
					key = fmt.Sprintf("%s-%d", actual, n)
				}
				lenses[key] = LensRef{SelectorName: selectorName, ActualName: actual}
			}
		}

		r.state.Store(&lensRegistryState{selectors: selectors, lenses: lenses})
		return lensNames(lenses), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// List returns the currently known lens names without refreshing.
func (r *LensRegistry) List() []string {
	return lensNames(r.state.Load().lenses)
}

// Resolve looks up a lens key's owning selector, its base URL, and its
// actual name on that selector.
func (r *LensRegistry) Resolve(lensKey string) (baseURL, actualName string, ok bool) {
	st := r.state.Load()
	ref, ok := st.lenses[lensKey]
	if !ok {
		return "", "", false
	}
	url, ok := st.selectors[ref.SelectorName]
	if !ok {
		return "", "", false
	}
	return url, ref.ActualName, true
}

// ResolveWithRefresh resolves lensKey, triggering exactly one refresh and
// retry on an initial miss; a second miss is a hard UnknownService error.
func (r *LensRegistry) ResolveWithRefresh(ctx context.Context, lensKey string) (baseURL, actualName string, err error) {
	if url, actual, ok := r.Resolve(lensKey); ok {
		return url, actual, nil
	}
	if _, err := r.Refresh(ctx); err != nil {
		return "", "", err
	}
	if url, actual, ok := r.Resolve(lensKey); ok {
		return url, actual, nil
	}
	return "", "", errorkind.New(errorkind.UnknownService, "lens not found: "+lensKey)
}

func lensNames(lenses map[string]LensRef) []string {
	out := make([]string, 0, len(lenses))
	for k := range lenses {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
