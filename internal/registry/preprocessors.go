// Package registry implements the Service Registry (C5): discovery of
// preprocessor and lens-selector base URLs by label, merged with
// statically-configured external endpoints, refreshed with single-flight
// deduplication (golang.org/x/sync/singleflight, as the teacher's go.mod
// already pulls in golang.org/x/sync for errgroup).
package registry

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/discovery"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/errorkind"
)

// PreprocessorRegistry discovers preprocessor services by label and merges
// them with a static external-endpoints list. External endpoints are
// appended after the discovered ones before names are assigned, so on a
// host collision the discovered service keeps the bare name; Refresh and
// List return the names sorted.
type PreprocessorRegistry struct {
	discovery     discovery.Backend
	labelSelector string
	external      []string

	names atomic.Pointer[map[string]string] // serviceName -> baseUrl, replaced atomically
	group singleflight.Group
}

// NewPreprocessorRegistry builds a registry backed by the given discovery
// backend. external is the static PREPROCESSING_EXTERNAL_ENDPOINTS list,
// appended after discovered endpoints.
func NewPreprocessorRegistry(backend discovery.Backend, labelSelector string, external []string) *PreprocessorRegistry {
	r := &PreprocessorRegistry{discovery: backend, labelSelector: labelSelector, external: external}
	empty := map[string]string{}
	r.names.Store(&empty)
	return r
}

// Refresh discovers the current set of preprocessors and atomically
// replaces the registry's name map on success; a discovery failure leaves
// the previous map intact (spec.md §4.5). Concurrent callers observe a
// single shared discovery call (testable property 7, scenario S5).
func (r *PreprocessorRegistry) Refresh(ctx context.Context) ([]string, error) {
	v, err, _ := r.group.Do("refresh", func() (any, error) {
		discovered, derr := r.discovery.ListByLabel(ctx, r.labelSelector)
		if derr != nil {
			return nil, errorkind.New(errorkind.DiscoveryFailure, derr.Error())
		}
		urls := append(append([]string{}, discovered...), r.external...)
		names := assignNames(urls)
		r.names.Store(&names)
		return orderedNames(names), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// List returns the currently known service names without triggering a
// refresh.
func (r *PreprocessorRegistry) List() []string {
	return orderedNames(*r.names.Load())
}

// Resolve looks up name in the current registry map without refreshing.
func (r *PreprocessorRegistry) Resolve(name string) (string, bool) {
	url, ok := (*r.names.Load())[name]
	return url, ok
}

// ResolveWithRefresh resolves name, triggering exactly one refresh and retry
// when it is initially unknown; a second miss is a hard UnknownService error
// (spec.md §4.5).
func (r *PreprocessorRegistry) ResolveWithRefresh(ctx context.Context, name string) (string, error) {
	if url, ok := r.Resolve(name); ok {
		return url, nil
	}
	if _, err := r.Refresh(ctx); err != nil {
		return "", err
	}
	if url, ok := r.Resolve(name); ok {
		return url, nil
	}
	return "", errorkind.New(errorkind.UnknownService, "preprocessor service not found: "+name)
}
