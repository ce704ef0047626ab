// Package pipeline implements the Preprocessing Pipeline (C6): given an
// ordered list of step names and an ePI, it computes the longest cached
// prefix, remote-calls the missing suffix in strict order, caches each
// intermediate result, and returns the final ePI plus a per-step error
// list (spec.md §4.6).
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/cache"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/cachekey"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/epi"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/errorkind"
)

// Resolver resolves a preprocessor step name to its base URL, refreshing
// the registry on a miss. Satisfied by *registry.PreprocessorRegistry.
type Resolver interface {
	ResolveWithRefresh(ctx context.Context, name string) (string, error)
}

// Pipeline runs the ordered preprocessor chain with prefix-cache reuse.
type Pipeline struct {
	Cache         cache.Backend
	Registry      Resolver
	HTTPClient    *http.Client
	SchemaVersion string
}

// New builds a Pipeline backed by c, registry, and httpClient. Each
// intermediate Set uses the back-end's own default TTL (ttl<=0 passed
// through to the back-end's Set).
func New(c cache.Backend, registry Resolver, httpClient *http.Client, schemaVersion string) *Pipeline {
	return &Pipeline{Cache: c, Registry: registry, HTTPClient: httpClient, SchemaVersion: schemaVersion}
}

// Run executes steps against doc, reusing the longest cached prefix
// (spec.md §4.6 algorithm). An empty step list returns (doc, nil)
// immediately (edge case in spec.md §4.6).
func (p *Pipeline) Run(ctx context.Context, doc epi.Document, steps []cachekey.Step) (epi.Document, []errorkind.StageError) {
	if len(steps) == 0 {
		return doc, nil
	}

	fp := cachekey.Fingerprint(doc)
	cached, matched, ok := p.Cache.Get(ctx, p.SchemaVersion, fp, steps)

	current := doc
	i := 0
	if ok {
		if matched == len(steps) {
			return cached, nil
		}
		current = cached
		i = matched
	}

	var errs []errorkind.StageError
	for ; i < len(steps); i++ {
		step := steps[i]
		select {
		case <-ctx.Done():
			return current, errs
		default:
		}

		baseURL, err := p.Registry.ResolveWithRefresh(ctx, step.Name)
		if err != nil {
			errs = append(errs, errorkind.StageError{Stage: "preprocess", Code: errorkind.UnknownService, Detail: step.Name})
			continue
		}

		next, err := p.callPreprocessor(ctx, baseURL, current)
		if err != nil {
			errs = append(errs, errorkind.StageError{Stage: "preprocess", Code: errorkind.UpstreamUnavailable, Detail: step.Name})
			continue
		}

		current = next
		// Open question 1 (spec.md §9): the source advances category on
		// any successful step even when a later step then fails; this
		// implementation preserves that behaviour rather than deferring
		// the transition until all steps have succeeded.
		_ = epi.SetCategoryCode(current, epi.CategoryPreprocessed)

		if setErr := p.Cache.Set(ctx, p.SchemaVersion, fp, steps[:i+1], current, 0); setErr != nil {
			errs = append(errs, errorkind.StageError{Stage: "cache", Code: errorkind.CacheFailure, Detail: step.Name})
		}
	}
	return current, errs
}

func (p *Pipeline) callPreprocessor(ctx context.Context, baseURL string, doc epi.Document) (epi.Document, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(baseURL, "/") + "/preprocess"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("pipeline: preprocessor %s returned status %d", url, resp.StatusCode)
	}

	var out epi.Document
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// InvalidateByEpi exposes C3/C4's invalidateByEpi for callers who know a
// document has been overwritten out-of-band (spec.md §4.6 "Invalidation");
// the pipeline never calls this itself.
func (p *Pipeline) InvalidateByEpi(ctx context.Context, doc epi.Document) error {
	fp := cachekey.Fingerprint(doc)
	return p.Cache.InvalidateByEpi(ctx, p.SchemaVersion, fp)
}
