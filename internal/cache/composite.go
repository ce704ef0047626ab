package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/cachekey"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/epi"
)

// Composite wraps an L1 and an L2 back-end (C4). L2 may itself be a
// Composite, producing arbitrary-depth hierarchies; see ParseTopology for
// how a config string like "mem<dist<mem" is built right-to-left so the
// rightmost token becomes the innermost L2.
type Composite struct {
	L1 Backend
	L2 Backend

	hits, misses, sets, errs, partial atomic.Int64
}

// NewComposite builds a two-level cache out of any two Backends.
func NewComposite(l1, l2 Backend) *Composite {
	return &Composite{L1: l1, L2: l2}
}

// Get reads L1 first; on an L1 miss it reads L2 and, on an L2 hit, promotes
// the value into L1 under the prefix length L2 matched ("read promotion").
func (c *Composite) Get(ctx context.Context, schemaVersion, fingerprint string, steps []cachekey.Step) (epi.Document, int, bool) {
	if value, matched, ok := c.L1.Get(ctx, schemaVersion, fingerprint, steps); ok {
		c.hits.Add(1)
		if matched < len(steps) {
			c.partial.Add(1)
		}
		return value, matched, true
	}
	value, matched, ok := c.L2.Get(ctx, schemaVersion, fingerprint, steps)
	if !ok {
		c.misses.Add(1)
		return nil, 0, false
	}
	c.hits.Add(1)
	if matched < len(steps) {
		c.partial.Add(1)
	}
	// Promote into L1 under the matched prefix length. Promotion failures
	// are not fatal to the read; the value still came back from L2.
	_ = c.L1.Set(ctx, schemaVersion, fingerprint, steps[:matched], value, 0)
	return value, matched, true
}

// Set writes to both L1 and L2 concurrently and waits for both.
func (c *Composite) Set(ctx context.Context, schemaVersion, fingerprint string, steps []cachekey.Step, value epi.Document, ttl time.Duration) error {
	var wg sync.WaitGroup
	var l1err, l2err error
	wg.Add(2)
	go func() {
		defer wg.Done()
		l1err = c.L1.Set(ctx, schemaVersion, fingerprint, steps, value, ttl)
	}()
	go func() {
		defer wg.Done()
		l2err = c.L2.Set(ctx, schemaVersion, fingerprint, steps, value, ttl)
	}()
	wg.Wait()
	c.sets.Add(1)
	if l1err != nil {
		c.errs.Add(1)
		return l1err
	}
	if l2err != nil {
		c.errs.Add(1)
		return l2err
	}
	return nil
}

// InvalidateByEpi invalidates both levels concurrently.
func (c *Composite) InvalidateByEpi(ctx context.Context, schemaVersion, fingerprint string) error {
	var wg sync.WaitGroup
	var l1err, l2err error
	wg.Add(2)
	go func() {
		defer wg.Done()
		l1err = c.L1.InvalidateByEpi(ctx, schemaVersion, fingerprint)
	}()
	go func() {
		defer wg.Done()
		l2err = c.L2.InvalidateByEpi(ctx, schemaVersion, fingerprint)
	}()
	wg.Wait()
	if l1err != nil {
		return l1err
	}
	return l2err
}

// Stats reports the composite's own counters. Per spec.md §9 open question
// 3, this double-counts relative to the child back-ends' own Stats() when
// they also count the same operation; DetailedStats exposes both views.
func (c *Composite) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Errors:      c.errs.Load(),
		PartialHits: c.partial.Load(),
	}
}

// DetailedStats is the composite's own Stats plus each child's, for the
// GET /preprocessing/cache/stats?detail=1 view.
type DetailedStats struct {
	Composite Stats `json:"composite"`
	L1        Stats `json:"l1"`
	L2        Stats `json:"l2"`
}

func (c *Composite) DetailedStats() DetailedStats {
	return DetailedStats{Composite: c.Stats(), L1: c.L1.Stats(), L2: c.L2.Stats()}
}

func (c *Composite) Clear(ctx context.Context) error {
	if err := c.L1.Clear(ctx); err != nil {
		return err
	}
	return c.L2.Clear(ctx)
}
