package cache

import (
	"context"
	"time"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/cachekey"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/epi"
)

// NoopBackend is total and side-effect free; Get always reports a miss.
// Selected by PREPROCESSING_CACHE_BACKEND=none.
type NoopBackend struct{}

func NewNoopBackend() *NoopBackend { return &NoopBackend{} }

func (NoopBackend) Get(context.Context, string, string, []cachekey.Step) (epi.Document, int, bool) {
	return nil, 0, false
}

func (NoopBackend) Set(context.Context, string, string, []cachekey.Step, epi.Document, time.Duration) error {
	return nil
}

func (NoopBackend) InvalidateByEpi(context.Context, string, string) error { return nil }

func (NoopBackend) Stats() Stats { return Stats{} }

func (NoopBackend) Clear(context.Context) error { return nil }
