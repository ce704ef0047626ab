package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/cachekey"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/epi"
)

// scanBatchSize is the COUNT hint passed to each SCAN call during
// invalidation; it bounds per-call work, not total keys scanned.
const scanBatchSize = 200

// DistributedBackend is the shared key/value back-end from spec.md §4.3,
// grounded on the teacher's internal/workspaces/redis_cache.go: values are
// JSON, optionally gzip-compressed and base64-framed, with TTL expressed in
// whole seconds (rounded up from the millisecond TTL the caller supplies).
// Invalidation is a cursor-based SCAN, never KEYS, so it never blocks the
// shared Redis instance.
type DistributedBackend struct {
	client   redis.UniversalClient
	compress bool

	hits, misses, sets, errs, partial atomic.Int64
}

// NewDistributedBackend wraps an existing Redis client. compress enables
// gzip framing of stored values (PREPROCESSING_CACHE_COMPRESS).
func NewDistributedBackend(client redis.UniversalClient, compress bool) *DistributedBackend {
	return &DistributedBackend{client: client, compress: compress}
}

func (d *DistributedBackend) Get(ctx context.Context, schemaVersion, fingerprint string, steps []cachekey.Step) (epi.Document, int, bool) {
	for k := len(steps); k >= 1; k-- {
		key := cachekey.Key(schemaVersion, fingerprint, steps[:k])
		raw, err := d.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			d.errs.Add(1)
			continue
		}
		value, err := d.decode(raw)
		if err != nil {
			d.errs.Add(1)
			continue
		}
		d.hits.Add(1)
		if k < len(steps) {
			d.partial.Add(1)
		}
		return value, k, true
	}
	d.misses.Add(1)
	return nil, 0, false
}

func (d *DistributedBackend) Set(ctx context.Context, schemaVersion, fingerprint string, steps []cachekey.Step, value epi.Document, ttl time.Duration) error {
	encoded, err := d.encode(value)
	if err != nil {
		d.errs.Add(1)
		return err
	}
	key := cachekey.Key(schemaVersion, fingerprint, steps)
	seconds := secondsRoundUp(ttl)
	if err := d.client.Set(ctx, key, encoded, seconds).Err(); err != nil {
		d.errs.Add(1)
		return err
	}
	d.sets.Add(1)
	return nil
}

func (d *DistributedBackend) InvalidateByEpi(ctx context.Context, schemaVersion, fingerprint string) error {
	pattern := cachekey.Pattern(schemaVersion, fingerprint)
	var cursor uint64
	for {
		keys, next, err := d.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			d.errs.Add(1)
			return err
		}
		if len(keys) > 0 {
			if err := d.client.Del(ctx, keys...).Err(); err != nil {
				d.errs.Add(1)
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}

func (d *DistributedBackend) Stats() Stats {
	return Stats{
		Hits:        d.hits.Load(),
		Misses:      d.misses.Load(),
		Sets:        d.sets.Load(),
		Errors:      d.errs.Load(),
		PartialHits: d.partial.Load(),
	}
}

func (d *DistributedBackend) Clear(ctx context.Context) error {
	return d.client.FlushDB(ctx).Err()
}

func (d *DistributedBackend) encode(value epi.Document) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	if !d.compress {
		return base64.StdEncoding.EncodeToString(raw), nil
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (d *DistributedBackend) decode(encoded string) (epi.Document, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if d.compress {
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		raw, err = io.ReadAll(gz)
		if err != nil {
			return nil, err
		}
	}
	var doc epi.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// secondsRoundUp converts a millisecond-resolution TTL to whole seconds,
// rounding up so an entry never expires earlier than requested.
func secondsRoundUp(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	ms := ttl.Milliseconds()
	secs := ms / 1000
	if ms%1000 != 0 {
		secs++
	}
	return time.Duration(secs) * time.Second
}
