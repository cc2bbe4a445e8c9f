package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrNoSnapshot is returned when no cached snapshot exists.
var ErrNoSnapshot = errors.New("no cached snapshot")

// SnapshotCache keeps the most recent catalog snapshot in Redis so the read
// path can serve it without touching the registry. The object store copy
// remains the durable source; the cache entry expires on its own.
type SnapshotCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewSnapshotCache wires a cache over an existing Redis client.
func NewSnapshotCache(client *redis.Client, key string, ttl time.Duration) *SnapshotCache {
	if key == "" {
		key = "apilibrary:snapshot"
	}
	return &SnapshotCache{client: client, key: key, ttl: ttl}
}

// Store writes a snapshot to the cache.
func (c *SnapshotCache) Store(ctx context.Context, snap *Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("caching snapshot: %w", err)
	}
	return nil
}

// Load returns the cached snapshot, or ErrNoSnapshot.
func (c *SnapshotCache) Load(ctx context.Context) (*Snapshot, error) {
	payload, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("reading cached snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("decoding cached snapshot: %w", err)
	}
	return &snap, nil
}

// Invalidate drops the cached snapshot.
func (c *SnapshotCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("invalidating snapshot cache: %w", err)
	}
	return nil
}

// CachedExporter runs exports and mirrors each successful snapshot into the
// cache. Snapshot reads prefer the cache and fall back to a fresh export.
type CachedExporter struct {
	*Exporter
	cache *SnapshotCache
}

// NewCachedExporter decorates an exporter with a snapshot cache.
func NewCachedExporter(exporter *Exporter, cache *SnapshotCache) *CachedExporter {
	return &CachedExporter{Exporter: exporter, cache: cache}
}

// Export runs the underlying export and refreshes the cache. A cache write
// failure is logged but does not fail the export; the object store copy is
// already durable at that point.
func (e *CachedExporter) Export(ctx context.Context) (*Snapshot, error) {
	snap, err := e.Exporter.Export(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.cache.Store(ctx, snap); err != nil {
		e.log.WithError(err).Warn("failed to cache snapshot")
	}
	return snap, nil
}

// Snapshot returns the cached snapshot when present, otherwise exports a
// fresh one.
func (e *CachedExporter) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap, err := e.cache.Load(ctx)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, ErrNoSnapshot) {
		e.log.WithError(err).Warn("snapshot cache read failed")
	}
	return e.Export(ctx)
}
