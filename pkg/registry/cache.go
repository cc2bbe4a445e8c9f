package registry

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedRegistry decorates a Registry with an in-process LRU over artifact
// reads. Mutations invalidate the affected entry, so a single process
// always reads its own writes; cross-process staleness is bounded by the
// cache being read-mostly and small.
type CachedRegistry struct {
	Registry
	artifacts *lru.Cache[string, *Artifact]
}

// NewCachedRegistry wraps inner with an artifact read cache of the given
// capacity.
func NewCachedRegistry(inner Registry, size int) (*CachedRegistry, error) {
	cache, err := lru.New[string, *Artifact](size)
	if err != nil {
		return nil, err
	}
	return &CachedRegistry{Registry: inner, artifacts: cache}, nil
}

// GetArtifact implements Registry.GetArtifact with read-through caching.
func (c *CachedRegistry) GetArtifact(ctx context.Context, id string) (*Artifact, error) {
	if a, ok := c.artifacts.Get(id); ok {
		return a.Clone(), nil
	}
	a, err := c.Registry.GetArtifact(ctx, id)
	if err != nil {
		return nil, err
	}
	c.artifacts.Add(id, a.Clone())
	return a, nil
}

// Update implements Registry.Update, invalidating the cached record.
func (c *CachedRegistry) Update(ctx context.Context, actor Actor, id string, fn func(Mutator) error) error {
	err := c.Registry.Update(ctx, actor, id, fn)
	if err == nil {
		c.artifacts.Remove(id)
	}
	return err
}

// SoftDeleteArtifact implements Registry.SoftDeleteArtifact, invalidating
// the cached record.
func (c *CachedRegistry) SoftDeleteArtifact(ctx context.Context, actor Actor, id string) error {
	err := c.Registry.SoftDeleteArtifact(ctx, actor, id)
	if err == nil {
		c.artifacts.Remove(id)
	}
	return err
}

// SoftDeleteUser implements Registry.SoftDeleteUser. The user's artifacts
// all leave the displayed set, so the whole cache is dropped.
func (c *CachedRegistry) SoftDeleteUser(ctx context.Context, username string) error {
	err := c.Registry.SoftDeleteUser(ctx, username)
	if err == nil {
		c.artifacts.Purge()
	}
	return err
}
