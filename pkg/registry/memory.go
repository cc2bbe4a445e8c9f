package registry

import (
	"context"
	"sync"
	"time"
)

// MemoryRegistry is an in-process Registry used by tests and single-node
// deployments. A single mutex guards all state; an artifact is located and
// written inside the same critical section, so there is no window for a
// concurrent delete to invalidate a previously resolved position.
type MemoryRegistry struct {
	mu        sync.RWMutex
	users     map[string]*User
	artifacts map[string]*Artifact
	coords    map[string]string // groupID+"\x00"+artifactID -> id, displayed only
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		users:     make(map[string]*User),
		artifacts: make(map[string]*Artifact),
		coords:    make(map[string]string),
	}
}

func coordKey(groupID, artifactID string) string {
	return groupID + "\x00" + artifactID
}

// CreateUser implements Registry.CreateUser.
func (r *MemoryRegistry) CreateUser(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Username]; ok {
		return ErrUserExists
	}
	cp := *user
	r.users[user.Username] = &cp
	return nil
}

// GetUser implements Registry.GetUser.
func (r *MemoryRegistry) GetUser(_ context.Context, username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[username]
	if !ok || user.State != UserActive {
		return nil, ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

// ListUsers implements Registry.ListUsers. Deleted accounts are omitted.
func (r *MemoryRegistry) ListUsers(_ context.Context) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var users []*User
	for _, user := range r.users {
		if user.State != UserActive {
			continue
		}
		cp := *user
		users = append(users, &cp)
	}
	return users, nil
}

// SoftDeleteUser implements Registry.SoftDeleteUser. The account keeps its
// username so artifact attribution stays resolvable; its artifacts are
// undisplayed.
func (r *MemoryRegistry) SoftDeleteUser(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	if !ok || user.State != UserActive {
		return ErrUserNotFound
	}
	user.State = UserDeleted
	for id, artifact := range r.artifacts {
		if artifact.Creator == username && artifact.Display {
			artifact.Display = false
			delete(r.coords, coordKey(artifact.GroupID, artifact.ArtifactID))
			r.artifacts[id] = artifact
		}
	}
	return nil
}

// TouchLogin implements Registry.TouchLogin.
func (r *MemoryRegistry) TouchLogin(_ context.Context, username string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	if !ok || user.State != UserActive {
		return ErrUserNotFound
	}
	user.LastLoginAt = at
	return nil
}

// SetAdmin implements Registry.SetAdmin.
func (r *MemoryRegistry) SetAdmin(_ context.Context, username string, admin bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	if !ok || user.State != UserActive {
		return ErrUserNotFound
	}
	user.Admin = admin
	return nil
}

// SetLocked implements Registry.SetLocked.
func (r *MemoryRegistry) SetLocked(_ context.Context, username string, locked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	if !ok || user.State != UserActive {
		return ErrUserNotFound
	}
	user.Locked = locked
	return nil
}

// CreateArtifact implements Registry.CreateArtifact.
func (r *MemoryRegistry) CreateArtifact(_ context.Context, artifact *Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.coords[coordKey(artifact.GroupID, artifact.ArtifactID)]; ok {
		return ErrDuplicateCoordinates
	}
	cp := artifact.Clone()
	r.artifacts[cp.ID] = cp
	if cp.Display {
		r.coords[coordKey(cp.GroupID, cp.ArtifactID)] = cp.ID
	}
	return nil
}

// GetArtifact implements Registry.GetArtifact. Undisplayed records read as
// absent.
func (r *MemoryRegistry) GetArtifact(_ context.Context, id string) (*Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	artifact, ok := r.artifacts[id]
	if !ok || !artifact.Display {
		return nil, ErrNotFound
	}
	return artifact.Clone(), nil
}

// LookupArtifact implements Registry.LookupArtifact.
func (r *MemoryRegistry) LookupArtifact(_ context.Context, groupID, artifactID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.coords[coordKey(groupID, artifactID)]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

// Update implements Registry.Update. The callback runs against a clone
// under the registry lock; if it fails, nothing is committed.
func (r *MemoryRegistry) Update(_ context.Context, actor Actor, id string, fn func(Mutator) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	artifact := r.artifacts[id]
	if err := authorize(actor, artifact); err != nil {
		return err
	}

	m := &mutator{artifact: artifact.Clone()}
	if err := fn(m); err != nil {
		return err
	}

	r.artifacts[id] = m.artifact
	if artifact.Display && !m.artifact.Display {
		delete(r.coords, coordKey(artifact.GroupID, artifact.ArtifactID))
	}
	return nil
}

// SoftDeleteArtifact implements Registry.SoftDeleteArtifact. Version
// history and published archives survive; only the display flag and the
// image reference change.
func (r *MemoryRegistry) SoftDeleteArtifact(ctx context.Context, actor Actor, id string) error {
	return r.Update(ctx, actor, id, func(m Mutator) error {
		m.SetDisplay(false)
		m.SetImageRef(nil)
		return nil
	})
}

// ListForExport implements Registry.ListForExport.
func (r *MemoryRegistry) ListForExport(_ context.Context) ([]*Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var artifacts []*Artifact
	for _, artifact := range r.artifacts {
		if artifact.Display {
			artifacts = append(artifacts, artifact.Clone())
		}
	}
	return artifacts, nil
}

// Close implements Registry.Close.
func (r *MemoryRegistry) Close() error { return nil }
