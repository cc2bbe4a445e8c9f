package registry

import (
	"context"
	"time"
)

// Mutator exposes the closed set of field mutations an update may perform.
// The engine sequences calls against it inside Registry.Update; nothing is
// durable until Update's callback returns nil. There is deliberately no
// generic SetField(name, value): every updatable attribute has its own
// setter so the whitelist lives in the type system.
type Mutator interface {
	// Artifact returns the working copy, reflecting any setters already
	// applied in this mutation.
	Artifact() *Artifact

	SetName(string)
	SetContact(string)
	SetDescription(string)
	SetTerm(string)
	SetYear(string)
	SetTeam(string)
	SetImageRef(*string)
	SetDisplay(bool)

	// AppendVersion adds an entry to the version history and fails with
	// ErrDuplicateVersion if the number was already recorded.
	AppendVersion(VersionEntry) error

	SetCurrentVersion(string)
	SetSizeMB(float64)
	Touch(time.Time)
}

// Registry owns the durable record of users and artifacts. Mutating
// artifact operations authorize the actor first: the actor must be the
// record's creator or an admin, and a missing record yields the same
// ErrOwnership as a foreign one.
type Registry interface {
	// User operations.
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	SoftDeleteUser(ctx context.Context, username string) error
	TouchLogin(ctx context.Context, username string, at time.Time) error
	SetAdmin(ctx context.Context, username string, admin bool) error
	SetLocked(ctx context.Context, username string, locked bool) error

	// Artifact operations.
	CreateArtifact(ctx context.Context, artifact *Artifact) error
	GetArtifact(ctx context.Context, id string) (*Artifact, error)
	LookupArtifact(ctx context.Context, groupID, artifactID string) (string, error)
	Update(ctx context.Context, actor Actor, id string, fn func(Mutator) error) error
	SoftDeleteArtifact(ctx context.Context, actor Actor, id string) error
	ListForExport(ctx context.Context) ([]*Artifact, error)

	Close() error
}

// mutator is the shared Mutator implementation. Both backends run the
// update callback against a private clone; the backend then makes the
// clone durable in its own way.
type mutator struct {
	artifact *Artifact
	appended []VersionEntry
}

func (m *mutator) Artifact() *Artifact     { return m.artifact }
func (m *mutator) SetName(v string)        { m.artifact.Name = v }
func (m *mutator) SetContact(v string)     { m.artifact.Contact = v }
func (m *mutator) SetDescription(v string) { m.artifact.Description = v }
func (m *mutator) SetTerm(v string)        { m.artifact.Term = v }
func (m *mutator) SetYear(v string)        { m.artifact.Year = v }
func (m *mutator) SetTeam(v string)        { m.artifact.Team = v }
func (m *mutator) SetImageRef(ref *string) { m.artifact.ImageRef = ref }
func (m *mutator) SetDisplay(v bool)       { m.artifact.Display = v }

func (m *mutator) AppendVersion(entry VersionEntry) error {
	if m.artifact.HasVersion(entry.Number) {
		return ErrDuplicateVersion
	}
	m.artifact.Versions = append(m.artifact.Versions, entry)
	m.appended = append(m.appended, entry)
	return nil
}

func (m *mutator) SetCurrentVersion(v string) { m.artifact.CurrentVersion = v }
func (m *mutator) SetSizeMB(v float64)        { m.artifact.SizeMB = v }
func (m *mutator) Touch(t time.Time)          { m.artifact.LastUpdatedAt = t }

// authorize applies the uniform ownership rule.
func authorize(actor Actor, artifact *Artifact) error {
	if artifact == nil || !artifact.Display {
		return ErrOwnership
	}
	if !actor.Admin && artifact.Creator != actor.Username {
		return ErrOwnership
	}
	return nil
}
