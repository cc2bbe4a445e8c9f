package registry

import (
	"fmt"
	"time"
)

// UserState is the explicit lifecycle of a user account. Accounts are never
// hard-deleted so artifact attribution stays resolvable.
type UserState string

const (
	UserActive  UserState = "active"
	UserDeleted UserState = "deleted"
)

// User is a registered account. PasswordHash is opaque to this package;
// hashing and verification happen in the caller.
type User struct {
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"-"`
	Admin        bool      `json:"admin"`
	Locked       bool      `json:"locked"`
	State        UserState `json:"state"`
	RegisteredAt time.Time `json:"registered_at"`
	LastLoginAt  time.Time `json:"last_login_at"`
}

// Actor is the already-authenticated principal performing an operation.
type Actor struct {
	Username string
	Admin    bool
}

// Artifact is the canonical record of one versioned API. Free-text fields
// (Name, Contact, Description) are HTML-escaped before they reach this
// package. SizeMB reflects the most recent archive upload only, not the sum
// across versions.
type Artifact struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Contact        string         `json:"contact"`
	Description    string         `json:"description"`
	GroupID        string         `json:"group_id"`
	ArtifactID     string         `json:"artifact_id"`
	Term           string         `json:"term"`
	Year           string         `json:"year"`
	Team           string         `json:"team"`
	Creator        string         `json:"creator"`
	CurrentVersion string         `json:"current_version"`
	SizeMB         float64        `json:"size_mb"`
	ImageRef       *string        `json:"image_ref,omitempty"`
	Display        bool           `json:"display"`
	CreatedAt      time.Time      `json:"created_at"`
	LastUpdatedAt  time.Time      `json:"last_updated_at"`
	Versions       []VersionEntry `json:"versions"`
}

// VersionEntry is one accepted release in an artifact's append-only history.
type VersionEntry struct {
	Number     string    `json:"number"`
	Info       string    `json:"info"`
	RecordedAt time.Time `json:"recorded_at"`
}

// GradleCoordinate renders the dependency line published in the catalog.
func (a *Artifact) GradleCoordinate() string {
	return fmt.Sprintf("[group: '%s', name: '%s', version:'%s']", a.GroupID, a.ArtifactID, a.CurrentVersion)
}

// Clone returns a deep copy safe to hand across a mutation boundary.
func (a *Artifact) Clone() *Artifact {
	cp := *a
	if a.ImageRef != nil {
		ref := *a.ImageRef
		cp.ImageRef = &ref
	}
	cp.Versions = make([]VersionEntry, len(a.Versions))
	copy(cp.Versions, a.Versions)
	return &cp
}

// HasVersion reports whether number already exists in the version history.
func (a *Artifact) HasVersion(number string) bool {
	for _, v := range a.Versions {
		if v.Number == number {
			return true
		}
	}
	return false
}
