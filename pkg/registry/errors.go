package registry

import "errors"

var (
	// ErrOwnership covers both a missing artifact and an artifact owned by
	// someone else. Mutating operations return one shape for both so a
	// caller cannot probe for the existence of other users' records.
	ErrOwnership = errors.New("couldn't verify user ownership of API")

	// ErrNotFound is returned by read operations for an absent or
	// undisplayed artifact.
	ErrNotFound = errors.New("API not found")

	// ErrDuplicateCoordinates is returned when a created artifact's
	// (groupId, artifactId) pair collides with a displayed record.
	ErrDuplicateCoordinates = errors.New("API with that artifact+groupID already exists")

	// ErrDuplicateVersion is returned when a version number is resubmitted
	// for the same artifact. History entries are never overwritten.
	ErrDuplicateVersion = errors.New("duplicate version")

	// ErrUserExists is returned when registering an already-taken username.
	ErrUserExists = errors.New("user already exists")

	// ErrUserNotFound is returned for operations on an absent or deleted
	// user account.
	ErrUserNotFound = errors.New("user not found")
)
