package engine

import "errors"

var (
	// ErrContentType is returned when a decoded payload's sniffed type does
	// not match what the field requires. For archives this aborts the whole
	// update; for images the engine downgrades it to a skipped field.
	ErrContentType = errors.New("content type mismatch")

	// ErrVersionPairing is returned when exactly one of the jar and version
	// fields is present. The two form a single logical unit.
	ErrVersionPairing = errors.New("version and jar file must be provided together")

	// ErrEmptyName is returned when an artifact name contains no
	// alphanumeric characters and therefore yields no artifactId.
	ErrEmptyName = errors.New("name must contain at least one letter or digit")
)
