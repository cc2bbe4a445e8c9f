package validation

import (
	"errors"
	"fmt"
)

// ErrUnknownField is returned when a change set contains a key outside the
// closed set of updatable fields. The whole request is rejected, not just
// the offending key: field names map directly onto storage attributes, so
// an unrecognized key is treated as an injection attempt.
var ErrUnknownField = errors.New("illegal change argument")

// Changes is the closed set of fields an update may touch. Absent fields
// are nil. Image and Jar hold base64 text as received from the caller;
// they are decoded and content-sniffed by the engine, not validated here.
type Changes struct {
	Name        *string
	Contact     *string
	Description *string
	Term        *string
	Year        *string
	Team        *string
	Version     *string
	Image       *string
	Jar         *string
}

// ParseChanges converts a raw field map into a typed change set. Every key
// must name a known field; anything else fails with ErrUnknownField.
func ParseChanges(raw map[string]string) (*Changes, error) {
	ch := &Changes{}
	for key, value := range raw {
		v := value
		switch key {
		case "name":
			ch.Name = &v
		case "contact":
			ch.Contact = &v
		case "description":
			ch.Description = &v
		case "term":
			ch.Term = &v
		case "year":
			ch.Year = &v
		case "team":
			ch.Team = &v
		case "version":
			ch.Version = &v
		case "image":
			ch.Image = &v
		case "jar":
			ch.Jar = &v
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, key)
		}
	}
	return ch, nil
}

// Validate applies the field rules to every present scalar field. Image and
// Jar are skipped; binary payloads are gated by content sniffing instead.
func (c *Changes) Validate() error {
	if c.Contact != nil && !ValidContact(*c.Contact) {
		return &FieldError{Field: "contact", Reason: "must contain exactly one '@' with text on both sides"}
	}
	if c.Term != nil && !ValidTerm(*c.Term) {
		return &FieldError{Field: "term", Reason: "must be one of A, B, C, D"}
	}
	if c.Year != nil && !ValidYear(*c.Year) {
		return &FieldError{Field: "year", Reason: "must be exactly four digits"}
	}
	if c.Team != nil && !ValidTeam(*c.Team) {
		return &FieldError{Field: "team", Reason: "must be a single uppercase letter"}
	}
	if c.Version != nil && !ValidVersion(*c.Version) {
		return &FieldError{Field: "version", Reason: "must begin with MAJOR.MINOR.PATCH"}
	}
	if c.Description != nil && !ValidDescription(*c.Description) {
		return &FieldError{Field: "description", Reason: "contains a javascript: link payload"}
	}
	return nil
}
