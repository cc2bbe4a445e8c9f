package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// Field rule errors carry the failing field name so the caller can report
// which part of a change set was rejected.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

var (
	// Deliberately permissive: exactly one '@' with text on both sides.
	// Known weak check, matches what the registration form enforces.
	contactPattern = regexp.MustCompile(`^[^@]+@[^@]+$`)

	yearPattern    = regexp.MustCompile(`^\d{4}$`)
	teamPattern    = regexp.MustCompile(`^[A-Z]$`)
	versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+`)

	// showdown-style markdown renders [text](javascript:...) as a live
	// link, so any parenthesized javascript: payload is rejected outright.
	scriptLinkPattern = regexp.MustCompile(`\(.*javascript:.*\)`)
)

// Terms enumerates the valid academic terms.
var Terms = []string{"A", "B", "C", "D"}

// ValidContact reports whether s looks like an email address.
func ValidContact(s string) bool {
	return contactPattern.MatchString(s)
}

// ValidTerm reports whether s is one of the four academic terms.
func ValidTerm(s string) bool {
	for _, t := range Terms {
		if s == t {
			return true
		}
	}
	return false
}

// ValidYear reports whether s is exactly four decimal digits.
func ValidYear(s string) bool {
	return yearPattern.MatchString(s)
}

// ValidTeam reports whether s is a single uppercase ASCII letter.
func ValidTeam(s string) bool {
	return teamPattern.MatchString(s)
}

// ValidVersion reports whether s begins with a MAJOR.MINOR.PATCH prefix.
// Trailing text after the prefix is allowed; see SplitVersion.
func ValidVersion(s string) bool {
	return versionPattern.MatchString(s)
}

// ValidDescription rejects descriptions carrying a parenthesized
// javascript: payload.
func ValidDescription(s string) bool {
	return !scriptLinkPattern.MatchString(s)
}

// SplitVersion splits a free-text version string into its semantic version
// number and the remaining changelog text. The second return is trimmed of
// leading whitespace. ok is false when no version prefix is present.
func SplitVersion(s string) (number, info string, ok bool) {
	number = versionPattern.FindString(s)
	if number == "" {
		return "", "", false
	}
	info = strings.TrimLeft(strings.Replace(s, number, "", 1), " \t")
	return number, info, true
}
