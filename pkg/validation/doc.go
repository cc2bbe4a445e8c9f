// Package validation holds the pure field rules applied to artifact change
// sets before any storage mutation.
//
// The rules are intentionally small and side-effect free: contact shape,
// academic term/year/team formats, the MAJOR.MINOR.PATCH version prefix,
// and an anti-XSS guard on free-text descriptions. ParseChanges converts a
// raw string map into the typed Changes set; the set of updatable fields is
// fixed at the type level so a new storage attribute can never become
// updatable by accident.
package validation
