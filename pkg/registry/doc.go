// Package registry owns the durable record of users and artifacts with
// their version histories.
//
// Two backends implement the Registry interface: MemoryRegistry for tests
// and single-node deployments, and SQLRegistry for PostgreSQL (SQLite in
// tests). CachedRegistry layers an LRU read cache over either.
//
// Mutations go through Registry.Update, which authorizes the actor,
// resolves the artifact and runs the caller's callback against a Mutator,
// a fixed set of typed field setters plus AppendVersion. A failing callback
// commits nothing: the SQL backend wraps the mutation in a transaction and
// the memory backend swaps in a clone only on success. There is no
// by-field-name update path anywhere; an attribute that should never be
// caller-writable simply has no setter.
package registry
