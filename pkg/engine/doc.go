// Package engine orchestrates artifact lifecycle operations for the API
// library: creation with coordinate derivation, the ordered update sequence
// over scalar fields, image uploads and archive releases, and soft deletes.
//
// Update semantics are deliberately asymmetric. A payload sent as an image
// that does not sniff as one is skipped with a warning while the rest of
// the update proceeds; an archive that does not sniff as zip or jar aborts
// the entire update including already-applied scalar changes. Accepted
// archives flow straight into the maven repository synthesizer so the
// published layout never lags the catalog.
package engine
