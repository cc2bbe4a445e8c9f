// Package blob provides the binary artifact store: opaque byte blobs
// (artifact images, jars, generated repository files) keyed by string,
// backed by the local filesystem, an S3-compatible bucket, or process
// memory for tests.
//
// The package also owns content sniffing. Classify determines a payload's
// MIME type from its magic bytes alone; uploaded filenames and declared
// content types are never trusted. IsImage and IsArchive gate the two
// upload paths the engine accepts.
package blob
