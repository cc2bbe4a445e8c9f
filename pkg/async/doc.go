// Package async provides the background execution primitives the server
// uses for catalog exports: panic-safe goroutine launch with a timeout,
// and a coalescer that folds bursts of triggers into single runs.
package async
