// Package host drives manifest rounds from build-stats documents on disk.
//
// Each Target names a stats file written by a bundler run. A Build loads
// every target concurrently, turns each into a core.Pass, runs the round
// hooks and writes the manifest next to the build output.
package host
