// Package manifest turns file descriptors into a manifest value.
//
// The pipeline normalizes every descriptor's key and value with the
// configured base and public paths, then applies the configured stages in
// a fixed order: map, filter, sort, reduce. Reduce folds from a deep copy
// of the seed, so the resulting value may be an ordered Object (the
// default), a list, or any other shape a custom reducer produces.
//
// Stage functions are plain function values held in an immutable Config.
// A stage that fails or panics aborts the whole run with a *StageError.
package manifest
