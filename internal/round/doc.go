// Package round merges per-pass manifest values into one manifest per build
// round and emits it once every registered pass has reported.
//
// A round starts empty, absorbs one contribution per pass ID (a repeated ID
// replaces the earlier contribution) and is serialized and reset by the
// pass whose report completed it.
package round
