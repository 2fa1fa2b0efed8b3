// Package dag orders a pass's chunks by their load dependencies.
//
// A ChunkGraph is immutable once built: chunks plus parent links, validated
// to be acyclic. Its topological order is stable with respect to the order
// the host reported the chunks in, so independent chunks keep their
// relative positions and only dependents move behind their parents.
package dag
