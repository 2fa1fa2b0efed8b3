package manifest

import (
	"fmt"
	"strings"

	"assetmanifest/internal/core"
)

// ReduceObject upserts Name -> Path into an *Object or map[string]any
// accumulator. It is the default reduce.
func ReduceObject(acc any, d core.FileDescriptor) (any, error) {
	switch m := acc.(type) {
	case *Object:
		m.Set(d.Name, d.Path)
		return m, nil
	case map[string]any:
		m[d.Name] = d.Path
		return m, nil
	default:
		return nil, fmt.Errorf("%w: object reduce got %T", ErrAccumulatorShape, acc)
	}
}

// ReduceList appends each descriptor's Name to a []any accumulator.
func ReduceList(acc any, d core.FileDescriptor) (any, error) {
	switch l := acc.(type) {
	case nil:
		return []any{d.Name}, nil
	case []any:
		return append(l, d.Name), nil
	default:
		return nil, fmt.Errorf("%w: list reduce got %T", ErrAccumulatorShape, acc)
	}
}

// ReduceDetailed maps Name to an object carrying the emitted file and its
// chunk hash.
func ReduceDetailed(acc any, d core.FileDescriptor) (any, error) {
	entry := ObjectOf("file", d.Path, "hash", d.ChunkHash(), "initial", d.IsInitial)
	switch m := acc.(type) {
	case *Object:
		m.Set(d.Name, entry)
		return m, nil
	case map[string]any:
		m[d.Name] = entry
		return m, nil
	default:
		return nil, fmt.Errorf("%w: detailed reduce got %T", ErrAccumulatorShape, acc)
	}
}

// FilterInitial keeps files of initial chunks.
func FilterInitial(d core.FileDescriptor) bool { return d.IsInitial }

// FilterChunks keeps chunk files and drops auxiliary assets.
func FilterChunks(d core.FileDescriptor) bool { return d.IsChunk }

// SortByKey orders descriptors by manifest key.
func SortByKey(a, b core.FileDescriptor) int { return strings.Compare(a.Name, b.Name) }

// SortReverse reverses the extractor order.
func SortReverse(a, b core.FileDescriptor) int { return 1 }
