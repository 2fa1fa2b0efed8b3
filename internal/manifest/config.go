package manifest

import (
	"errors"
	"fmt"
	"strings"

	"assetmanifest/internal/core"
)

// DefaultFileName is the manifest artifact name used when none is set.
const DefaultFileName = "manifest.json"

// MapFunc rewrites a descriptor. i is its position in the normalized
// sequence.
type MapFunc func(d core.FileDescriptor, i int) core.FileDescriptor

// FilterFunc keeps descriptors it returns true for.
type FilterFunc func(d core.FileDescriptor) bool

// SortFunc compares two descriptors. It is consulted as cmp(earlier, later);
// a positive result moves later ahead of earlier.
type SortFunc func(a, b core.FileDescriptor) int

// ReduceFunc folds one descriptor into the accumulator and returns the new
// accumulator.
type ReduceFunc func(acc any, d core.FileDescriptor) (any, error)

// Serializer encodes a manifest value into the artifact's bytes.
type Serializer func(v any) ([]byte, error)

// Config is the immutable per-plugin pipeline configuration. The zero
// value is usable: default file name, no prefixes, identity stages,
// object reduce, JSON serialization.
type Config struct {
	// FileName is the artifact path, relative to the output root unless
	// absolute.
	FileName string

	// BasePath prefixes manifest keys.
	BasePath string

	// PublicPath prefixes manifest values.
	PublicPath string

	// Seed is the initial accumulator. Nil means an empty Object. It is
	// deep-copied before every use and never mutated.
	Seed any

	Map    MapFunc
	Filter FilterFunc
	Sort   SortFunc
	Reduce ReduceFunc

	// Serialize encodes the merged value. Defaults to SerializeJSON.
	Serialize Serializer

	// Precompress additionally emits a gzip copy named FileName + ".gz".
	Precompress bool

	// WriteToFileEmit asks hosts that normally keep assets in memory
	// (dry runs, dev servers) to write the manifest to disk anyway.
	WriteToFileEmit bool

	// Cache is an externally owned accumulator retained across rounds.
	//
	// Deprecated: use Seed. Kept for configurations that share one
	// manifest object between several plugin instances.
	Cache *Cache
}

// WithDefaults returns a copy of c with unset fields defaulted.
func (c Config) WithDefaults() Config {
	if strings.TrimSpace(c.FileName) == "" {
		c.FileName = DefaultFileName
	}
	if c.Serialize == nil {
		c.Serialize = SerializeJSON
	}
	return c
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.FileName) == "" {
		errs = append(errs, errors.New("fileName is required"))
	}
	if c.Reduce == nil && c.Seed != nil && !IsObjectShaped(c.Seed) {
		errs = append(errs, fmt.Errorf("seed of type %T needs a custom reduce", c.Seed))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Reducer returns the configured reduce, or ReduceObject.
func (c Config) Reducer() ReduceFunc {
	if c.Reduce == nil {
		return ReduceObject
	}
	return c.Reduce
}

// NewSeed returns a fresh deep copy of the seed.
func (c Config) NewSeed() any {
	if c.Seed == nil {
		return NewObject()
	}
	return DeepCopy(c.Seed)
}
