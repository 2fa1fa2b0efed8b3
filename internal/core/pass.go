package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPassFailed marks a pass whose build reported an error.
	ErrPassFailed = errors.New("build pass failed")

	// ErrInvalidPass marks structurally invalid pass metadata.
	ErrInvalidPass = errors.New("invalid build pass")
)

// Chunk is a build-engine grouping of modules emitted as one or more files.
type Chunk struct {
	// ID identifies the chunk within its pass. Parents refer to IDs.
	ID string `json:"id"`

	// Name is the configured chunk name. Empty for nameless chunks
	// (async splits without a chunk name).
	Name string `json:"name,omitempty"`

	// Hash is the chunk's content hash.
	Hash string `json:"hash,omitempty"`

	// Initial reports whether the chunk is reachable from an entry point
	// without crossing an asynchronous split point.
	Initial bool `json:"initial"`

	// Files lists the emitted paths relative to the output root, in the
	// order the engine emitted them.
	Files []string `json:"files"`

	// Parents lists upstream chunk IDs that must load before this one.
	Parents []string `json:"parents,omitempty"`
}

// Asset is an emitted file that is not a chunk file.
type Asset struct {
	// Name is the emitted path relative to the output root.
	Name string `json:"name"`

	// Source is the request path of the module that emitted the asset,
	// if any (e.g. "./fixtures/file.txt" for a file-loader output).
	Source string `json:"source,omitempty"`
}

// Pass is the completed output metadata of one build pass.
type Pass struct {
	// ID is the stable identity of the pass within a round, typically the
	// build target name. Re-reporting the same ID replaces the previous
	// contribution.
	ID string

	// Hash is the pass (compilation) hash.
	Hash string

	// Chunks is the chunk collection in engine dependency order.
	Chunks []Chunk

	// Assets is the pass's final asset set. Entries already covered by a
	// chunk's files are ignored by the Extractor.
	Assets []Asset

	// Err is the build error reported by the engine for this pass.
	Err error
}

// PassError wraps a build failure reported for a pass.
type PassError struct {
	PassID string
	Err    error
}

func (e *PassError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s: %v", ErrPassFailed.Error(), e.PassID, e.Err)
}

// Unwrap exposes both the classification and the engine's own error.
func (e *PassError) Unwrap() []error { return []error{ErrPassFailed, e.Err} }

// Validate checks the pass for metadata the Extractor relies on.
func (p *Pass) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil pass", ErrInvalidPass)
	}
	var errs []error
	if strings.TrimSpace(p.ID) == "" {
		errs = append(errs, errors.New("pass id is required"))
	}
	seen := make(map[string]struct{}, len(p.Chunks))
	for i, c := range p.Chunks {
		if c.ID == "" {
			errs = append(errs, fmt.Errorf("chunks[%d].id is required", i))
			continue
		}
		if _, dup := seen[c.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate chunk id %q", c.ID))
		}
		seen[c.ID] = struct{}{}
		for j, f := range c.Files {
			if f == "" {
				errs = append(errs, fmt.Errorf("chunks[%d].files[%d] is empty", i, j))
			}
		}
	}
	for i, a := range p.Assets {
		if a.Name == "" {
			errs = append(errs, fmt.Errorf("assets[%d].name is required", i))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidPass, errors.Join(errs...))
}
