package core

import (
	"path"
)

// Extractor flattens a pass into file descriptors.
//
// Ordering guarantee: chunk files come first in chunk order, then any
// auxiliary assets in asset-set order. The host's chunk order encodes load
// order (shared chunks before their dependents) and is never re-sorted here.
type Extractor struct {
	// Names resolves the logical name of chunk files. Defaults to ChunkNames.
	Names NameResolver
}

// NewExtractor creates an Extractor using ChunkNames.
func NewExtractor() *Extractor {
	return &Extractor{Names: ChunkNames{}}
}

// NewExtractorWithNames creates an Extractor with a custom name resolver.
func NewExtractorWithNames(names NameResolver) *Extractor {
	if names == nil {
		names = ChunkNames{}
	}
	return &Extractor{Names: names}
}

// Extract returns one descriptor per distinct emitted path of the pass.
//
// A pass carrying a build error yields a *PassError and no descriptors.
// When two chunks emit the same path the later chunk's descriptor replaces
// the earlier one in place. A path emitted by any initial chunk stays
// initial.
func (e *Extractor) Extract(p *Pass) ([]FileDescriptor, error) {
	if p != nil && p.Err != nil {
		return nil, &PassError{PassID: p.ID, Err: p.Err}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	names := e.Names
	if names == nil {
		names = ChunkNames{}
	}

	out := make([]FileDescriptor, 0, len(p.Chunks)+len(p.Assets))
	index := make(map[string]int, cap(out))

	put := func(d FileDescriptor) {
		if i, ok := index[d.Path]; ok {
			d.IsInitial = d.IsInitial || out[i].IsInitial
			out[i] = d
			return
		}
		index[d.Path] = len(out)
		out = append(out, d)
	}

	for i := range p.Chunks {
		chunk := &p.Chunks[i]
		for _, file := range chunk.Files {
			put(FileDescriptor{
				Path:      file,
				Name:      names.ResolveName(chunk, file),
				Chunk:     chunk,
				IsInitial: chunk.Initial,
				IsChunk:   true,
			})
		}
	}

	for _, asset := range p.Assets {
		if _, covered := index[asset.Name]; covered {
			continue
		}
		d := FileDescriptor{
			Path:    asset.Name,
			Name:    asset.Name,
			IsAsset: true,
		}
		if asset.Source != "" {
			d.Name = path.Base(asset.Source)
			d.IsModuleAsset = true
		}
		put(d)
	}

	return out, nil
}
