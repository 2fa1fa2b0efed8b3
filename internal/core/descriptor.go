package core

// FileDescriptor is one manifest candidate: a single emitted file.
//
// After path normalization Name holds the manifest key and Path the
// manifest value; map stages may rewrite either.
type FileDescriptor struct {
	// Path is the emitted path relative to the output root.
	Path string

	// Name is the logical identifier. Equal to Path for nameless chunks
	// and plain auxiliary assets.
	Name string

	// Chunk points at the originating chunk. Nil for auxiliary assets.
	// The pointer is borrowed from the Pass and must not be mutated.
	Chunk *Chunk

	IsInitial     bool
	IsChunk       bool
	IsAsset       bool
	IsModuleAsset bool
}

// ChunkHash returns the originating chunk's hash, or "" for assets.
func (d FileDescriptor) ChunkHash() string {
	if d.Chunk == nil {
		return ""
	}
	return d.Chunk.Hash
}
