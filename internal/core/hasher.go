package core

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// ContentHasher computes chunk hashes from emitted file contents for hosts
// that do not report them.
//
// The hash covers every file of the chunk in declared order, each
// length-prefixed so that moving bytes between files changes the hash.
type ContentHasher struct {
	// OutputDir is the directory chunk files are relative to.
	OutputDir string

	// Length truncates the hex digest. Zero keeps the full 64 characters.
	Length int
}

// NewContentHasher creates a hasher rooted at outputDir with 20-character
// digests.
func NewContentHasher(outputDir string) *ContentHasher {
	return &ContentHasher{OutputDir: outputDir, Length: 20}
}

// HashChunk returns the content hash of the chunk's files.
func (h *ContentHasher) HashChunk(c *Chunk) (string, error) {
	hasher := blake3.New()

	writeField := func(data []byte) {
		length := uint64(len(data))
		lengthBytes := []byte{
			byte(length >> 56),
			byte(length >> 48),
			byte(length >> 40),
			byte(length >> 32),
			byte(length >> 24),
			byte(length >> 16),
			byte(length >> 8),
			byte(length),
		}
		hasher.Write(lengthBytes)
		hasher.Write(data)
	}

	for _, file := range c.Files {
		full := file
		if !filepath.IsAbs(file) {
			full = filepath.Join(h.OutputDir, filepath.FromSlash(file))
		}
		content, err := os.ReadFile(full)
		if err != nil {
			return "", fmt.Errorf("hashing chunk %q: %w", c.ID, err)
		}
		writeField([]byte(file))
		writeField(content)
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	if h.Length > 0 && h.Length < len(sum) {
		sum = sum[:h.Length]
	}
	return sum, nil
}

// FillMissing sets Hash on every chunk of p that has none.
func (h *ContentHasher) FillMissing(p *Pass) error {
	for i := range p.Chunks {
		if p.Chunks[i].Hash != "" {
			continue
		}
		sum, err := h.HashChunk(&p.Chunks[i])
		if err != nil {
			return err
		}
		p.Chunks[i].Hash = sum
	}
	return nil
}

// HashBytes returns the full blake3 hex digest of data.
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
