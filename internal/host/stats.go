package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tidwall/jsonc"

	"assetmanifest/internal/core"
	"assetmanifest/internal/dag"
)

// Stats is a build-stats document. Comments and trailing commas are
// accepted.
//
//	{
//	  "hash": "4f1c...",
//	  "outputDir": "dist",
//	  "template": "[name].[contenthash:8].js",
//	  "chunks": [{"id": "main", "name": "main", "initial": true, "files": ["main.1a2b.js"]}],
//	  "assets": [{"name": "logo.png", "source": "./src/logo.png"}],
//	  "errors": []
//	}
type Stats struct {
	Hash      string       `json:"hash,omitempty"`
	OutputDir string       `json:"outputDir,omitempty"`
	Template  string       `json:"template,omitempty"`
	Chunks    []core.Chunk `json:"chunks"`
	Assets    []core.Asset `json:"assets,omitempty"`
	Errors    []string     `json:"errors,omitempty"`

	// Path is the file the stats were read from.
	Path string `json:"-"`
}

// ParseStats decodes a JSON or JSONC stats document.
func ParseStats(data []byte) (*Stats, error) {
	var s Stats
	if err := json.Unmarshal(jsonc.ToJSON(data), &s); err != nil {
		return nil, fmt.Errorf("parsing stats: %w", err)
	}
	return &s, nil
}

// LoadStats reads and parses the stats file at path. A relative OutputDir
// is resolved against the file's directory; an empty one means that
// directory.
func LoadStats(path string) (*Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}
	s, err := ParseStats(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Path = path
	dir := filepath.Dir(path)
	switch {
	case s.OutputDir == "":
		s.OutputDir = dir
	case !filepath.IsAbs(s.OutputDir):
		s.OutputDir = filepath.Join(dir, filepath.FromSlash(s.OutputDir))
	}
	return s, nil
}

// Pass converts the stats into a pass named id with chunks ordered parents
// first. Reported build errors become the pass error and skip graph
// validation, since a failed build may list incomplete chunks.
func (s *Stats) Pass(id string) (*core.Pass, *dag.ChunkGraph, error) {
	p := &core.Pass{
		ID:     id,
		Hash:   s.Hash,
		Assets: slices.Clone(s.Assets),
	}
	if len(s.Errors) > 0 {
		p.Chunks = slices.Clone(s.Chunks)
		p.Err = errors.New(strings.Join(s.Errors, "\n"))
		return p, nil, nil
	}

	g, err := dag.NewChunkGraph(s.Chunks)
	if err != nil {
		return nil, nil, fmt.Errorf("pass %s: %w", id, err)
	}
	p.Chunks = g.Ordered()
	if p.Hash == "" {
		p.Hash = g.Hash().String()
	}
	return p, g, nil
}

// TargetIDFromPath derives a pass ID from a stats file name by dropping
// the directory and extension ("web/stats.json" becomes "stats").
func TargetIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
