package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Harvester discovers emitted files in an output directory that the host
// did not report, so they can join a pass as auxiliary assets.
//
// Discovery is deterministic: paths are slash-separated, relative to
// OutputDir and sorted. Filesystem ordering is never relied on.
type Harvester struct {
	// OutputDir is the build's output root.
	OutputDir string

	// Exclude lists relative paths never reported (the manifest itself,
	// stats files written next to the output).
	Exclude []string
}

// NewHarvester creates a Harvester for outputDir.
func NewHarvester(outputDir string, exclude ...string) *Harvester {
	return &Harvester{OutputDir: outputDir, Exclude: exclude}
}

// Harvest returns every file under OutputDir not already declared by the
// pass, as assets without a source module.
func (h *Harvester) Harvest(p *Pass) ([]Asset, error) {
	declared := make(map[string]struct{})
	for _, c := range p.Chunks {
		for _, f := range c.Files {
			declared[filepath.ToSlash(f)] = struct{}{}
		}
	}
	for _, a := range p.Assets {
		declared[filepath.ToSlash(a.Name)] = struct{}{}
	}
	for _, x := range h.Exclude {
		declared[filepath.ToSlash(x)] = struct{}{}
	}

	files, err := h.collectFiles()
	if err != nil {
		return nil, fmt.Errorf("harvesting %q: %w", h.OutputDir, err)
	}

	var assets []Asset
	for _, rel := range files {
		if _, ok := declared[rel]; ok {
			continue
		}
		assets = append(assets, Asset{Name: rel})
	}
	return assets, nil
}

// collectFiles returns all regular files under OutputDir, relative and
// sorted.
func (h *Harvester) collectFiles() ([]string, error) {
	var files []string

	err := filepath.WalkDir(h.OutputDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(h.OutputDir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	sort.Strings(files)
	return deduplicateSorted(files), nil
}

// deduplicateSorted removes duplicates from a sorted slice.
func deduplicateSorted(sorted []string) []string {
	if len(sorted) == 0 {
		return sorted
	}

	result := make([]string, 0, len(sorted))
	result = append(result, sorted[0])

	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			result = append(result, sorted[i])
		}
	}

	return result
}
