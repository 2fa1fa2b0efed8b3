package core

import (
	"errors"
	"testing"
)

func paths(ds []FileDescriptor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Path
	}
	return out
}

func TestExtract_NamedChunkWithHashAndSourceMap(t *testing.T) {
	p := &Pass{
		ID: "web",
		Chunks: []Chunk{{
			ID:      "0",
			Name:    "one",
			Hash:    "h1",
			Initial: true,
			Files:   []string{"one.h1.js", "one.h1.js.map"},
		}},
	}

	ds, err := NewExtractor().Extract(p)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(ds) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(ds))
	}
	if ds[0].Name != "one.js" || ds[0].Path != "one.h1.js" {
		t.Errorf("unexpected js descriptor: %+v", ds[0])
	}
	if ds[1].Name != "one.js.map" || ds[1].Path != "one.h1.js.map" {
		t.Errorf("unexpected map descriptor: %+v", ds[1])
	}
	for _, d := range ds {
		if !d.IsChunk || d.IsAsset || !d.IsInitial {
			t.Errorf("unexpected flags: %+v", d)
		}
		if d.ChunkHash() != "h1" {
			t.Errorf("expected chunk hash h1, got %q", d.ChunkHash())
		}
	}
}

func TestExtract_NamelessChunkUsesPath(t *testing.T) {
	p := &Pass{
		ID: "web",
		Chunks: []Chunk{
			{ID: "0", Name: "nameless", Initial: true, Files: []string{"nameless.h1.js"}},
			{ID: "1", Files: []string{"1.h1.js"}},
		},
	}

	ds, err := NewExtractor().Extract(p)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if ds[1].Name != "1.h1.js" {
		t.Fatalf("expected nameless chunk to be named by path, got %q", ds[1].Name)
	}
	if ds[1].IsInitial {
		t.Fatalf("async chunk must not be initial")
	}
}

func TestExtract_PreservesChunkOrder(t *testing.T) {
	p := &Pass{
		ID: "web",
		Chunks: []Chunk{
			{ID: "c", Name: "common", Files: []string{"common.js"}},
			{ID: "v", Name: "vendor", Files: []string{"vendor.js"}, Parents: []string{"c"}},
			{ID: "m", Name: "main", Files: []string{"main.js"}, Parents: []string{"c"}},
		},
	}

	ds, err := NewExtractor().Extract(p)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	got := paths(ds)
	want := []string{"common.js", "vendor.js", "main.js"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch: got %v want %v", got, want)
		}
	}
}

func TestExtract_DuplicatePathLastWriteWins(t *testing.T) {
	p := &Pass{
		ID: "web",
		Chunks: []Chunk{
			{ID: "a", Name: "a", Initial: true, Files: []string{"shared.js", "a.js"}},
			{ID: "b", Name: "b", Files: []string{"shared.js"}},
		},
	}

	ds, err := NewExtractor().Extract(p)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(ds) != 2 {
		t.Fatalf("expected 2 descriptors, got %v", paths(ds))
	}
	if ds[0].Path != "shared.js" || ds[0].Chunk.ID != "b" {
		t.Fatalf("expected later chunk to own shared.js in first position, got %+v", ds[0])
	}
	if !ds[0].IsInitial {
		t.Fatalf("shared.js is emitted by an initial chunk and must stay initial")
	}
}

func TestExtract_AuxiliaryAssets(t *testing.T) {
	p := &Pass{
		ID: "web",
		Chunks: []Chunk{
			{ID: "0", Name: "main", Initial: true, Files: []string{"main.js"}},
		},
		Assets: []Asset{
			{Name: "main.js"},
			{Name: "outputfile.txt", Source: "./fixtures/file.txt"},
			{Name: "robots.txt"},
		},
	}

	ds, err := NewExtractor().Extract(p)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(ds) != 3 {
		t.Fatalf("expected chunk-covered asset to be skipped, got %v", paths(ds))
	}
	mod := ds[1]
	if mod.Name != "file.txt" || mod.Path != "outputfile.txt" || !mod.IsModuleAsset || !mod.IsAsset || mod.IsChunk {
		t.Fatalf("unexpected module asset descriptor: %+v", mod)
	}
	if ds[2].Name != "robots.txt" || ds[2].Chunk != nil {
		t.Fatalf("unexpected plain asset descriptor: %+v", ds[2])
	}
}

func TestExtract_FailedPassYieldsNothing(t *testing.T) {
	buildErr := errors.New("module not found: ./missing")
	p := &Pass{ID: "web", Err: buildErr, Chunks: []Chunk{{ID: "0", Files: []string{"main.js"}}}}

	ds, err := NewExtractor().Extract(p)
	if ds != nil {
		t.Fatalf("expected no descriptors, got %v", paths(ds))
	}
	if !errors.Is(err, ErrPassFailed) {
		t.Fatalf("expected ErrPassFailed, got %v", err)
	}
	if !errors.Is(err, buildErr) {
		t.Fatalf("expected engine error to be preserved, got %v", err)
	}
}

func TestExtract_InvalidPass(t *testing.T) {
	p := &Pass{
		ID: "web",
		Chunks: []Chunk{
			{ID: "0", Files: []string{"a.js"}},
			{ID: "0", Files: []string{""}},
		},
	}
	_, err := NewExtractor().Extract(p)
	if !errors.Is(err, ErrInvalidPass) {
		t.Fatalf("expected ErrInvalidPass, got %v", err)
	}
}
