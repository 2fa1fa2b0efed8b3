package host

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetmanifest/internal/core"
	"assetmanifest/internal/manifest"
	"assetmanifest/internal/state"
)

func readManifest(t *testing.T, path string) map[string]any {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func singleChunkStats(name, file string) string {
	return `{"chunks": [{"id": "` + name + `", "name": "` + name + `", "hash": "h1", "initial": true, "files": ["` + file + `"]}]}`
}

func TestBuilder_SingleTarget(t *testing.T) {
	dir := t.TempDir()
	stats := filepath.Join(dir, "stats.json")
	writeFile(t, stats, singleChunkStats("main", "main.js"))

	b, err := NewBuilder([]Target{{StatsPath: stats}}, Options{})
	require.NoError(t, err)
	res, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "manifest.json"), res.ManifestPath)
	assert.True(t, res.Written)
	assert.NotEmpty(t, res.TraceHash)
	assert.Equal(t, map[string]any{"main.js": "main.js"}, readManifest(t, res.ManifestPath))
	assert.Contains(t, res.Passes[0].Assets, core.Asset{Name: "manifest.json"})
}

func TestBuilder_TwoTargetsMergeIntoOneManifest(t *testing.T) {
	dir := t.TempDir()
	one := filepath.Join(dir, "one.json")
	two := filepath.Join(dir, "two.json")
	writeFile(t, one, singleChunkStats("one", "one.js"))
	writeFile(t, two, singleChunkStats("two", "two.js"))

	b, err := NewBuilder([]Target{{StatsPath: one}, {StatsPath: two}}, Options{})
	require.NoError(t, err)
	res, err := b.Build(context.Background())
	require.NoError(t, err)

	want := map[string]any{"one.js": "one.js", "two.js": "two.js"}
	if diff := cmp.Diff(want, readManifest(t, res.ManifestPath)); diff != "" {
		t.Fatalf("unexpected manifest (-want +got):\n%s", diff)
	}
}

func TestBuilder_FailedTargetThenRecovery(t *testing.T) {
	dir := t.TempDir()
	web := filepath.Join(dir, "web.json")
	ssr := filepath.Join(dir, "ssr.json")
	writeFile(t, web, singleChunkStats("main", "main.js"))
	writeFile(t, ssr, `{"chunks": [], "errors": ["Module not found: ./server"]}`)

	store, err := state.NewStore(dir)
	require.NoError(t, err)
	b, err := NewBuilder([]Target{{StatsPath: web}, {StatsPath: ssr}}, Options{Store: store})
	require.NoError(t, err)

	res, err := b.Build(context.Background())
	require.ErrorIs(t, err, core.ErrPassFailed)
	_, statErr := os.Stat(filepath.Join(dir, "manifest.json"))
	assert.True(t, os.IsNotExist(statErr))

	failure, err := store.LoadFailure(res.RoundID)
	require.NoError(t, err)
	assert.Equal(t, state.FailureClassPass, failure.FailureClass)
	require.NotNil(t, failure.PassID)
	assert.Equal(t, "ssr", *failure.PassID)

	writeFile(t, ssr, singleChunkStats("server", "server.js"))
	res2, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.RoundID, res2.RoundID, "the open round completes on retry")
	assert.Equal(t, map[string]any{"main.js": "main.js", "server.js": "server.js"}, readManifest(t, res2.ManifestPath))

	record, err := store.LoadRound(res2.RoundID)
	require.NoError(t, err)
	assert.Equal(t, state.RoundStatusComplete, record.Status)
	assert.Equal(t, res2.TraceHash, record.TraceHash)
	_, err = store.LoadFailure(res2.RoundID)
	assert.Error(t, err)
}

func TestBuilder_TargetFailingAfterEarlierSuccessWritesNothing(t *testing.T) {
	dir := t.TempDir()
	web := filepath.Join(dir, "web.json")
	ssr := filepath.Join(dir, "ssr.json")
	manifestPath := filepath.Join(dir, "manifest.json")
	writeFile(t, web, singleChunkStats("old", "old.js"))
	writeFile(t, ssr, `{"chunks": [], "errors": ["Module not found: ./server"]}`)

	b, err := NewBuilder([]Target{{StatsPath: web}, {StatsPath: ssr}}, Options{})
	require.NoError(t, err)
	_, err = b.Build(context.Background())
	require.ErrorIs(t, err, core.ErrPassFailed)

	writeFile(t, web, `{"chunks": [], "errors": ["Module not found: ./client"]}`)
	writeFile(t, ssr, singleChunkStats("server", "server.js"))
	for i := 0; i < 10; i++ {
		_, err = b.Build(context.Background())
		require.ErrorIs(t, err, core.ErrPassFailed)
		_, statErr := os.Stat(manifestPath)
		require.True(t, os.IsNotExist(statErr), "build %d wrote a manifest", i)
	}

	writeFile(t, web, singleChunkStats("new", "new.js"))
	res, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"new.js": "new.js", "server.js": "server.js"}, readManifest(t, res.ManifestPath))
}

func TestBuilder_FillsMissingHashesFromContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.js"), "console.log(1)")
	stats := filepath.Join(dir, "stats.json")
	writeFile(t, stats, `{"chunks": [{"id": "main", "name": "main", "initial": true, "files": ["main.js"]}]}`)

	b, err := NewBuilder([]Target{{StatsPath: stats}}, Options{
		Manifest: manifest.Config{Reduce: manifest.ReduceDetailed},
	})
	require.NoError(t, err)
	res, err := b.Build(context.Background())
	require.NoError(t, err)

	entry := readManifest(t, res.ManifestPath)["main.js"].(map[string]any)
	assert.Len(t, entry["hash"], 20)
	assert.Equal(t, true, entry["initial"])
}

func TestBuilder_HarvestAddsUndeclaredFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.js"), "x")
	writeFile(t, filepath.Join(dir, "img", "logo.png"), "png")
	stats := filepath.Join(dir, "stats.json")
	writeFile(t, stats, singleChunkStats("main", "main.js"))

	b, err := NewBuilder([]Target{{StatsPath: stats}}, Options{Harvest: true})
	require.NoError(t, err)
	res, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"main.js":      "main.js",
		"img/logo.png": "img/logo.png",
	}, readManifest(t, res.ManifestPath))
}

func TestBuilder_DryRun(t *testing.T) {
	dir := t.TempDir()
	stats := filepath.Join(dir, "stats.json")
	writeFile(t, stats, singleChunkStats("main", "main.js"))

	b, err := NewBuilder([]Target{{StatsPath: stats}}, Options{DryRun: true})
	require.NoError(t, err)
	res, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Written)
	assert.JSONEq(t, `{"main.js":"main.js"}`, string(res.Manifest))
	_, statErr := os.Stat(res.ManifestPath)
	assert.True(t, os.IsNotExist(statErr))

	b, err = NewBuilder([]Target{{StatsPath: stats}}, Options{
		DryRun:   true,
		Manifest: manifest.Config{WriteToFileEmit: true},
	})
	require.NoError(t, err)
	res, err = b.Build(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Written)
	_, statErr = os.Stat(res.ManifestPath)
	assert.NoError(t, statErr)
}

func TestBuilder_LegacyCachePersistsAcrossBuilders(t *testing.T) {
	dir := t.TempDir()
	stats := filepath.Join(dir, "stats.json")
	cacheFile := filepath.Join(dir, ".assetmanifest", "cache.json")

	writeFile(t, stats, singleChunkStats("first", "first.js"))
	b, err := NewBuilder([]Target{{StatsPath: stats}}, Options{CacheFile: cacheFile})
	require.NoError(t, err)
	_, err = b.Build(context.Background())
	require.NoError(t, err)

	writeFile(t, stats, singleChunkStats("second", "second.js"))
	b, err = NewBuilder([]Target{{StatsPath: stats}}, Options{CacheFile: cacheFile})
	require.NoError(t, err)
	res, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"first.js": "first.js", "second.js": "second.js"}, readManifest(t, res.ManifestPath))
}

func TestBuilder_TemplateFromStats(t *testing.T) {
	dir := t.TempDir()
	stats := filepath.Join(dir, "stats.json")
	writeFile(t, stats, `{
		"template": "js/[name].[contenthash:8].js",
		"chunks": [{"id": "main", "name": "main", "hash": "h", "initial": true, "files": ["js/main.1a2b3c4d.js"]}]
	}`)

	b, err := NewBuilder([]Target{{StatsPath: stats}}, Options{TemplateFromStats: true})
	require.NoError(t, err)
	res, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"js/main.js": "js/main.1a2b3c4d.js"}, readManifest(t, res.ManifestPath))
}

func TestNewBuilder_Validation(t *testing.T) {
	_, err := NewBuilder(nil, Options{})
	assert.Error(t, err)

	_, err = NewBuilder([]Target{{StatsPath: "a/stats.json"}, {StatsPath: "b/stats.json"}}, Options{})
	assert.Error(t, err, "derived ids collide")

	b, err := NewBuilder([]Target{{ID: "web", StatsPath: "a/stats.json"}, {ID: "ssr", StatsPath: "b/stats.json"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "web", b.Targets()[0].ID)

	_, err = NewBuilder([]Target{{StatsPath: "s.json"}}, Options{Manifest: manifest.Config{Seed: []any{}}})
	assert.ErrorIs(t, err, manifest.ErrInvalidConfig)
}
