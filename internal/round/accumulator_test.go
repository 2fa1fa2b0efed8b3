package round

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetmanifest/internal/manifest"
	"assetmanifest/internal/trace"
)

func newAccumulator(t *testing.T, cfg manifest.Config, opts Options) *Accumulator {
	t.Helper()
	p, err := manifest.NewPipeline(cfg)
	require.NoError(t, err)
	a, err := NewAccumulator(p, opts)
	require.NoError(t, err)
	return a
}

func TestAccumulator_MergesTwoPasses(t *testing.T) {
	a := newAccumulator(t, manifest.Config{}, Options{Passes: []string{"one", "two"}})

	complete, err := a.OnPassComplete("one", manifest.ObjectOf("one.js", "one.js"))
	require.NoError(t, err)
	assert.False(t, complete)

	_, err = a.OnRoundComplete()
	require.ErrorIs(t, err, ErrRoundIncomplete)

	complete, err = a.OnPassComplete("two", manifest.ObjectOf("two.js", "two.js"))
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, "two", a.CompletedBy())

	data, err := a.OnRoundComplete()
	require.NoError(t, err)
	assert.JSONEq(t, `{"one.js":"one.js","two.js":"two.js"}`, string(data))
}

func TestAccumulator_LaterPassWinsPerKey(t *testing.T) {
	a := newAccumulator(t, manifest.Config{}, Options{Passes: []string{"a", "b"}})
	_, err := a.OnPassComplete("a", manifest.ObjectOf("shared.js", "a.js", "only-a.js", "x"))
	require.NoError(t, err)
	_, err = a.OnPassComplete("b", manifest.ObjectOf("shared.js", "b.js"))
	require.NoError(t, err)

	obj := a.Value().(*manifest.Object)
	assert.Equal(t, []string{"shared.js", "only-a.js"}, obj.Keys())
	v, _ := obj.Get("shared.js")
	assert.Equal(t, "b.js", v)
}

func TestAccumulator_RepeatedPassReplacesContribution(t *testing.T) {
	rec := trace.NewRecorder()
	a := newAccumulator(t, manifest.Config{}, Options{Passes: []string{"web", "ssr"}, Sink: rec})

	_, err := a.OnPassComplete("web", manifest.ObjectOf("main.js", "main.1.js", "old.js", "old.js"))
	require.NoError(t, err)
	_, err = a.OnPassComplete("web", manifest.ObjectOf("main.js", "main.2.js"))
	require.NoError(t, err)
	assert.False(t, a.Complete())

	assert.Equal(t, map[string]any{"main.js": "main.2.js"}, a.Value().(*manifest.Object).Map())

	kinds := []trace.EventKind{}
	for _, e := range rec.Snapshot() {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []trace.EventKind{trace.EventPassMerged, trace.EventPassReplaced}, kinds)
}

func TestAccumulator_RejectWithdrawsEarlierReport(t *testing.T) {
	a := newAccumulator(t, manifest.Config{}, Options{Passes: []string{"a", "b"}})
	_, err := a.OnPassComplete("a", manifest.ObjectOf("a.js", "a.js", "shared.js", "a"))
	require.NoError(t, err)
	_, err = a.OnPassComplete("b", manifest.ObjectOf("shared.js", "b"))
	require.NoError(t, err)
	require.Equal(t, "b", a.CompletedBy())

	a.Reject("a", "PassFailed")
	assert.False(t, a.Complete())
	assert.Equal(t, "", a.CompletedBy())
	_, err = a.OnRoundComplete()
	require.ErrorIs(t, err, ErrRoundIncomplete)

	obj := a.Value().(*manifest.Object)
	assert.Equal(t, []string{"shared.js"}, obj.Keys())

	// Rejecting a pass that never reported is harmless.
	a.Reject("a", "PassFailed")
	complete, err := a.OnPassComplete("a", manifest.ObjectOf("a.js", "a2.js"))
	require.NoError(t, err)
	assert.True(t, complete)
	data, err := a.OnRoundComplete()
	require.NoError(t, err)
	assert.JSONEq(t, `{"shared.js":"b","a.js":"a2.js"}`, string(data))
}

func TestAccumulator_NonObjectValuesLastPassWins(t *testing.T) {
	cfg := manifest.Config{Seed: []any{}, Reduce: manifest.ReduceList}
	a := newAccumulator(t, cfg, Options{Passes: []string{"a", "b"}})
	_, err := a.OnPassComplete("a", []any{"a.js"})
	require.NoError(t, err)
	_, err = a.OnPassComplete("b", []any{"b.js"})
	require.NoError(t, err)

	data, err := a.OnRoundComplete()
	require.NoError(t, err)
	assert.JSONEq(t, `["b.js"]`, string(data))
}

func TestAccumulator_UnknownPass(t *testing.T) {
	a := newAccumulator(t, manifest.Config{}, Options{Passes: []string{"a"}})
	_, err := a.OnPassComplete("zzz", manifest.NewObject())
	assert.ErrorIs(t, err, ErrUnknownPass)
}

func TestAccumulator_NoRegisteredPassesCompletesOnFirstReport(t *testing.T) {
	a := newAccumulator(t, manifest.Config{}, Options{})
	complete, err := a.OnPassComplete("only", manifest.ObjectOf("main.js", "main.js"))
	require.NoError(t, err)
	assert.True(t, complete)
}

func TestNewAccumulator_RejectsBadPassList(t *testing.T) {
	p, err := manifest.NewPipeline(manifest.Config{})
	require.NoError(t, err)
	_, err = NewAccumulator(p, Options{Passes: []string{"a", "a"}})
	assert.Error(t, err)
	_, err = NewAccumulator(p, Options{Passes: []string{""}})
	assert.Error(t, err)
	_, err = NewAccumulator(nil, Options{})
	assert.Error(t, err)
}

func TestAccumulator_ResetsAfterSerialization(t *testing.T) {
	a := newAccumulator(t, manifest.Config{}, Options{Passes: []string{"a"}})
	firstID := a.ID()

	_, err := a.OnPassComplete("a", manifest.ObjectOf("first.js", "first.js"))
	require.NoError(t, err)
	_, err = a.OnRoundComplete()
	require.NoError(t, err)

	assert.NotEqual(t, firstID, a.ID())
	assert.False(t, a.Complete())
	assert.Equal(t, "", a.CompletedBy())

	_, err = a.OnPassComplete("a", manifest.ObjectOf("second.js", "second.js"))
	require.NoError(t, err)
	data, err := a.OnRoundComplete()
	require.NoError(t, err)
	assert.JSONEq(t, `{"second.js":"second.js"}`, string(data))
}

func TestAccumulator_LegacyCacheNeverReset(t *testing.T) {
	cache := manifest.NewCache()
	a := newAccumulator(t, manifest.Config{Cache: cache}, Options{Passes: []string{"a"}})

	_, err := a.OnPassComplete("a", manifest.ObjectOf("first.js", "first.js"))
	require.NoError(t, err)
	_, err = a.OnRoundComplete()
	require.NoError(t, err)

	_, err = a.OnPassComplete("a", manifest.ObjectOf("second.js", "second.js"))
	require.NoError(t, err)
	data, err := a.OnRoundComplete()
	require.NoError(t, err)
	assert.JSONEq(t, `{"first.js":"first.js","second.js":"second.js"}`, string(data))
	assert.Equal(t, 2, cache.Snapshot().Len())
}

func TestAccumulator_LegacyCacheRejectsNonObject(t *testing.T) {
	cfg := manifest.Config{Cache: manifest.NewCache(), Seed: []any{}, Reduce: manifest.ReduceList}
	a := newAccumulator(t, cfg, Options{})
	_, err := a.OnPassComplete("a", []any{"x"})
	assert.ErrorIs(t, err, manifest.ErrAccumulatorShape)
}

func TestAccumulator_SeedOnlyRound(t *testing.T) {
	a := newAccumulator(t, manifest.Config{Seed: manifest.ObjectOf("test1", "test2")}, Options{})
	_, err := a.OnPassComplete("a", manifest.ObjectOf("test1", "test2"))
	require.NoError(t, err)
	data, err := a.OnRoundComplete()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, map[string]any{"test1": "test2"}, got)
}

func TestAccumulator_ConcurrentMerges(t *testing.T) {
	const n = 32
	passes := make([]string, n)
	for i := range passes {
		passes[i] = fmt.Sprintf("pass-%02d", i)
	}
	a := newAccumulator(t, manifest.Config{}, Options{Passes: passes})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed []string
	)
	for _, id := range passes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			done, err := a.OnPassComplete(id, manifest.ObjectOf(id+".js", id+".js"))
			assert.NoError(t, err)
			if done {
				mu.Lock()
				completed = append(completed, id)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, completed, 1, "exactly one report completes the round")
	assert.Equal(t, completed[0], a.CompletedBy())
	assert.Equal(t, n, a.Value().(*manifest.Object).Len())
}
