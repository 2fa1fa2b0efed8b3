package host

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"assetmanifest/internal/core"
	"assetmanifest/internal/manifest"
	"assetmanifest/internal/round"
	"assetmanifest/internal/state"
	"assetmanifest/internal/trace"
)

// Target is one build pass: a stats file and the pass ID it reports as.
type Target struct {
	ID        string
	StatsPath string
}

// Options configures a Builder.
type Options struct {
	Manifest manifest.Config

	// Names resolves chunk file names. Nil uses chunk names, or the first
	// target's stats template when TemplateFromStats is set.
	Names             core.NameResolver
	TemplateFromStats bool

	// OutputDir is where the manifest is written. Empty means the output
	// directory of the first target.
	OutputDir string

	// Harvest adds undeclared files found in a target's output directory
	// as assets.
	Harvest bool

	// DryRun keeps the manifest in memory unless Manifest.WriteToFileEmit
	// is set.
	DryRun bool

	// Store records round history when set.
	Store *state.Store

	// CacheFile enables the legacy shared cache, persisted at this path.
	CacheFile string

	Logger *zap.Logger
}

// Result describes a completed round.
type Result struct {
	RoundID      string
	GraphHash    string
	TraceHash    string
	ManifestPath string
	Manifest     []byte
	Written      bool
	Passes       []*core.Pass
}

// Builder runs rounds over a fixed set of targets. The round state carries
// over between builds, so a target that failed in one build is replaced
// when it reports again.
type Builder struct {
	targets []Target
	opts    Options
	log     *zap.Logger
	events  *trace.Recorder

	mu     sync.Mutex
	plugin *round.Plugin
	hooks  round.Hooks
	cache  *manifest.Cache
}

// NewBuilder validates targets and options. Missing target IDs are derived
// from the stats file names.
func NewBuilder(targets []Target, opts Options) (*Builder, error) {
	if len(targets) == 0 {
		return nil, errors.New("at least one target is required")
	}
	ts := make([]Target, len(targets))
	seen := make(map[string]struct{}, len(targets))
	for i, t := range targets {
		if strings.TrimSpace(t.StatsPath) == "" {
			return nil, fmt.Errorf("targets[%d]: stats path is required", i)
		}
		if t.ID == "" {
			t.ID = TargetIDFromPath(t.StatsPath)
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("duplicate target id %q", t.ID)
		}
		seen[t.ID] = struct{}{}
		ts[i] = t
	}

	cfg := opts.Manifest.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts.Manifest = cfg

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{targets: ts, opts: opts, log: log, events: trace.NewRecorder()}, nil
}

// Targets returns the builder's targets with IDs filled in.
func (b *Builder) Targets() []Target { return append([]Target(nil), b.targets...) }

type loadedPass struct {
	target Target
	stats  *Stats
	pass   *core.Pass
	graph  string
}

// Build runs one round. Passes load and run concurrently; a failing pass
// cancels the rest and the round writes no manifest.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	loaded := make([]*loadedPass, len(b.targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range b.targets {
		g.Go(func() error {
			lp, err := b.load(gctx, t)
			if err != nil {
				return err
			}
			loaded[i] = lp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := b.ensurePlugin(loaded); err != nil {
		return nil, err
	}

	graphHash := combinedGraphHash(loaded)
	res := &Result{
		RoundID:   b.plugin.Accumulator().ID(),
		GraphHash: graphHash,
		Passes:    make([]*core.Pass, len(loaded)),
	}
	for i, lp := range loaded {
		res.Passes[i] = lp.pass
	}

	var rec *state.Recorder
	var roundRecord state.Round
	if b.opts.Store != nil {
		rec = &state.Recorder{Store: b.opts.Store}
		var err error
		roundRecord, err = rec.StartRound(state.Round{
			RoundID:   res.RoundID,
			Passes:    targetIDs(b.targets),
			GraphHash: graphHash,
		})
		if err != nil {
			return nil, fmt.Errorf("recording round: %w", err)
		}
	}

	root := b.opts.OutputDir
	if root == "" {
		root = loaded[0].stats.OutputDir
	}
	cfg := b.plugin.Config()
	w := NewFSWriter(root, b.opts.DryRun && !cfg.WriteToFileEmit)

	b.events.Reset()
	err := b.runHooks(ctx, loaded, w)
	if err != nil {
		b.log.Warn("round failed", zap.String("round", res.RoundID), zap.Error(err))
		if rec != nil {
			if rerr := rec.RecordFailure(roundRecord, err); rerr != nil {
				b.log.Error("recording round failure", zap.Error(rerr))
			}
		}
		return res, err
	}

	data, ok := w.Content(cfg.FileName)
	if !ok {
		return res, fmt.Errorf("%w: no manifest emitted", round.ErrRoundIncomplete)
	}
	res.Manifest = data
	res.ManifestPath = w.Path(cfg.FileName)
	res.Written = !w.DryRun

	traceHash, err := b.events.Trace(graphHash).Hash()
	if err != nil {
		return res, fmt.Errorf("hashing round trace: %w", err)
	}
	res.TraceHash = traceHash

	if b.cache != nil {
		if err := state.SaveCacheFile(b.opts.CacheFile, b.cache); err != nil {
			return res, err
		}
	}
	if rec != nil {
		if _, err := rec.CompleteRound(roundRecord, cfg.FileName, core.HashBytes(data), traceHash); err != nil {
			return res, fmt.Errorf("recording round: %w", err)
		}
	}

	b.log.Info("manifest written",
		zap.String("round", res.RoundID),
		zap.String("path", res.ManifestPath),
		zap.Int("bytes", len(data)),
		zap.Bool("dryRun", !res.Written),
	)
	return res, nil
}

// runHooks runs every pass's AfterPass hooks before any BeforeEmit hook,
// so a pass failing in this build withdraws its earlier report before the
// round can be emitted.
func (b *Builder) runHooks(ctx context.Context, loaded []*loadedPass, w *FSWriter) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, lp := range loaded {
		g.Go(func() error { return b.hooks.RunAfterPass(gctx, lp.pass) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	g, gctx = errgroup.WithContext(ctx)
	for _, lp := range loaded {
		g.Go(func() error { return b.hooks.RunBeforeEmit(gctx, lp.pass, w) })
	}
	return g.Wait()
}

func (b *Builder) load(ctx context.Context, t Target) (*loadedPass, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stats, err := LoadStats(t.StatsPath)
	if err != nil {
		return nil, err
	}
	pass, graph, err := stats.Pass(t.ID)
	if err != nil {
		return nil, err
	}
	lp := &loadedPass{target: t, stats: stats, pass: pass, graph: "failed:" + t.ID}
	if graph == nil {
		return lp, nil
	}
	lp.graph = graph.Hash().String()

	if err := core.NewContentHasher(stats.OutputDir).FillMissing(pass); err != nil {
		return nil, err
	}
	if b.opts.Harvest {
		exclude := []string{b.opts.Manifest.FileName, b.opts.Manifest.FileName + ".gz"}
		if rel, err := filepath.Rel(stats.OutputDir, t.StatsPath); err == nil {
			exclude = append(exclude, filepath.ToSlash(rel))
		}
		extra, err := core.NewHarvester(stats.OutputDir, exclude...).Harvest(pass)
		if err != nil {
			return nil, err
		}
		pass.Assets = append(pass.Assets, extra...)
	}
	b.log.Debug("pass loaded",
		zap.String("pass", t.ID),
		zap.Strings("loadOrder", graph.OrderedIDs()),
		zap.Int("assets", len(pass.Assets)),
	)
	return lp, nil
}

// ensurePlugin creates the plugin on the first build, when the stats
// template is known.
func (b *Builder) ensurePlugin(loaded []*loadedPass) error {
	if b.plugin != nil {
		return nil
	}
	names := b.opts.Names
	if names == nil && b.opts.TemplateFromStats {
		tn, err := core.NewTemplateNames(loaded[0].stats.Template)
		if err != nil {
			return fmt.Errorf("%w: %w", manifest.ErrInvalidConfig, err)
		}
		names = tn
	}

	cfg := b.opts.Manifest
	if b.opts.CacheFile != "" {
		cache, err := state.LoadCacheFile(b.opts.CacheFile)
		if err != nil {
			return err
		}
		b.cache = cache
		cfg.Cache = cache
	}

	p, err := round.NewPlugin(cfg, core.NewExtractorWithNames(names), round.Options{
		Passes: targetIDs(b.targets),
		Logger: b.log,
		Sink:   b.events,
	})
	if err != nil {
		return err
	}
	p.Apply(&b.hooks)
	b.plugin = p
	return nil
}

func targetIDs(ts []Target) []string {
	ids := make([]string, len(ts))
	for i, t := range ts {
		ids[i] = t.ID
	}
	return ids
}

// combinedGraphHash hashes the per-pass graph hashes in pass ID order.
func combinedGraphHash(loaded []*loadedPass) string {
	parts := make([]string, len(loaded))
	for i, lp := range loaded {
		parts[i] = lp.target.ID + "=" + lp.graph
	}
	sort.Strings(parts)
	return core.HashBytes([]byte(strings.Join(parts, "\n")))
}
