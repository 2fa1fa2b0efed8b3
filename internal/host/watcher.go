package host

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits after the last change
// before rebuilding.
const DefaultDebounce = 200 * time.Millisecond

// Watcher rebuilds whenever a target's stats file changes.
type Watcher struct {
	builder  *Builder
	debounce time.Duration
	log      *zap.Logger

	// OnBuild, when set, receives the outcome of every build.
	OnBuild func(*Result, error)
}

// NewWatcher returns a watcher for b. A non-positive debounce uses
// DefaultDebounce.
func NewWatcher(b *Builder, debounce time.Duration, log *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{builder: b, debounce: debounce, log: log}
}

// Run builds once, then rebuilds after stats changes until ctx is done.
// Directories are watched rather than files so that editors and bundlers
// replacing a file by rename are noticed. Build errors are reported to
// OnBuild and logged; they do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	watched := make(map[string]struct{})
	dirs := make(map[string]struct{})
	for _, t := range w.builder.Targets() {
		abs, err := filepath.Abs(t.StatsPath)
		if err != nil {
			return err
		}
		watched[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if _, ok := dirs[dir]; ok {
			continue
		}
		if err := fw.Add(dir); err != nil {
			return err
		}
		dirs[dir] = struct{}{}
		w.log.Debug("watching directory", zap.String("dir", dir))
	}

	w.rebuild(ctx)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			if _, ok := watched[abs]; !ok {
				continue
			}
			w.log.Debug("stats changed", zap.String("path", abs), zap.String("op", ev.Op.String()))
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-timer.C:
			w.rebuild(ctx)
		}
	}
}

func (w *Watcher) rebuild(ctx context.Context) {
	res, err := w.builder.Build(ctx)
	if err != nil && ctx.Err() == nil {
		w.log.Error("build failed", zap.Error(err))
	}
	if w.OnBuild != nil {
		w.OnBuild(res, err)
	}
}
