package round

import (
	"context"
	"errors"
	"sync"

	"assetmanifest/internal/core"
)

// AssetWriter receives assets a hook adds to a pass's output.
type AssetWriter interface {
	WriteAsset(name string, content []byte) error
}

// PassHook runs after a pass has computed its chunks and assets.
type PassHook func(ctx context.Context, pass *core.Pass) error

// EmitHook runs before a pass's assets are written.
type EmitHook func(ctx context.Context, pass *core.Pass, w AssetWriter) error

// Hooks is the host-side registry plugins attach to.
type Hooks struct {
	mu         sync.RWMutex
	afterPass  []PassHook
	beforeEmit []EmitHook
}

// AfterPass registers fn for the pass-computed event.
func (h *Hooks) AfterPass(fn PassHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.afterPass = append(h.afterPass, fn)
}

// BeforeEmit registers fn for the assets-about-to-be-written event.
func (h *Hooks) BeforeEmit(fn EmitHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.beforeEmit = append(h.beforeEmit, fn)
}

// RunAfterPass calls every AfterPass hook in registration order. All hooks
// run; their errors are joined.
func (h *Hooks) RunAfterPass(ctx context.Context, pass *core.Pass) error {
	h.mu.RLock()
	hooks := append([]PassHook(nil), h.afterPass...)
	h.mu.RUnlock()

	var errs []error
	for _, fn := range hooks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, pass); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunBeforeEmit calls every BeforeEmit hook in registration order, stopping
// at the first error.
func (h *Hooks) RunBeforeEmit(ctx context.Context, pass *core.Pass, w AssetWriter) error {
	h.mu.RLock()
	hooks := append([]EmitHook(nil), h.beforeEmit...)
	h.mu.RUnlock()

	for _, fn := range hooks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, pass, w); err != nil {
			return err
		}
	}
	return nil
}
