package round

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"assetmanifest/internal/manifest"
	"assetmanifest/internal/trace"
)

// Options configures an Accumulator.
type Options struct {
	// Passes are the pass IDs that make up a round. When empty, the first
	// pass to report completes the round on its own.
	Passes []string

	Logger *zap.Logger
	Sink   trace.Sink
}

// Accumulator holds the cross-pass manifest of the current round.
//
// All methods are safe for concurrent use; merges are serialized.
type Accumulator struct {
	mu sync.Mutex

	pipeline *manifest.Pipeline
	passes   []string
	store    store
	log      *zap.Logger
	sink     trace.Sink

	id          string
	reported    map[string]struct{}
	completedBy string
}

// NewAccumulator creates an accumulator for pipeline. A config carrying a
// deprecated manifest.Cache merges into that cache instead of a per-round
// value.
func NewAccumulator(pipeline *manifest.Pipeline, opts Options) (*Accumulator, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("round: pipeline is required")
	}
	seen := make(map[string]struct{}, len(opts.Passes))
	for _, id := range opts.Passes {
		if id == "" {
			return nil, fmt.Errorf("round: empty pass id")
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("round: duplicate pass id %q", id)
		}
		seen[id] = struct{}{}
	}

	a := &Accumulator{
		pipeline: pipeline,
		passes:   slices.Clone(opts.Passes),
		log:      opts.Logger,
		sink:     opts.Sink,
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	if cache := pipeline.Config().Cache; cache != nil {
		a.store = newExternalStore(cache)
	} else {
		a.store = newOwnedStore()
	}
	a.startRound()
	return a, nil
}

func (a *Accumulator) startRound() {
	a.id = uuid.NewString()
	a.reported = make(map[string]struct{})
	a.completedBy = ""
}

// ID returns the current round's ID.
func (a *Accumulator) ID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.id
}

// Passes returns the registered pass IDs.
func (a *Accumulator) Passes() []string { return slices.Clone(a.passes) }

// OnPassComplete merges passID's manifest value into the round and reports
// whether the round is now complete.
func (a *Accumulator) OnPassComplete(passID string, value any) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.passes) > 0 && !slices.Contains(a.passes, passID) {
		return false, fmt.Errorf("%w: %q", ErrUnknownPass, passID)
	}

	replaced, err := a.store.merge(passID, value)
	if err != nil {
		a.rejectLocked(passID, "MergeFailed")
		return false, err
	}
	_, again := a.reported[passID]
	a.reported[passID] = struct{}{}

	kind := trace.EventPassMerged
	if replaced || again {
		kind = trace.EventPassReplaced
	}
	keys := valueKeys(value)
	trace.SafeRecord(a.sink, trace.Event{Kind: kind, PassID: passID, Keys: keys})

	complete := a.completeLocked()
	if complete {
		a.completedBy = passID
	}
	a.log.Debug("pass merged",
		zap.String("round", a.id),
		zap.String("pass", passID),
		zap.Int("entries", len(keys)),
		zap.Bool("replaced", kind == trace.EventPassReplaced),
		zap.Bool("complete", complete),
	)
	return complete, nil
}

// Reject records that passID produced no contribution this round. Any
// earlier report of passID in the open round is withdrawn, so the round
// cannot complete until the pass reports successfully again.
func (a *Accumulator) Reject(passID, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejectLocked(passID, reason)
}

func (a *Accumulator) rejectLocked(passID, reason string) {
	a.store.retract(passID)
	delete(a.reported, passID)
	a.completedBy = ""
	trace.SafeRecord(a.sink, trace.Event{Kind: trace.EventPassRejected, PassID: passID, Reason: reason})
	a.log.Warn("pass rejected",
		zap.String("round", a.id),
		zap.String("pass", passID),
		zap.String("reason", reason),
	)
}

func (a *Accumulator) completeLocked() bool {
	if len(a.passes) == 0 {
		return len(a.reported) > 0
	}
	for _, id := range a.passes {
		if _, ok := a.reported[id]; !ok {
			return false
		}
	}
	return true
}

// Complete reports whether every registered pass has reported.
func (a *Accumulator) Complete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completeLocked()
}

// CompletedBy returns the pass whose report completed the current round,
// or "" while the round is open.
func (a *Accumulator) CompletedBy() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completedBy
}

// Value returns a deep copy of the merged value.
func (a *Accumulator) Value() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return manifest.DeepCopy(a.store.value())
}

// OnRoundComplete serializes the merged manifest and starts a new round.
// It returns ErrRoundIncomplete while a registered pass has not reported.
// A serialization failure leaves the round open.
func (a *Accumulator) OnRoundComplete() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.completeLocked() {
		return nil, fmt.Errorf("%w: %d of %d passes reported", ErrRoundIncomplete, len(a.reported), len(a.passes))
	}
	v := a.store.value()
	if v == nil {
		v = a.pipeline.Config().NewSeed()
	}
	data, err := a.pipeline.Serialize(v)
	if err != nil {
		return nil, err
	}

	file := a.pipeline.Config().FileName
	trace.SafeRecord(a.sink, trace.Event{Kind: trace.EventRoundSerialized, File: file})
	a.log.Info("round serialized",
		zap.String("round", a.id),
		zap.String("file", file),
		zap.Int("bytes", len(data)),
	)

	a.store.reset()
	a.startRound()
	return data, nil
}

func valueKeys(v any) []string {
	if obj, ok := manifest.ToObject(v); ok {
		return obj.Keys()
	}
	return nil
}
