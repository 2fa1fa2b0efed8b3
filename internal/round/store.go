package round

import (
	"fmt"
	"slices"

	"assetmanifest/internal/manifest"
)

// store is where merged contributions live. ownedStore is the normal
// per-round value; externalStore backs the deprecated manifest.Cache.
type store interface {
	// merge folds value into the store as passID's contribution and
	// reports whether it replaced an earlier contribution of passID.
	merge(passID string, value any) (replaced bool, err error)
	// retract drops passID's contribution, if any.
	retract(passID string)
	// value returns the current merged value. Callers must not mutate it.
	value() any
	// reset starts a new round.
	reset()
}

// mergeValue shallow-assigns keyed values into cur and otherwise lets the
// later value win. next is copied; cur may be modified in place.
func mergeValue(cur, next any) any {
	nextObj, ok := manifest.ToObject(next)
	if !ok {
		return manifest.DeepCopy(next)
	}
	curObj, ok := cur.(*manifest.Object)
	if !ok {
		return nextObj.Clone()
	}
	curObj.Assign(nextObj.Clone())
	return curObj
}

type ownedStore struct {
	order         []string
	contributions map[string]any
	merged        any
}

func newOwnedStore() *ownedStore {
	return &ownedStore{contributions: make(map[string]any)}
}

func (s *ownedStore) merge(passID string, value any) (bool, error) {
	_, replaced := s.contributions[passID]
	s.contributions[passID] = manifest.DeepCopy(value)
	if !replaced {
		s.order = append(s.order, passID)
		s.merged = mergeValue(s.merged, value)
		return false, nil
	}
	// Recompute so keys dropped by the newer contribution disappear.
	s.recompute()
	return true, nil
}

func (s *ownedStore) retract(passID string) {
	if _, ok := s.contributions[passID]; !ok {
		return
	}
	delete(s.contributions, passID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == passID })
	s.recompute()
}

// recompute folds the contributions again in first-report order.
func (s *ownedStore) recompute() {
	var merged any
	for _, id := range s.order {
		merged = mergeValue(merged, s.contributions[id])
	}
	s.merged = merged
}

func (s *ownedStore) value() any { return s.merged }

func (s *ownedStore) reset() {
	s.order = nil
	s.contributions = make(map[string]any)
	s.merged = nil
}

// externalStore writes straight into a caller-owned cache that survives
// rounds. Entries already written to the cache are never retracted; only
// the pass's report is forgotten.
type externalStore struct {
	cache *manifest.Cache
	seen  map[string]struct{}
}

func newExternalStore(cache *manifest.Cache) *externalStore {
	return &externalStore{cache: cache, seen: make(map[string]struct{})}
}

func (s *externalStore) merge(passID string, value any) (bool, error) {
	obj, ok := manifest.ToObject(value)
	if !ok {
		return false, fmt.Errorf("%w: cache accumulator needs an object, got %T", manifest.ErrAccumulatorShape, value)
	}
	_, replaced := s.seen[passID]
	s.seen[passID] = struct{}{}
	s.cache.Update(func(dst *manifest.Object) {
		dst.Assign(obj.Clone())
	})
	return replaced, nil
}

func (s *externalStore) retract(passID string) { delete(s.seen, passID) }

func (s *externalStore) value() any { return s.cache.Snapshot() }

func (s *externalStore) reset() {
	s.seen = make(map[string]struct{})
}
