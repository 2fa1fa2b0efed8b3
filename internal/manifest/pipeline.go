package manifest

import (
	"slices"

	"assetmanifest/internal/core"
)

// Pipeline runs the normalize, map, filter, sort, reduce sequence for a
// Config. It holds no state between runs and is safe for concurrent use.
type Pipeline struct {
	cfg        Config
	normalizer Normalizer
}

// NewPipeline creates a Pipeline for cfg with defaults applied.
func NewPipeline(cfg Config) (*Pipeline, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, normalizer: NewNormalizer(cfg.BasePath, cfg.PublicPath)}, nil
}

// Config returns the pipeline's configuration with defaults applied.
func (p *Pipeline) Config() Config { return p.cfg }

// Run reduces descriptors to a manifest value. The input slice and the
// seed are never mutated.
func (p *Pipeline) Run(ds []core.FileDescriptor) (any, error) {
	files := p.normalizer.Apply(ds)

	if p.cfg.Map != nil {
		for i := range files {
			if err := guard(StageMap, i, func() error {
				files[i] = p.cfg.Map(files[i], i)
				return nil
			}); err != nil {
				return nil, err
			}
		}
	}

	if p.cfg.Filter != nil {
		kept := files[:0:0]
		for i, d := range files {
			var keep bool
			if err := guard(StageFilter, i, func() error {
				keep = p.cfg.Filter(d)
				return nil
			}); err != nil {
				return nil, err
			}
			if keep {
				kept = append(kept, d)
			}
		}
		files = kept
	}

	if p.cfg.Sort != nil {
		cmp := p.cfg.Sort
		if err := guard(StageSort, -1, func() error {
			slices.SortStableFunc(files, func(a, b core.FileDescriptor) int {
				// SortStableFunc asks cmp(later, earlier) < 0; flip it so
				// the user comparator sees (earlier, later).
				return -cmp(b, a)
			})
			return nil
		}); err != nil {
			return nil, err
		}
	}

	reduce := p.cfg.Reducer()
	acc := p.cfg.NewSeed()
	for i, d := range files {
		if err := guard(StageReduce, i, func() error {
			next, err := reduce(acc, d)
			if err != nil {
				return err
			}
			acc = next
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// Run is a one-shot helper around NewPipeline and Pipeline.Run.
func Run(ds []core.FileDescriptor, cfg Config) (any, error) {
	p, err := NewPipeline(cfg)
	if err != nil {
		return nil, err
	}
	return p.Run(ds)
}

// Serialize encodes a merged manifest value with the configured serializer.
func (p *Pipeline) Serialize(v any) ([]byte, error) {
	var out []byte
	err := guard(StageSerialize, -1, func() error {
		b, err := p.cfg.Serialize(v)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
