package round

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"assetmanifest/internal/core"
	"assetmanifest/internal/manifest"
)

// Plugin wires the extractor, pipeline and accumulator to a host's hooks.
type Plugin struct {
	extractor *core.Extractor
	pipeline  *manifest.Pipeline
	acc       *Accumulator
	log       *zap.Logger
}

// NewPlugin validates cfg and builds a plugin whose rounds consist of
// opts.Passes. A nil extractor uses chunk-name resolution.
func NewPlugin(cfg manifest.Config, extractor *core.Extractor, opts Options) (*Plugin, error) {
	pipeline, err := manifest.NewPipeline(cfg)
	if err != nil {
		return nil, err
	}
	acc, err := NewAccumulator(pipeline, opts)
	if err != nil {
		return nil, err
	}
	if extractor == nil {
		extractor = core.NewExtractor()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Plugin{extractor: extractor, pipeline: pipeline, acc: acc, log: log}, nil
}

// Accumulator returns the plugin's round state.
func (p *Plugin) Accumulator() *Accumulator { return p.acc }

// Config returns the effective manifest configuration.
func (p *Plugin) Config() manifest.Config { return p.pipeline.Config() }

// Apply registers the plugin's hooks.
func (p *Plugin) Apply(h *Hooks) {
	h.AfterPass(p.afterPass)
	h.BeforeEmit(p.beforeEmit)
}

func (p *Plugin) afterPass(_ context.Context, pass *core.Pass) error {
	if pass.Err != nil {
		p.acc.Reject(pass.ID, "PassFailed")
		return &core.PassError{PassID: pass.ID, Err: pass.Err}
	}
	ds, err := p.extractor.Extract(pass)
	if err != nil {
		p.acc.Reject(pass.ID, "InvalidPass")
		return err
	}
	v, err := p.pipeline.Run(ds)
	if err != nil {
		p.acc.Reject(pass.ID, "StageFailed")
		return fmt.Errorf("pass %s: %w", pass.ID, err)
	}
	_, err = p.acc.OnPassComplete(pass.ID, v)
	return err
}

// beforeEmit writes the manifest through w when pass completed the round,
// and adds it to the pass's asset set.
func (p *Plugin) beforeEmit(_ context.Context, pass *core.Pass, w AssetWriter) error {
	if pass.Err != nil || p.acc.CompletedBy() != pass.ID {
		return nil
	}
	data, err := p.acc.OnRoundComplete()
	if err != nil {
		if errors.Is(err, ErrRoundIncomplete) {
			return nil
		}
		return err
	}

	cfg := p.pipeline.Config()
	if err := w.WriteAsset(cfg.FileName, data); err != nil {
		return fmt.Errorf("writing %s: %w", cfg.FileName, err)
	}
	pass.Assets = append(pass.Assets, core.Asset{Name: cfg.FileName})

	if cfg.Precompress {
		gz, err := manifest.Precompress(data)
		if err != nil {
			return err
		}
		name := cfg.FileName + ".gz"
		if err := w.WriteAsset(name, gz); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		pass.Assets = append(pass.Assets, core.Asset{Name: name})
	}
	p.log.Debug("manifest emitted", zap.String("pass", pass.ID), zap.String("file", cfg.FileName))
	return nil
}
