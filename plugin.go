package assetcompress

import (
	"context"
	"fmt"
)

// PhaseFunc is a callback run with the build's asset map.
type PhaseFunc func(ctx context.Context, assets *AssetMap) error

// DoneFunc is a callback run once the build has finished writing output.
type DoneFunc func(ctx context.Context) DeletionReport

// Hooks is the lifecycle surface of a build host.
type Hooks interface {
	// OnOptimizeAssets registers fn to run while assets can still be changed.
	OnOptimizeAssets(fn PhaseFunc)
	// OnEmit registers fn to run just before assets are written.
	OnEmit(fn PhaseFunc)
	// OnDone registers fn to run after the build completes.
	OnDone(fn DoneFunc)
}

// Plugin attaches a Compressor to a build host.
type Plugin struct {
	c *Compressor
}

// NewPlugin returns a plugin driving c.
func NewPlugin(c *Compressor) *Plugin {
	return &Plugin{c: c}
}

// Compressor returns the compressor driven by the plugin.
func (p *Plugin) Compressor() *Compressor {
	return p.c
}

// Apply registers the optimize, emit and done callbacks. The callbacks
// share one deletion queue, so each Apply covers a single build.
func (p *Plugin) Apply(h Hooks) {
	queue := NewDeletionQueue()
	h.OnOptimizeAssets(func(ctx context.Context, assets *AssetMap) error {
		return p.c.OptimizeAssets(ctx, assets, queue)
	})
	h.OnEmit(func(ctx context.Context, assets *AssetMap) error {
		return p.c.Emit(ctx, assets, queue)
	})
	h.OnDone(func(ctx context.Context) DeletionReport {
		return p.c.Done(ctx, queue)
	})
}

// Pipeline is a minimal build host. It runs the optimize callbacks, the
// emit callbacks, Write, and finally the done callbacks, each group in
// registration order.
type Pipeline struct {
	// Write persists the asset map after the emit phase. Optional.
	Write PhaseFunc

	optimize []PhaseFunc
	emit     []PhaseFunc
	done     []DoneFunc
}

func (p *Pipeline) OnOptimizeAssets(fn PhaseFunc) { p.optimize = append(p.optimize, fn) }
func (p *Pipeline) OnEmit(fn PhaseFunc)           { p.emit = append(p.emit, fn) }
func (p *Pipeline) OnDone(fn DoneFunc)            { p.done = append(p.done, fn) }

// Run executes one build over assets. A failing phase stops the build
// before the done callbacks run, so no original is deleted.
func (p *Pipeline) Run(ctx context.Context, assets *AssetMap) (DeletionReport, error) {
	var report DeletionReport

	for _, fn := range p.optimize {
		if err := fn(ctx, assets); err != nil {
			return report, fmt.Errorf("optimize-assets: %w", err)
		}
	}
	for _, fn := range p.emit {
		if err := fn(ctx, assets); err != nil {
			return report, fmt.Errorf("emit: %w", err)
		}
	}
	if p.Write != nil {
		if err := p.Write(ctx, assets); err != nil {
			return report, fmt.Errorf("write: %w", err)
		}
	}
	for _, fn := range p.done {
		r := fn(ctx)
		report.Deleted = append(report.Deleted, r.Deleted...)
		report.Missing = append(report.Missing, r.Missing...)
		report.Failed = append(report.Failed, r.Failed...)
	}
	return report, nil
}
