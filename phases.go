package assetcompress

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Phase names a build lifecycle point the compressor runs in.
type Phase string

const (
	PhaseOptimizeAssets Phase = "optimize-assets"
	PhaseEmit           Phase = "emit"
	PhaseDone           Phase = "done"

	// phaseAsset labels a direct CompressAsset call
	phaseAsset Phase = "asset"
)

// Result describes what happened to one asset.
type Result struct {
	Name           string
	Output         string // empty unless the asset was compressed
	OriginalSize   int
	CompressedSize int
	Skipped        SkipReason
}

// Compressed reports whether a new asset was written.
func (r Result) Compressed() bool {
	return r.Skipped == SkipNone && r.Output != ""
}

// Ratio returns compressed size / original size, or 0 when nothing was compressed.
func (r Result) Ratio() float64 {
	if r.OriginalSize == 0 || r.CompressedSize == 0 {
		return 0
	}
	return float64(r.CompressedSize) / float64(r.OriginalSize)
}

// AssetError reports a failure to compress a single asset.
type AssetError struct {
	Phase Phase
	Name  string
	Err   error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("assetcompress: %s: asset %q: %v", e.Phase, e.Name, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }

// PhaseError aggregates every asset failure of a phase.
type PhaseError struct {
	Phase  Phase
	Errors []error
}

func (e *PhaseError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("assetcompress: %s: %d assets failed: %v", e.Phase, len(e.Errors), errors.Join(e.Errors...))
}

func (e *PhaseError) Unwrap() []error { return e.Errors }

// DeletionFailure is an original file that could not be removed.
type DeletionFailure struct {
	Path string
	Err  error
}

// DeletionReport summarises the done phase.
type DeletionReport struct {
	Deleted []string
	Missing []string // already gone before removal
	Failed  []DeletionFailure
}

// CompressAsset compresses the asset stored under name and inserts the
// result into assets under the templated output name. Assets below the
// threshold or that do not compress below MinRatio are left untouched
// and reported as skipped. When originals are deleted the original's path
// is pushed onto queue.
func (c *Compressor) CompressAsset(ctx context.Context, assets *AssetMap, name string, queue *DeletionQueue) (Result, error) {
	if c.config.DeleteOriginals && queue == nil {
		return Result{Name: name}, ErrQueueRequired
	}
	return c.compressAsset(ctx, phaseAsset, assets, name, queue)
}

func (c *Compressor) compressAsset(ctx context.Context, phase Phase, assets *AssetMap, name string, queue *DeletionQueue) (Result, error) {
	r := Result{Name: name}

	if ctx.Err() != nil {
		return c.skip(phase, r, SkipCanceled, 0), nil
	}

	src, ok := assets.Get(name)
	if !ok {
		return c.skip(phase, r, SkipMissing, 0), nil
	}
	content, err := src.Bytes()
	if err != nil {
		return r, c.fail(phase, name, err)
	}
	r.OriginalSize = len(content)

	if int64(len(content)) < c.config.Threshold {
		return c.skip(phase, r, SkipBelowThreshold, 0), nil
	}
	if c.config.SkipPrecompressed {
		if _, ok := IsCompressed(content); ok {
			return c.skip(phase, r, SkipPrecompressed, 0), nil
		}
	}

	start := time.Now()
	out, err := c.codec.Compress(content)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		return r, c.fail(phase, name, fmt.Errorf("%w: %w", ErrCodecFailed, err))
	}
	r.CompressedSize = len(out)

	if len(content) == 0 || float64(len(out))/float64(len(content)) > c.config.MinRatio {
		return c.skip(phase, r, SkipRatio, elapsed), nil
	}

	r.Output = OutputName(c.template, name)

	if c.config.DeleteOriginals {
		p, _ := splitName(name)
		queue.Push(filepath.Join(c.config.OutputDir, filepath.FromSlash(p)))
	}

	assets.Set(r.Output, RawSource(out))

	c.mu.RLock()
	atomic.AddInt64(&c.stats.AssetsCompressed, 1)
	atomic.AddInt64(&c.stats.BytesIn, int64(r.OriginalSize))
	atomic.AddInt64(&c.stats.BytesOut, int64(r.CompressedSize))
	c.mu.RUnlock()
	c.metrics.recordAsset(phase, c.algorithmLabel(), r, elapsed)

	c.log.Debug().
		Str("phase", string(phase)).
		Str("asset", name).
		Str("output", r.Output).
		Int("original_size", r.OriginalSize).
		Int("compressed_size", r.CompressedSize).
		Float64("ratio", r.Ratio()).
		Msg("compressed asset")

	return r, nil
}

func (c *Compressor) skip(phase Phase, r Result, reason SkipReason, elapsed float64) Result {
	r.Skipped = reason

	c.mu.RLock()
	atomic.AddInt64(&c.stats.AssetsSkipped, 1)
	c.stats.IncrementSkipCount(reason)
	c.mu.RUnlock()
	c.metrics.recordAsset(phase, c.algorithmLabel(), r, elapsed)

	c.log.Debug().
		Str("phase", string(phase)).
		Str("asset", r.Name).
		Str("reason", string(reason)).
		Int("original_size", r.OriginalSize).
		Int("compressed_size", r.CompressedSize).
		Msg("skipped asset")
	return r
}

func (c *Compressor) fail(phase Phase, name string, err error) error {
	c.mu.RLock()
	atomic.AddInt64(&c.stats.AssetsFailed, 1)
	c.mu.RUnlock()
	c.metrics.recordFailure(phase)

	c.log.Error().Err(err).
		Str("phase", string(phase)).
		Str("asset", name).
		Msg("asset compression failed")
	return &AssetError{Phase: phase, Name: name, Err: err}
}

func (c *Compressor) algorithmLabel() string {
	if c.config.Codec != nil {
		return "custom"
	}
	return string(c.config.Algorithm)
}

// OptimizeAssets compresses every asset selected by the Test patterns.
func (c *Compressor) OptimizeAssets(ctx context.Context, assets *AssetMap, queue *DeletionQueue) error {
	return c.runPhase(ctx, PhaseOptimizeAssets, c.test, assets, queue)
}

// Emit compresses every asset selected by the TestHTML patterns, seeing
// the asset map as the optimize phase left it.
func (c *Compressor) Emit(ctx context.Context, assets *AssetMap, queue *DeletionQueue) error {
	return c.runPhase(ctx, PhaseEmit, c.testHTML, assets, queue)
}

// runPhase compresses the selected assets concurrently. Names are
// snapshotted first so outputs inserted by this phase are not revisited.
// The first failure cancels tasks that have not reached their codec yet;
// every failure is returned in a *PhaseError. Inserted assets are kept.
func (c *Compressor) runPhase(ctx context.Context, phase Phase, m Matcher, assets *AssetMap, queue *DeletionQueue) error {
	if c.config.DeleteOriginals && queue == nil {
		return ErrQueueRequired
	}
	start := time.Now()

	var selected []string
	for _, name := range assets.Names() {
		if m.Match(name) {
			selected = append(selected, name)
		}
	}

	var (
		mu         sync.Mutex
		errs       []*AssetError
		compressed atomic.Int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)
	for _, name := range selected {
		g.Go(func() error {
			r, err := c.compressAsset(gctx, phase, assets, name, queue)
			if err != nil {
				var ae *AssetError
				if !errors.As(err, &ae) {
					ae = &AssetError{Phase: phase, Name: name, Err: err}
				}
				mu.Lock()
				errs = append(errs, ae)
				mu.Unlock()
				return err
			}
			if r.Compressed() {
				compressed.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	duration := time.Since(start)
	c.metrics.recordPhase(phase, duration.Seconds())
	c.log.Info().
		Str("phase", string(phase)).
		Int("selected", len(selected)).
		Int64("compressed", compressed.Load()).
		Int("failed", len(errs)).
		Dur("duration", duration).
		Msg("phase complete")

	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Name < errs[j].Name })
		pe := &PhaseError{Phase: phase, Errors: make([]error, len(errs))}
		for i, e := range errs {
			pe.Errors[i] = e
		}
		return pe
	}
	return ctx.Err()
}

// Done removes every original queued during the build. It drains queue,
// so a second call does nothing. Removal failures are logged and
// reported, never returned as errors.
func (c *Compressor) Done(ctx context.Context, queue *DeletionQueue) DeletionReport {
	var report DeletionReport
	if queue == nil {
		return report
	}

	paths := queue.Drain()
	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			for _, rest := range paths[i:] {
				report.Failed = append(report.Failed, DeletionFailure{Path: rest, Err: err})
			}
			c.log.Warn().Err(err).Int("remaining", len(paths)-i).Msg("deletion interrupted")
			break
		}

		err := c.fs.Remove(p)
		switch {
		case err == nil:
			report.Deleted = append(report.Deleted, p)
			c.metrics.recordDeletion("deleted")
			c.log.Debug().Str("path", p).Msg("deleted original")
		case errors.Is(err, fs.ErrNotExist):
			report.Missing = append(report.Missing, p)
			c.metrics.recordDeletion("missing")
			c.log.Debug().Str("path", p).Msg("original already removed")
		default:
			report.Failed = append(report.Failed, DeletionFailure{Path: p, Err: err})
			c.metrics.recordDeletion("failed")
			c.log.Warn().Err(err).Str("path", p).Msg("failed to delete original")
		}
	}

	c.mu.RLock()
	atomic.AddInt64(&c.stats.FilesDeleted, int64(len(report.Deleted)))
	atomic.AddInt64(&c.stats.DeletionsFailed, int64(len(report.Failed)))
	c.mu.RUnlock()

	c.log.Info().
		Str("phase", string(PhaseDone)).
		Int("deleted", len(report.Deleted)).
		Int("missing", len(report.Missing)).
		Int("failed", len(report.Failed)).
		Msg("phase complete")
	return report
}
