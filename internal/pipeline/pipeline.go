// Package pipeline sequences the pointer lowering stages over a module:
// staged type decomposition, pointer analysis, per-site load/store lowering,
// and cast reconciliation.
package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/tliron/commonlog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/xujh333/triton-shared/internal/diag"
	"github.com/xujh333/triton-shared/internal/ir"
	"github.com/xujh333/triton-shared/internal/memlower"
	"github.com/xujh333/triton-shared/internal/observ"
	"github.com/xujh333/triton-shared/internal/ptranalysis"
	"github.com/xujh333/triton-shared/internal/rewrite"
	"github.com/xujh333/triton-shared/internal/source"
)

var log = commonlog.GetLogger("triton.pipeline")

// Result carries the lowered module plus everything observable about a run.
type Result struct {
	// Module is the lowered module: the input (mutated in place), or a
	// decoded snapshot on a cache hit.
	Module *ir.Module
	// Bag collects every diagnostic the stages reported.
	Bag *diag.Bag
	// Stats aggregates access-site outcomes across all functions.
	Stats memlower.Stats
	// SiteErrs combines per-function partial-lowering failures; nil when the
	// whole module lowered.
	SiteErrs error
	// Timings reports per-phase durations.
	Timings   observ.Report
	FromCache bool
}

// Run lowers every function of m in place. Structural conversion failures
// and leftover bridging casts abort the run; per-site lowering failures are
// combined into Result.SiteErrs unless Options.StrictSites promotes them.
func Run(m *ir.Module, opts Options) (*Result, error) {
	bagCap := opts.MaxDiagnostics
	if bagCap <= 0 {
		bagCap = DefaultOptions().MaxDiagnostics
	}
	res := &Result{Module: m, Bag: diag.NewBag(bagCap)}
	rep := diag.NewDedupReporter(diag.BagReporter{Bag: res.Bag})
	timer := observ.NewTimer()

	var cache *Cache
	var key [sha256.Size]byte
	if opts.CacheEnabled {
		var err error
		cache, err = OpenCache(opts.CacheDir)
		if err != nil {
			log.Warningf("cache disabled: %s", err)
		} else {
			key = Key(m)
			if cached, ok := cache.Get(key); ok {
				log.Debugf("cache hit for module %s", m.Name)
				res.Module = cached
				res.FromCache = true
				res.Timings = timer.Report()
				return res, nil
			}
		}
	}

	phase := timer.Begin("verify-input")
	if err := ir.Verify(m); err != nil {
		return nil, fmt.Errorf("pipeline: input module: %w", err)
	}
	timer.End(phase, "")

	for _, f := range m.Funcs {
		if err := lowerFunc(m, f, rep, timer, res); err != nil {
			return nil, err
		}
	}

	phase = timer.Begin("verify-output")
	g, _ := errgroup.WithContext(context.Background())
	for _, f := range m.Funcs {
		f := f
		g.Go(func() error { return ir.VerifyFunc(f, m.Types) })
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pipeline: output module: %w", err)
	}
	timer.End(phase, "")

	if res.SiteErrs == nil {
		if err := ir.VerifyLowered(m); err != nil {
			return nil, fmt.Errorf("pipeline: lowering contract: %w", err)
		}
		if cache != nil {
			if err := cache.Put(key, m); err != nil {
				log.Warningf("cache write failed: %s", err)
			}
		}
	} else if opts.StrictSites {
		res.Timings = timer.Report()
		return res, fmt.Errorf("pipeline: %w", res.SiteErrs)
	}
	res.Timings = timer.Report()
	return res, nil
}

func lowerFunc(m *ir.Module, f *ir.Func, rep diag.Reporter, timer *observ.Timer, res *Result) error {
	phase := timer.Begin("decompose " + f.Name)
	if err := rewrite.ApplyStructuralConversion(f, rewrite.NewTupleStage(m.Types)); err != nil {
		diag.ReportError(rep, diag.ConvStructuralFailure, source.NoSpan, err.Error())
		return fmt.Errorf("pipeline: %s: %w", f.Name, err)
	}
	rewrite.Canonicalize(f)
	if err := rewrite.ApplyStructuralConversion(f, rewrite.NewFlattenStage(m.Types)); err != nil {
		diag.ReportError(rep, diag.ConvStructuralFailure, source.NoSpan, err.Error())
		return fmt.Errorf("pipeline: %s: %w", f.Name, err)
	}
	// No canonicalization from here until the placeholders are resolved:
	// get_structured_state results look dead to DCE before the analysis.
	rewrite.Reconcile(f)
	timer.End(phase, "")

	phase = timer.Begin("analyze " + f.Name)
	pres := ptranalysis.Run(m, f, rep)
	timer.End(phase, fmt.Sprintf("%d states", len(pres.States)))

	phase = timer.Begin("lower " + f.Name)
	stats := memlower.Run(m, f, pres.States, rep)
	res.Stats.Lowered += stats.Lowered
	res.Stats.Skipped += stats.Skipped
	rewrite.Canonicalize(f)
	leftovers := rewrite.Reconcile(f)
	memlower.RetypePointers(m.Types, f)
	timer.End(phase, "")

	if pres.Unresolved > 0 || stats.Skipped > 0 {
		res.SiteErrs = multierr.Append(res.SiteErrs, fmt.Errorf(
			"function %s: %d unresolved pointers, %d access sites kept",
			f.Name, pres.Unresolved, stats.Skipped))
		log.Warningf("function %s lowered partially", f.Name)
		return nil
	}
	if len(leftovers) > 0 {
		return fmt.Errorf("pipeline: %s: %d bridging casts left after reconciliation", f.Name, len(leftovers))
	}
	return nil
}
