// Filename: summary/resolver.go
// The interprocedural resolver: analyzes a batch of units over a bounded
// worker pool, publishes function summaries between passes, and re-analyzes
// units whose unresolved callees gained a summary. Passes are capped;
// whatever is still unresolved afterwards stays under the opaque-call rule.
package summary

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/lancet-sast/api/schemas"
	"github.com/xkilldash9x/lancet-sast/internal/analysis/core"
	"github.com/xkilldash9x/lancet-sast/internal/analysis/static/javascript"
)

// ErrNoUnits is the single hard invocation error: a nil unit list cannot be
// analyzed. An empty non-nil list is a valid no-op batch.
var ErrNoUnits = errors.New("summary: unit list is nil")

// Options tune one resolution run.
type Options struct {
	// Workers bounds concurrent unit analyses; 0 means GOMAXPROCS.
	Workers int
	// UnitTimeout is the per-unit time budget. A unit exceeding it is
	// abandoned with a warning; the batch continues.
	UnitTimeout time.Duration
	// Passes caps summary resolution rounds.
	Passes int
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.UnitTimeout <= 0 {
		o.UnitTimeout = 5 * time.Second
	}
	if o.Passes < 1 {
		o.Passes = 3
	}
	return o
}

// Cache persists completed unit analyses keyed by unit id and source content
// hash. A hit means the unit's content is unchanged since the cached run, so
// the whole analysis (levels, sink uses, summary) is reused and the unit is
// never re-parsed or re-walked; a unit is recomputed if and only if its hash
// differs. Implementations must be safe for concurrent use. Cache failures
// are logged and ignored: the cache is an optimization, never a correctness
// dependency.
type Cache interface {
	Get(ctx context.Context, unitID, contentHash string) (*javascript.Analysis, bool, error)
	Put(ctx context.Context, unitID, contentHash string, a *javascript.Analysis) error
}

// UnitAnalyzer is the single-unit analysis dependency of the resolver.
// *javascript.Analyzer is the production implementation.
type UnitAnalyzer interface {
	AnalyzeUnit(ctx context.Context, unit schemas.UnitSource, summaries core.SummaryProvider, paramTaints map[int]core.TaintLevel) (*javascript.Analysis, error)
}

// Resolution is the outcome of a full multi-pass run.
type Resolution struct {
	// Results holds the final analysis per unit, in input order.
	Results []*javascript.Analysis
	// Summaries is the final published summary set.
	Summaries map[string]*core.FunctionSummary
	// Passes is the number of passes actually executed.
	Passes int
}

// snapshot is the frozen summary table a single pass reads. Freezing the
// table per pass keeps results independent of worker scheduling: every unit
// in a pass sees the same summaries no matter which worker runs it first.
type snapshot map[string]*core.FunctionSummary

func (s snapshot) Lookup(name string) (*core.FunctionSummary, bool) {
	summary, ok := s[name]
	return summary, ok
}

// Resolver drives the analyze-publish-reanalyze cycle.
type Resolver struct {
	logger   *zap.Logger
	analyzer UnitAnalyzer
	cache    Cache
	opts     Options
}

// NewResolver creates a resolver. cache may be nil to disable persistence.
func NewResolver(logger *zap.Logger, analyzer UnitAnalyzer, cache Cache, opts Options) *Resolver {
	return &Resolver{
		logger:   logger.Named("resolver"),
		analyzer: analyzer,
		cache:    cache,
		opts:     opts.withDefaults(),
	}
}

// Resolve analyzes the batch to a fixed point of summary knowledge, bounded
// by the pass cap. Per-unit anomalies degrade into warnings on the affected
// unit; the only returned errors are a nil unit list and cancellation of the
// parent context.
func (r *Resolver) Resolve(ctx context.Context, units []schemas.UnitSource) (*Resolution, error) {
	if units == nil {
		return nil, ErrNoUnits
	}

	hashes := make([]string, len(units))
	for i, unit := range units {
		hashes[i] = ContentHash(unit.Content)
	}

	results := make([]*javascript.Analysis, len(units))
	fromCache := make([]bool, len(units))
	table := r.preload(ctx, units, hashes, results, fromCache)

	var toRun []int
	for i := range units {
		if !fromCache[i] {
			toRun = append(toRun, i)
		}
	}

	pass := 0
	for pass < r.opts.Passes && len(toRun) > 0 {
		pass++
		frozen := snapshot(table)

		if err := r.runPass(ctx, units, toRun, frozen, results); err != nil {
			return nil, err
		}

		// Publish between passes only; see snapshot.
		published := make(map[string]bool)
		for _, i := range toRun {
			analysis := results[i]
			if analysis.Summary == nil {
				continue
			}
			analysis.Summary.ContentHash = hashes[i]
			prev, had := table[analysis.UnitID]
			if !had || !summariesEquivalent(prev, analysis.Summary) {
				published[analysis.UnitID] = true
			}
			table[analysis.UnitID] = analysis.Summary
		}

		toRun = r.schedule(results, fromCache, published)
		r.logger.Debug("Resolution pass complete",
			zap.Int("pass", pass),
			zap.Int("published", len(published)),
			zap.Int("rescheduled", len(toRun)),
		)
	}

	// Write back each unit's final analysis once resolution has settled, so
	// a later run with identical content skips the unit outright. Degraded
	// analyses are not cached: a parse failure or timeout should be retried,
	// not replayed.
	for i, analysis := range results {
		if fromCache[i] || analysis == nil || analysis.LowConfidence {
			continue
		}
		r.persist(ctx, units[i].Name, hashes[i], analysis)
	}

	return &Resolution{Results: results, Summaries: table, Passes: pass}, nil
}

// runPass analyzes the selected units concurrently against a frozen table.
func (r *Resolver) runPass(ctx context.Context, units []schemas.UnitSource, toRun []int, frozen snapshot, results []*javascript.Analysis) error {
	sem := semaphore.NewWeighted(int64(r.opts.Workers))
	group, groupCtx := errgroup.WithContext(ctx)

	for _, i := range toRun {
		if err := sem.Acquire(groupCtx, 1); err != nil {
			break
		}
		idx := i
		group.Go(func() error {
			defer sem.Release(1)
			results[idx] = r.analyzeOne(groupCtx, units[idx], frozen)
			return groupCtx.Err()
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// analyzeOne runs a single unit under its time budget. A timeout abandons
// the unit with Unknown levels and a warning rather than failing the batch.
func (r *Resolver) analyzeOne(ctx context.Context, unit schemas.UnitSource, frozen snapshot) *javascript.Analysis {
	unitCtx, cancel := context.WithTimeout(ctx, r.opts.UnitTimeout)
	defer cancel()

	analysis, err := r.analyzer.AnalyzeUnit(unitCtx, unit, frozen, nil)
	if err == nil {
		return analysis
	}
	if ctx.Err() != nil {
		// Parent cancellation; runPass reports it.
		return abandonedAnalysis(unit, "analysis cancelled")
	}

	r.logger.Warn("Unit abandoned after exceeding time budget",
		zap.String("unit", unit.Name),
		zap.Duration("budget", r.opts.UnitTimeout),
	)
	return abandonedAnalysis(unit, "analysis exceeded the per-unit time budget")
}

func abandonedAnalysis(unit schemas.UnitSource, reason string) *javascript.Analysis {
	summary := core.NewFunctionSummary(unit.Name, "")
	summary.LowConfidence = true
	return &javascript.Analysis{
		UnitID:        unit.Name,
		File:          unit.FilePath,
		Levels:        map[string]core.TaintLevel{},
		Summary:       summary,
		Warnings:      []schemas.Warning{{Unit: unit.Name, Kind: "timeout", Message: reason}},
		LowConfidence: true,
	}
}

// schedule selects units for the next pass: those with a callee, resolved or
// not, whose summary was just published or republished with new facts. Units
// served from the cache stay settled; their content is unchanged, so their
// cached resolution stands.
func (r *Resolver) schedule(results []*javascript.Analysis, fromCache []bool, published map[string]bool) []int {
	if len(published) == 0 {
		return nil
	}
	var next []int
	for i, analysis := range results {
		if analysis == nil || fromCache[i] {
			continue
		}
		if dependsOn(analysis.Unresolved, published) || dependsOn(analysis.Callees, published) {
			next = append(next, i)
		}
	}
	return next
}

func dependsOn(names []string, published map[string]bool) bool {
	for _, name := range names {
		if published[name] {
			return true
		}
	}
	return false
}

// preload serves unchanged units from the cache: a hit installs the cached
// analysis as the unit's final result and its summary as first-pass context,
// and the unit is excluded from every pass of this run.
func (r *Resolver) preload(ctx context.Context, units []schemas.UnitSource, hashes []string, results []*javascript.Analysis, fromCache []bool) map[string]*core.FunctionSummary {
	table := make(map[string]*core.FunctionSummary, len(units))
	if r.cache == nil {
		return table
	}
	for i, unit := range units {
		cached, ok, err := r.cache.Get(ctx, unit.Name, hashes[i])
		if err != nil {
			r.logger.Warn("Summary cache read failed", zap.String("unit", unit.Name), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		results[i] = cached
		fromCache[i] = true
		if cached.Summary != nil {
			table[unit.Name] = cached.Summary
		}
	}
	return table
}

func (r *Resolver) persist(ctx context.Context, unitID, hash string, a *javascript.Analysis) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Put(ctx, unitID, hash, a); err != nil {
		r.logger.Warn("Summary cache write failed", zap.String("unit", unitID), zap.Error(err))
	}
}

// summariesEquivalent reports whether a republished summary carries the same
// interprocedural facts, in which case dependents need no re-analysis.
func summariesEquivalent(a, b *core.FunctionSummary) bool {
	if a.ReturnBase != b.ReturnBase || a.LowConfidence != b.LowConfidence {
		return false
	}
	if len(a.ParamToReturn) != len(b.ParamToReturn) || len(a.ParamSinks) != len(b.ParamSinks) {
		return false
	}
	for i, v := range a.ParamToReturn {
		if b.ParamToReturn[i] != v {
			return false
		}
	}
	for i, uses := range a.ParamSinks {
		if len(b.ParamSinks[i]) != len(uses) {
			return false
		}
	}
	return true
}

// ContentHash returns the hex sha256 of a unit's source, the cache key for
// derived summaries.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
