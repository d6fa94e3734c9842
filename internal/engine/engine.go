// Filename: engine/engine.go
// The analysis engine is the orchestrator behind the four public operations.
// It owns the run-scoped immutable pieces (catalog, analyzer, verifier), the
// shared summary cache, and the aggregation of per-unit outputs into one
// serializable result.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-sast/api/schemas"
	"github.com/xkilldash9x/lancet-sast/internal/analysis/core"
	"github.com/xkilldash9x/lancet-sast/internal/analysis/static/javascript"
	"github.com/xkilldash9x/lancet-sast/internal/analysis/summary"
	"github.com/xkilldash9x/lancet-sast/internal/analysis/verifier"
	"github.com/xkilldash9x/lancet-sast/internal/config"
)

// Engine coordinates parsing, flow analysis, interprocedural resolution and
// invariant verification over batches of units. One Engine serves one
// configuration; all public methods are safe for concurrent use.
type Engine struct {
	logger   *zap.Logger
	cfg      config.Interface
	catalog  *core.Catalog
	analyzer *javascript.Analyzer
	verifier *verifier.Verifier
	cache    summary.Cache
}

// New builds an engine from configuration. cache may be nil, in which case
// summaries are cached in process memory only.
func New(logger *zap.Logger, cfg config.Interface, cache summary.Cache) (*Engine, error) {
	catalog, err := buildCatalog(cfg.Catalog())
	if err != nil {
		return nil, fmt.Errorf("engine: invalid catalog configuration: %w", err)
	}
	if cache == nil {
		cache = summary.NewMemoryCache()
	}

	log := logger.Named("engine")
	return &Engine{
		logger:   log,
		cfg:      cfg,
		catalog:  catalog,
		analyzer: javascript.NewAnalyzer(log, catalog, cfg.Engine().LoopIterationCap),
		verifier: verifier.New(buildSeverityMap(cfg.Engine().Severity)),
		cache:    cache,
	}, nil
}

// Catalog exposes the engine's immutable pattern catalog.
func (e *Engine) Catalog() *core.Catalog { return e.catalog }

// AnalyzeAtCompileTime analyzes a batch: every valid unit goes through flow
// analysis on a bounded worker pool, summaries resolve across units, and the
// verifier reduces all recorded sink uses into sorted issues.
//
// A nil unit list is the single hard invocation error. Everything else
// degrades per unit: invalid units are skipped with a warning, malformed and
// timed-out units report Unknown bindings, and the batch always completes.
func (e *Engine) AnalyzeAtCompileTime(ctx context.Context, units []schemas.UnitSource) (*schemas.AnalysisResult, error) {
	start := time.Now()

	if units == nil {
		return nil, summary.ErrNoUnits
	}

	valid, skipWarnings := partitionUnits(units)
	e.logger.Info("Starting batch analysis",
		zap.Int("units", len(valid)),
		zap.Int("skipped", len(skipWarnings)),
	)

	resolution, err := e.resolver().Resolve(ctx, valid)
	if err != nil {
		return nil, err
	}

	result := e.aggregate(resolution.Results, skipWarnings)
	result.ExecutionTimeMs = time.Since(start).Milliseconds()

	e.logger.Info("Batch analysis complete",
		zap.Int("issues", len(result.Issues)),
		zap.Int("warnings", len(result.Warnings)),
		zap.Int("passes", resolution.Passes),
		zap.Int64("elapsed_ms", result.ExecutionTimeMs),
	)
	return result, nil
}

// InferTaintLevels runs flow analysis for a single unit with no
// interprocedural context and returns its final binding assignment.
func (e *Engine) InferTaintLevels(ctx context.Context, unit schemas.UnitSource) (map[string]core.TaintLevel, error) {
	analysis, err := e.analyzeSingle(ctx, unit)
	if err != nil {
		return nil, err
	}
	return analysis.Levels, nil
}

// VerifyInvariants analyzes one unit and verifies its sink uses.
func (e *Engine) VerifyInvariants(ctx context.Context, unit schemas.UnitSource) ([]schemas.SecurityIssue, error) {
	analysis, err := e.analyzeSingle(ctx, unit)
	if err != nil {
		return nil, err
	}
	return e.verifier.Verify(analysis.SinkUses), nil
}

// InferSecurityTypes exposes the per-binding assignment plus inference-rate
// statistics for the accuracy-evaluation harness.
func (e *Engine) InferSecurityTypes(ctx context.Context, unit schemas.UnitSource) (*schemas.TypeInference, error) {
	analysis, err := e.analyzeSingle(ctx, unit)
	if err != nil {
		return nil, err
	}

	assignments := make(map[string]string, len(analysis.Levels))
	stats := schemas.Statistics{}
	for name, level := range analysis.Levels {
		assignments[name] = level.String()
		stats.TotalVariables++
		if level.IsConcrete() {
			stats.AutomaticallyInferred++
		} else {
			stats.UnknownCount++
		}
	}
	return &schemas.TypeInference{Assignments: assignments, Statistics: stats}, nil
}

func (e *Engine) analyzeSingle(ctx context.Context, unit schemas.UnitSource) (*javascript.Analysis, error) {
	unitCtx, cancel := context.WithTimeout(ctx, e.cfg.Engine().UnitTimeout)
	defer cancel()

	analysis, err := e.analyzer.AnalyzeUnit(unitCtx, unit, nil, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Warn("Unit abandoned after exceeding time budget", zap.String("unit", unit.Name))
		return &javascript.Analysis{
			UnitID:        unit.Name,
			File:          unit.FilePath,
			Levels:        map[string]core.TaintLevel{},
			Warnings:      []schemas.Warning{{Unit: unit.Name, Kind: "timeout", Message: "analysis exceeded the per-unit time budget"}},
			LowConfidence: true,
		}, nil
	}
	return analysis, nil
}

func (e *Engine) resolver() *summary.Resolver {
	ec := e.cfg.Engine()
	return summary.NewResolver(e.logger, e.analyzer, e.cache, summary.Options{
		Workers:     ec.EffectiveWorkers(),
		UnitTimeout: ec.UnitTimeout,
		Passes:      ec.ResolutionPasses,
	})
}

// partitionUnits filters out units that cannot produce a syntax tree at all:
// no name or no content. Each skip is a warning, never an error.
func partitionUnits(units []schemas.UnitSource) ([]schemas.UnitSource, []schemas.Warning) {
	valid := make([]schemas.UnitSource, 0, len(units))
	var warnings []schemas.Warning
	for _, unit := range units {
		switch {
		case unit.Name == "":
			warnings = append(warnings, schemas.Warning{
				Unit: unit.FilePath, Kind: "skipped", Message: "unit has no name",
			})
		case unit.Content == "":
			warnings = append(warnings, schemas.Warning{
				Unit: unit.Name, Kind: "skipped", Message: "unit has no source content",
			})
		default:
			valid = append(valid, unit)
		}
	}
	return valid, warnings
}

// aggregate is the single-threaded reduction over completed per-unit
// outputs. Its output is independent of worker completion order: bindings
// are keyed deterministically, issues are sorted by location, warnings by
// unit and kind.
func (e *Engine) aggregate(results []*javascript.Analysis, skipWarnings []schemas.Warning) *schemas.AnalysisResult {
	var uses []core.SinkUse
	warnings := append([]schemas.Warning{}, skipWarnings...)
	levels := make(map[string]string)
	stats := schemas.Statistics{}

	for _, analysis := range results {
		if analysis == nil {
			continue
		}
		uses = append(uses, analysis.SinkUses...)
		warnings = append(warnings, analysis.Warnings...)
		for name, level := range analysis.Levels {
			levels[analysis.UnitID+"."+name] = level.String()
			stats.TotalVariables++
			if level.IsConcrete() {
				stats.AutomaticallyInferred++
			} else {
				stats.UnknownCount++
			}
		}
	}

	sort.Slice(warnings, func(i, j int) bool {
		if warnings[i].Unit != warnings[j].Unit {
			return warnings[i].Unit < warnings[j].Unit
		}
		if warnings[i].Kind != warnings[j].Kind {
			return warnings[i].Kind < warnings[j].Kind
		}
		return warnings[i].Message < warnings[j].Message
	})

	return &schemas.AnalysisResult{
		Issues:      e.verifier.Verify(uses),
		TaintLevels: levels,
		Statistics:  stats,
		Warnings:    warnings,
		// Static analysis only: nothing is instrumented, nothing executes.
		RuntimeImpact: 0,
	}
}
