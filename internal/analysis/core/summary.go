// Filename: core/summary.go
// Function summaries are the interprocedural currency of the engine: each
// analyzed unit yields one, and call sites apply them instead of re-analyzing
// callee bodies.
package core

import "github.com/xkilldash9x/lancet-sast/api/schemas"

// FunctionSummary describes the taint behavior of one analysis unit: how each
// parameter's taint maps to the return value and to sinks reached inside the
// body. Summaries are immutable once published and shared read-only across
// call sites.
type FunctionSummary struct {
	// UnitID is the unit's qualified name.
	UnitID string
	// ContentHash identifies the exact source the summary was derived from.
	// A summary is recomputed if and only if this hash changes.
	ContentHash string

	// ReturnBase is the return taint independent of any parameter: the level
	// contributed by sources inside the body itself.
	ReturnBase TaintLevel
	// ParamToReturn marks parameters whose taint flows to the return value.
	ParamToReturn map[int]bool
	// ParamSinks maps a parameter index to the sinks its taint reaches
	// inside the body. Call sites report these against their own argument
	// taint.
	ParamSinks map[int][]SinkUse
	// SinksReached lists sinks fed purely from inside the body, for
	// diagnostics; the owning unit reports them itself.
	SinksReached []SinkUse

	// LowConfidence marks summaries derived from malformed or abandoned
	// units; callers fall back to the conservative opaque-call rule.
	LowConfidence bool
	Diagnostics   []schemas.Warning
}

// NewFunctionSummary initializes an empty summary for a unit.
func NewFunctionSummary(unitID, contentHash string) *FunctionSummary {
	return &FunctionSummary{
		UnitID:        unitID,
		ContentHash:   contentHash,
		ReturnBase:    Untainted,
		ParamToReturn: make(map[int]bool),
		ParamSinks:    make(map[int][]SinkUse),
	}
}

// ApplyReturn computes the call result taint for the given argument levels.
func (s *FunctionSummary) ApplyReturn(argLevels []TaintLevel) TaintLevel {
	if s.LowConfidence {
		// Degraded summary: behave like an opaque call.
		result := Unknown
		for _, lvl := range argLevels {
			result = Join(result, lvl)
		}
		return result
	}
	result := s.ReturnBase
	for i, lvl := range argLevels {
		if s.ParamToReturn[i] {
			result = Join(result, lvl)
		}
	}
	return result
}

// SummaryProvider resolves callee names to published summaries. The flow
// analyzer treats a failed lookup as an opaque call.
type SummaryProvider interface {
	Lookup(name string) (*FunctionSummary, bool)
}

// NoSummaries is a SummaryProvider with nothing in it, used for single-unit
// entry points that run without interprocedural context.
type NoSummaries struct{}

func (NoSummaries) Lookup(string) (*FunctionSummary, bool) { return nil, false }
