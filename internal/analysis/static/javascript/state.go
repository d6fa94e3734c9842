// Filename: javascript/state.go
// The abstract state model for flow-sensitive taint inference: a TaintState
// maps variable bindings to lattice levels at one program point.
package javascript

import (
	"sort"

	"github.com/xkilldash9x/lancet-sast/api/schemas"
	"github.com/xkilldash9x/lancet-sast/internal/analysis/core"
)

// binding tracks one variable's taint level plus the location of the
// assignment that last changed it, for taint-path reporting.
type binding struct {
	Level      core.TaintLevel
	AssignedAt schemas.Location
}

// TaintState is the taint environment at one program point. States are
// logically immutable values: every control-flow split works on a clone and
// merges produce a fresh state, so no two program points alias the same map.
type TaintState struct {
	bindings map[string]binding
}

// NewTaintState returns an empty environment.
func NewTaintState() *TaintState {
	return &TaintState{bindings: make(map[string]binding)}
}

// Get returns the binding's current level; names never assigned are Unknown,
// the pre-inference default.
func (s *TaintState) Get(name string) core.TaintLevel {
	if b, ok := s.bindings[name]; ok {
		return b.Level
	}
	return core.Unknown
}

// Has reports whether the name is bound at this point.
func (s *TaintState) Has(name string) bool {
	_, ok := s.bindings[name]
	return ok
}

// AssignedAt returns the location of the binding's last assignment.
func (s *TaintState) AssignedAt(name string) (schemas.Location, bool) {
	if b, ok := s.bindings[name]; ok {
		return b.AssignedAt, true
	}
	return schemas.Location{}, false
}

// Set records a strong update of the binding at the given location.
func (s *TaintState) Set(name string, level core.TaintLevel, at schemas.Location) {
	s.bindings[name] = binding{Level: level, AssignedAt: at}
}

// Weaken joins the given level into the binding without overwriting its
// assignment site, used for side effects on receivers of opaque calls.
func (s *TaintState) Weaken(name string, level core.TaintLevel) {
	b := s.bindings[name]
	b.Level = core.Join(b.Level, level)
	s.bindings[name] = b
}

// Clone returns an independent copy for analyzing one side of a branch.
func (s *TaintState) Clone() *TaintState {
	next := make(map[string]binding, len(s.bindings))
	for k, v := range s.bindings {
		next[k] = v
	}
	return &TaintState{bindings: next}
}

// Join merges two states at a control-flow join point. A name bound on only
// one side keeps its level: the other side contributes Unknown, which is
// absorbed.
func (s *TaintState) Join(other *TaintState) *TaintState {
	merged := s.Clone()
	for name, ob := range other.bindings {
		if mb, ok := merged.bindings[name]; ok {
			mb.Level = mergeLevels(mb.Level, ob.Level)
			merged.bindings[name] = mb
		} else {
			merged.bindings[name] = ob
		}
	}
	return merged
}

// mergeLevels is the per-binding merge at control-flow joins. It follows the
// lattice join except for one path-sensitivity refinement: a value that is
// DefinitelyTainted on one incoming path and Untainted on another is tainted
// on some but not all paths, which is exactly PossiblyTainted.
func mergeLevels(a, b core.TaintLevel) core.TaintLevel {
	if (a == core.Untainted && b == core.DefinitelyTainted) ||
		(a == core.DefinitelyTainted && b == core.Untainted) {
		return core.PossiblyTainted
	}
	return core.Join(a, b)
}

// Equal reports whether two states assign identical levels to identical
// bindings. Assignment sites are ignored: fixed-point detection cares about
// levels only.
func (s *TaintState) Equal(other *TaintState) bool {
	if len(s.bindings) != len(other.bindings) {
		return false
	}
	for name, b := range s.bindings {
		ob, ok := other.bindings[name]
		if !ok || ob.Level != b.Level {
			return false
		}
	}
	return true
}

// ChangedFrom lists bindings whose level differs from the previous state, in
// sorted order for deterministic diagnostics.
func (s *TaintState) ChangedFrom(prev *TaintState) []string {
	var changed []string
	for name, b := range s.bindings {
		if pb, ok := prev.bindings[name]; !ok || pb.Level != b.Level {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}

// Levels exports the final per-binding assignment.
func (s *TaintState) Levels() map[string]core.TaintLevel {
	out := make(map[string]core.TaintLevel, len(s.bindings))
	for name, b := range s.bindings {
		out[name] = b.Level
	}
	return out
}

// Len reports the number of bindings tracked.
func (s *TaintState) Len() int { return len(s.bindings) }
