// Package core holds the definitions shared by every stage of the taint
// analysis: the taint lattice and the source/sink/sanitizer catalog. Both are
// pure and immutable for the duration of a run, so they can be read from any
// number of workers without locking.
package core

// TaintLevel is the abstract taint status of a value. The concrete levels
// form a join-semilattice ordered Untainted < PossiblyTainted <
// DefinitelyTainted; Unknown is a distinguished pre-inference default that is
// absorbed by any concrete level.
type TaintLevel int

const (
	// Unknown is the input default before inference runs. It is never the
	// result of a completed inference unless analysis was abandoned.
	Unknown TaintLevel = iota
	// Untainted marks a value with no attacker influence.
	Untainted
	// PossiblyTainted marks a value that is attacker-influenced on at least
	// one control-flow path.
	PossiblyTainted
	// DefinitelyTainted marks a value that is attacker-influenced on every
	// path that produces it.
	DefinitelyTainted
)

var levelNames = map[TaintLevel]string{
	Unknown:           "UNKNOWN",
	Untainted:         "UNTAINTED",
	PossiblyTainted:   "POSSIBLY_TAINTED",
	DefinitelyTainted: "DEFINITELY_TAINTED",
}

func (l TaintLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsConcrete reports whether the level is a real lattice element rather than
// the pre-inference default.
func (l TaintLevel) IsConcrete() bool {
	return l == Untainted || l == PossiblyTainted || l == DefinitelyTainted
}

// Join returns the least upper bound of two levels: the most conservative of
// the pair. Unknown is absorbed by any concrete level and only survives when
// both sides are Unknown. Join is total and cannot fail.
func Join(a, b TaintLevel) TaintLevel {
	if a == Unknown {
		return b
	}
	if b == Unknown {
		return a
	}
	if a >= b {
		return a
	}
	return b
}

// Leq reports whether a is at or below b in the lattice order. Unknown sits
// below every concrete level so that joining never loses information.
func Leq(a, b TaintLevel) bool {
	return Join(a, b) == b
}
