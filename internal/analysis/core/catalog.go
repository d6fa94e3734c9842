// Filename: core/catalog.go
// The source/sink/sanitizer catalog: a registry of recognizable call and
// member-access patterns. Matching is structural over qualified-name segments
// rather than regex-based, so classification is total and cannot throw.
package core

import (
	"strings"

	"github.com/xkilldash9x/lancet-sast/api/schemas"
)

// PatternKind classifies a catalog entry.
type PatternKind string

const (
	KindSource    PatternKind = "source"
	KindSanitizer PatternKind = "sanitizer"
	KindSink      PatternKind = "sink"
)

// SinkClass categorizes the impact of a sink. The verifier maps a class plus
// the observed taint level to an issue severity.
type SinkClass string

const (
	SinkClassQuery      SinkClass = "query"      // Data-store queries (SQL/NoSQL injection).
	SinkClassExecution  SinkClass = "execution"  // Code or command execution.
	SinkClassMarkup     SinkClass = "markup"     // HTML/DOM injection.
	SinkClassNavigation SinkClass = "navigation" // URL redirection.
	SinkClassLogging    SinkClass = "logging"    // Log forging / data leakage.
)

// MatchMode selects how a Matcher compares against a flattened access path.
type MatchMode int

const (
	// MatchExact requires the full dotted path to be identical.
	MatchExact MatchMode = iota
	// MatchPrefix matches when the pattern's segments are a leading prefix of
	// the access path ("req.body" covers "req.body.data").
	MatchPrefix
	// MatchLastSegment matches on the final segment only ("query" covers
	// "db.query" and "pool.query").
	MatchLastSegment
)

// Matcher is one tagged variant over qualified-name segments. Matching is
// case-sensitive and never allocates.
type Matcher struct {
	Mode     MatchMode
	Segments []string
}

// ExactPath builds a MatchExact matcher from a dotted pattern.
func ExactPath(pattern string) Matcher {
	return Matcher{Mode: MatchExact, Segments: strings.Split(pattern, ".")}
}

// PathPrefix builds a MatchPrefix matcher from a dotted pattern.
func PathPrefix(pattern string) Matcher {
	return Matcher{Mode: MatchPrefix, Segments: strings.Split(pattern, ".")}
}

// LastSegment builds a MatchLastSegment matcher for a bare name.
func LastSegment(name string) Matcher {
	return Matcher{Mode: MatchLastSegment, Segments: []string{name}}
}

// Matches reports whether the flattened access path satisfies this matcher.
func (m Matcher) Matches(path []string) bool {
	if len(path) == 0 || len(m.Segments) == 0 {
		return false
	}
	switch m.Mode {
	case MatchExact:
		if len(path) != len(m.Segments) {
			return false
		}
		for i, seg := range m.Segments {
			if path[i] != seg {
				return false
			}
		}
		return true
	case MatchPrefix:
		if len(path) < len(m.Segments) {
			return false
		}
		for i, seg := range m.Segments {
			if path[i] != seg {
				return false
			}
		}
		return true
	case MatchLastSegment:
		return path[len(path)-1] == m.Segments[0]
	default:
		return false
	}
}

// String reconstructs the dotted pattern for reporting.
func (m Matcher) String() string {
	return strings.Join(m.Segments, ".")
}

// PatternEntry is one catalog record. Entries are read-only after catalog
// construction.
type PatternEntry struct {
	Kind    PatternKind
	Matcher Matcher
	// Class is set for sinks only and drives severity mapping.
	Class SinkClass
	// SensitiveArgs lists the argument indices a sink inspects. Nil means
	// every argument is sensitive.
	SensitiveArgs []int
}

// ArgIsSensitive reports whether the given argument index feeds the sink.
func (e PatternEntry) ArgIsSensitive(index int) bool {
	if e.Kind != KindSink {
		return false
	}
	if e.SensitiveArgs == nil {
		return true
	}
	for _, i := range e.SensitiveArgs {
		if i == index {
			return true
		}
	}
	return false
}

// SinkUse records a sink-classified call whose argument carried taint. The
// flow analyzer produces these; only the invariant verifier turns them into
// reportable issues.
type SinkUse struct {
	Unit     string
	Entry    PatternEntry
	CallPath string // The dotted call target as written, e.g. "db.query".
	ArgIndex int
	Level    TaintLevel
	Location schemas.Location
	Path     []schemas.TaintStep
}

// Catalog is an ordered list of pattern entries with first-match-wins lookup.
// User-supplied entries are registered ahead of the defaults so they can
// override them. Immutable after construction, which keeps classification
// reproducible across parallel workers.
type Catalog struct {
	entries []PatternEntry
	// taintedParams holds parameter names treated as request-shaped input,
	// seeding those parameters DefinitelyTainted.
	taintedParams map[string]bool
}

// NewCatalog builds a catalog from the given extra entries followed by the
// built-in defaults.
func NewCatalog(extra ...PatternEntry) *Catalog {
	entries := make([]PatternEntry, 0, len(extra)+len(defaultEntries))
	entries = append(entries, extra...)
	entries = append(entries, defaultEntries...)

	params := make(map[string]bool, len(defaultTaintedParams))
	for _, name := range defaultTaintedParams {
		params[name] = true
	}
	return &Catalog{entries: entries, taintedParams: params}
}

// WithTaintedParams returns a catalog that additionally seeds the named
// parameters as tainted. Must be called before the catalog is shared.
func (c *Catalog) WithTaintedParams(names ...string) *Catalog {
	for _, n := range names {
		c.taintedParams[n] = true
	}
	return c
}

// Classify looks up the first entry matching the flattened access path.
// Unmatched paths return (zero, false) and are treated as opaque by the flow
// analyzer: their result taint is the join of argument taints.
func (c *Catalog) Classify(path []string) (PatternEntry, bool) {
	if len(path) == 0 {
		return PatternEntry{}, false
	}
	for _, e := range c.entries {
		if e.Matcher.Matches(path) {
			return e, true
		}
	}
	return PatternEntry{}, false
}

// ClassifyKind is like Classify but only considers entries of the given kind.
// The flow analyzer uses this where direction matters: reads are checked
// against sources, assignment targets against sinks.
func (c *Catalog) ClassifyKind(kind PatternKind, path []string) (PatternEntry, bool) {
	if len(path) == 0 {
		return PatternEntry{}, false
	}
	for _, e := range c.entries {
		if e.Kind == kind && e.Matcher.Matches(path) {
			return e, true
		}
	}
	return PatternEntry{}, false
}

// SeedParam returns the initial taint level for a function parameter. A
// parameter shaped like a request accessor starts DefinitelyTainted;
// everything else starts Untainted until a call site says otherwise.
func (c *Catalog) SeedParam(name string) TaintLevel {
	if c.taintedParams[name] {
		return DefinitelyTainted
	}
	return Untainted
}

// Len reports the number of registered entries.
func (c *Catalog) Len() int { return len(c.entries) }

// defaultTaintedParams are parameter names conventionally bound to inbound
// request data in handler signatures.
var defaultTaintedParams = []string{"req", "request", "userInput", "payload"}

// defaultEntries is the built-in pattern set. Order matters: more specific
// paths come before bare-name fallbacks.
var defaultEntries = []PatternEntry{
	// -- Sources: server-side request accessors --
	{Kind: KindSource, Matcher: PathPrefix("req.body")},
	{Kind: KindSource, Matcher: PathPrefix("req.query")},
	{Kind: KindSource, Matcher: PathPrefix("req.params")},
	{Kind: KindSource, Matcher: PathPrefix("req.headers")},
	{Kind: KindSource, Matcher: PathPrefix("req.cookies")},
	{Kind: KindSource, Matcher: PathPrefix("request.body")},
	{Kind: KindSource, Matcher: PathPrefix("request.query")},
	{Kind: KindSource, Matcher: PathPrefix("ctx.request.body")},
	{Kind: KindSource, Matcher: PathPrefix("process.argv")},
	{Kind: KindSource, Matcher: PathPrefix("process.env")},

	// -- Sources: browser/DOM accessors --
	{Kind: KindSource, Matcher: ExactPath("location.hash")},
	{Kind: KindSource, Matcher: ExactPath("location.search")},
	{Kind: KindSource, Matcher: ExactPath("location.href")},
	{Kind: KindSource, Matcher: ExactPath("window.location.hash")},
	{Kind: KindSource, Matcher: ExactPath("window.location.search")},
	{Kind: KindSource, Matcher: ExactPath("window.location.href")},
	{Kind: KindSource, Matcher: ExactPath("document.cookie")},
	{Kind: KindSource, Matcher: ExactPath("document.referrer")},
	{Kind: KindSource, Matcher: ExactPath("localStorage.getItem")},
	{Kind: KindSource, Matcher: ExactPath("sessionStorage.getItem")},

	// -- Sanitizers --
	{Kind: KindSanitizer, Matcher: LastSegment("sanitize")},
	{Kind: KindSanitizer, Matcher: LastSegment("escape")},
	{Kind: KindSanitizer, Matcher: LastSegment("escapeHtml")},
	{Kind: KindSanitizer, Matcher: ExactPath("encodeURI")},
	{Kind: KindSanitizer, Matcher: ExactPath("encodeURIComponent")},
	{Kind: KindSanitizer, Matcher: ExactPath("parseInt")},
	{Kind: KindSanitizer, Matcher: ExactPath("parseFloat")},
	{Kind: KindSanitizer, Matcher: ExactPath("Number")},
	{Kind: KindSanitizer, Matcher: ExactPath("JSON.stringify")},
	{Kind: KindSanitizer, Matcher: ExactPath("DOMPurify.sanitize")},
	{Kind: KindSanitizer, Matcher: ExactPath("validator.escape")},

	// -- Sinks: data-store queries --
	{Kind: KindSink, Class: SinkClassQuery, Matcher: ExactPath("db.query"), SensitiveArgs: []int{0}},
	{Kind: KindSink, Class: SinkClassQuery, Matcher: ExactPath("db.execute"), SensitiveArgs: []int{0}},
	{Kind: KindSink, Class: SinkClassQuery, Matcher: ExactPath("pool.query"), SensitiveArgs: []int{0}},
	{Kind: KindSink, Class: SinkClassQuery, Matcher: ExactPath("connection.query"), SensitiveArgs: []int{0}},
	{Kind: KindSink, Class: SinkClassQuery, Matcher: ExactPath("collection.find"), SensitiveArgs: []int{0}},

	// -- Sinks: execution --
	{Kind: KindSink, Class: SinkClassExecution, Matcher: ExactPath("eval"), SensitiveArgs: []int{0}},
	{Kind: KindSink, Class: SinkClassExecution, Matcher: ExactPath("Function"), SensitiveArgs: []int{0}},
	{Kind: KindSink, Class: SinkClassExecution, Matcher: ExactPath("setTimeout"), SensitiveArgs: []int{0}},
	{Kind: KindSink, Class: SinkClassExecution, Matcher: ExactPath("setInterval"), SensitiveArgs: []int{0}},
	{Kind: KindSink, Class: SinkClassExecution, Matcher: ExactPath("child_process.exec"), SensitiveArgs: []int{0}},
	{Kind: KindSink, Class: SinkClassExecution, Matcher: ExactPath("child_process.execSync"), SensitiveArgs: []int{0}},
	{Kind: KindSink, Class: SinkClassExecution, Matcher: LastSegment("exec"), SensitiveArgs: []int{0}},

	// -- Sinks: markup / DOM injection --
	{Kind: KindSink, Class: SinkClassMarkup, Matcher: ExactPath("document.write"), SensitiveArgs: []int{0}},
	{Kind: KindSink, Class: SinkClassMarkup, Matcher: ExactPath("document.writeln"), SensitiveArgs: []int{0}},
	{Kind: KindSink, Class: SinkClassMarkup, Matcher: LastSegment("innerHTML")},
	{Kind: KindSink, Class: SinkClassMarkup, Matcher: LastSegment("outerHTML")},
	{Kind: KindSink, Class: SinkClassMarkup, Matcher: ExactPath("res.send"), SensitiveArgs: []int{0}},

	// -- Sinks: navigation --
	{Kind: KindSink, Class: SinkClassNavigation, Matcher: ExactPath("location.assign"), SensitiveArgs: []int{0}},
	{Kind: KindSink, Class: SinkClassNavigation, Matcher: ExactPath("location.replace"), SensitiveArgs: []int{0}},
	{Kind: KindSink, Class: SinkClassNavigation, Matcher: ExactPath("res.redirect"), SensitiveArgs: []int{0}},

	// -- Sinks: logging --
	{Kind: KindSink, Class: SinkClassLogging, Matcher: ExactPath("console.log")},
	{Kind: KindSink, Class: SinkClassLogging, Matcher: ExactPath("console.error")},
	{Kind: KindSink, Class: SinkClassLogging, Matcher: ExactPath("logger.info")},
	{Kind: KindSink, Class: SinkClassLogging, Matcher: ExactPath("logger.debug")},
}
