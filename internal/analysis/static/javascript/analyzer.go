// Filename: javascript/analyzer.go
// The intra-procedural flow analyzer: computes a taint level for every
// binding at every program point of one analysis unit, records sink uses, and
// derives a draft function summary by re-running the same transfer functions
// with parameters held abstract.
package javascript

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-sast/api/schemas"
	"github.com/xkilldash9x/lancet-sast/internal/analysis/core"
)

// Analysis is the full result of analyzing one unit.
type Analysis struct {
	UnitID string
	File   string

	// Levels is the final taint assignment per binding at the unit's exit.
	Levels map[string]core.TaintLevel
	// SinkUses are the sink-classified calls that received tainted data,
	// evaluated with the unit's own parameter seeding.
	SinkUses []core.SinkUse
	// Summary is the draft function summary for interprocedural resolution.
	Summary *core.FunctionSummary
	// Unresolved lists callee names with no available summary; the resolver
	// uses these to schedule re-analysis passes.
	Unresolved []string
	// Callees lists same-batch callees whose summaries were applied. A unit
	// is re-analyzed when one of these is republished with new facts.
	Callees []string

	Warnings      []schemas.Warning
	LowConfidence bool
}

// Analyzer runs the flow-sensitive inference for single units. It is
// stateless between calls and safe for concurrent use: each analysis owns its
// parser, walker, and states, and the catalog is immutable.
type Analyzer struct {
	logger       *zap.Logger
	catalog      *core.Catalog
	iterationCap int
}

// NewAnalyzer creates a flow analyzer bound to a catalog. iterationCap bounds
// loop fixed-point iteration; values below 1 fall back to the default of 10.
func NewAnalyzer(logger *zap.Logger, catalog *core.Catalog, iterationCap int) *Analyzer {
	if iterationCap < 1 {
		iterationCap = 10
	}
	return &Analyzer{
		logger:       logger.Named("flow"),
		catalog:      catalog,
		iterationCap: iterationCap,
	}
}

// AnalyzeUnit parses and analyzes one unit. paramTaints optionally overrides
// the catalog's parameter seeding with call-site-specific levels supplied by
// the interprocedural resolver; pass nil for the default seeding.
//
// Per-unit anomalies degrade: a malformed unit yields an Unknown-everything,
// low-confidence result and a nil error. The only error returned is context
// cancellation, which the orchestrator translates to a timeout warning.
func (a *Analyzer) AnalyzeUnit(ctx context.Context, unit schemas.UnitSource, summaries core.SummaryProvider, paramTaints map[int]core.TaintLevel) (*Analysis, error) {
	if summaries == nil {
		summaries = core.NoSummaries{}
	}

	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())
	source := []byte(unit.Content)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return a.degraded(unit, fmt.Sprintf("parser error: %v", err)), nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return a.degraded(unit, "syntax errors in unit source"), nil
	}

	body, params := unitBody(root, source)

	seed := make(map[string]core.TaintLevel, len(params))
	for i, name := range params {
		if lvl, ok := paramTaints[i]; ok {
			seed[name] = lvl
		} else {
			seed[name] = a.catalog.SeedParam(name)
		}
	}

	// Concrete pass: the unit's own taint map and sink uses.
	concrete, err := a.run(ctx, unit, source, body, seed, summaries)
	if err != nil {
		return nil, err
	}

	summary, err := a.deriveSummary(ctx, unit, source, body, params, summaries)
	if err != nil {
		return nil, err
	}

	return &Analysis{
		UnitID:     unit.Name,
		File:       unit.FilePath,
		Levels:     concrete.state.Levels(),
		SinkUses:   concrete.sinks,
		Summary:    summary,
		Unresolved: concrete.unresolved,
		Callees:    concrete.callees,
		Warnings:   concrete.warnings,
	}, nil
}

// degraded builds the low-confidence result for a malformed unit: Unknown
// levels, no sink uses, and a summary callers treat as opaque.
func (a *Analyzer) degraded(unit schemas.UnitSource, reason string) *Analysis {
	a.logger.Warn("Unit degraded to low-confidence result",
		zap.String("unit", unit.Name),
		zap.String("reason", reason),
	)
	summary := core.NewFunctionSummary(unit.Name, "")
	summary.LowConfidence = true
	warning := schemas.Warning{Unit: unit.Name, Kind: "parse-failure", Message: reason}
	summary.Diagnostics = []schemas.Warning{warning}
	return &Analysis{
		UnitID:        unit.Name,
		File:          unit.FilePath,
		Levels:        map[string]core.TaintLevel{},
		Summary:       summary,
		Warnings:      []schemas.Warning{warning},
		LowConfidence: true,
	}
}

// deriveSummary re-runs the transfer functions symbolically: once with every
// parameter clean to expose body-internal flows, then once per parameter with
// only that parameter tainted, to learn which parameters reach the return
// value and which reach sinks.
func (a *Analyzer) deriveSummary(ctx context.Context, unit schemas.UnitSource, source []byte, body *sitter.Node, params []string, summaries core.SummaryProvider) (*core.FunctionSummary, error) {
	summary := core.NewFunctionSummary(unit.Name, "")

	baseSeed := make(map[string]core.TaintLevel, len(params))
	for _, name := range params {
		baseSeed[name] = core.Untainted
	}
	base, err := a.run(ctx, unit, source, body, baseSeed, summaries)
	if err != nil {
		return nil, err
	}
	summary.ReturnBase = base.returnLevel
	summary.SinksReached = base.sinks

	baseKeys := sinkKeySet(base.sinks)

	for i, name := range params {
		seed := make(map[string]core.TaintLevel, len(params))
		for _, n := range params {
			seed[n] = core.Untainted
		}
		seed[name] = core.DefinitelyTainted

		probe, err := a.run(ctx, unit, source, body, seed, summaries)
		if err != nil {
			return nil, err
		}
		if !core.Leq(probe.returnLevel, base.returnLevel) {
			summary.ParamToReturn[i] = true
		}
		for _, use := range probe.sinks {
			if !baseKeys[sinkKey(use)] {
				summary.ParamSinks[i] = append(summary.ParamSinks[i], use)
			}
		}
	}
	return summary, nil
}

func sinkKey(u core.SinkUse) string {
	return fmt.Sprintf("%s|%d|%d:%d", u.CallPath, u.ArgIndex, u.Location.Line, u.Location.Column)
}

func sinkKeySet(uses []core.SinkUse) map[string]bool {
	keys := make(map[string]bool, len(uses))
	for _, u := range uses {
		keys[sinkKey(u)] = true
	}
	return keys
}

// unitBody locates the statements to analyze. A unit whose first top-level
// declaration is a function is analyzed as that function (parameters seeded);
// anything else is a top-level block with no parameters.
func unitBody(root *sitter.Node, source []byte) (*sitter.Node, []string) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "comment":
			continue
		case "function_declaration", "generator_function_declaration":
			if body := child.ChildByFieldName("body"); body != nil {
				return body, parameterNames(child, source)
			}
			return child, nil
		case "lexical_declaration", "variable_declaration":
			// const handler = (req) => { ... }
			if fn := declaredFunction(child); fn != nil {
				if body := fn.ChildByFieldName("body"); body != nil {
					return body, parameterNames(fn, source)
				}
			}
			return root, nil
		default:
			return root, nil
		}
	}
	return root, nil
}

// declaredFunction returns the function value of a single-declarator
// declaration, or nil.
func declaredFunction(decl *sitter.Node) *sitter.Node {
	var fn *sitter.Node
	count := 0
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		child := decl.NamedChild(i)
		if child.Type() != "variable_declarator" {
			continue
		}
		count++
		if value := child.ChildByFieldName("value"); isFunctionNode(value) {
			fn = value
		}
	}
	if count == 1 {
		return fn
	}
	return nil
}

// -- Walker --

// runResult captures one pass over a unit body.
type runResult struct {
	state       *TaintState
	sinks       []core.SinkUse
	returnLevel core.TaintLevel
	unresolved  []string
	callees     []string
	warnings    []schemas.Warning
}

// run executes one forward pass with the given parameter seeding.
func (a *Analyzer) run(ctx context.Context, unit schemas.UnitSource, source []byte, body *sitter.Node, seed map[string]core.TaintLevel, summaries core.SummaryProvider) (*runResult, error) {
	w := &walker{
		analyzer:   a,
		ctx:        ctx,
		unit:       unit.Name,
		file:       unit.FilePath,
		source:     source,
		state:      NewTaintState(),
		summaries:  summaries,
		unresolved: make(map[string]bool),
		callees:    make(map[string]bool),
	}
	for name, lvl := range seed {
		w.state.Set(name, lvl, schemas.Location{File: unit.FilePath})
	}
	w.returnLevel = core.Untainted

	w.walkStatements(body)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &runResult{
		state:       w.state,
		sinks:       w.sinks,
		returnLevel: w.returnLevel,
		unresolved:  sortedKeys(w.unresolved),
		callees:     sortedKeys(w.callees),
		warnings:    w.warnings,
	}, nil
}

// walker carries the mutable environment of one pass. The statement handlers
// implement the transfer functions; control-flow handlers clone and join
// states per the lattice.
type walker struct {
	analyzer    *Analyzer
	ctx         context.Context
	unit        string
	file        string
	source      []byte
	state       *TaintState
	summaries   core.SummaryProvider
	sinks       []core.SinkUse
	returnLevel core.TaintLevel
	unresolved  map[string]bool
	callees     map[string]bool
	warnings    []schemas.Warning
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (w *walker) walkStatements(node *sitter.Node) {
	if node == nil {
		return
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if w.ctx.Err() != nil {
			return
		}
		w.walkStatement(node.NamedChild(i))
	}
}

func (w *walker) walkStatement(node *sitter.Node) {
	if node == nil || w.ctx.Err() != nil {
		return
	}

	switch node.Type() {
	case "lexical_declaration", "variable_declaration":
		w.handleVarDecl(node)

	case "expression_statement":
		if expr := node.NamedChild(0); expr != nil {
			w.evalExpr(expr)
		}

	case "statement_block":
		w.walkStatements(node)

	case "if_statement":
		w.handleIf(node)

	case "while_statement", "do_statement":
		w.handleLoop(node.ChildByFieldName("condition"), node.ChildByFieldName("body"), nil)

	case "for_statement":
		w.walkStatement(node.ChildByFieldName("initializer"))
		w.handleLoop(node.ChildByFieldName("condition"), node.ChildByFieldName("body"), node.ChildByFieldName("increment"))

	case "for_in_statement":
		w.handleForIn(node)

	case "try_statement":
		w.handleTry(node)

	case "switch_statement":
		w.handleSwitch(node)

	case "return_statement":
		w.handleReturn(node)

	case "function_declaration", "generator_function_declaration":
		// Nested declarations are separate units; their bodies are not
		// analyzed here.

	default:
		// Statements with no taint semantics (break, continue, labels,
		// throw) are skipped; a throw's argument may still carry a call.
		if arg := node.NamedChild(0); node.Type() == "throw_statement" && arg != nil {
			w.evalExpr(arg)
		}
	}
}

func (w *walker) handleVarDecl(node *sitter.Node) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		declarator := node.NamedChild(i)
		if declarator.Type() != "variable_declarator" {
			continue
		}
		nameNode := declarator.ChildByFieldName("name")
		valueNode := declarator.ChildByFieldName("value")
		if nameNode == nil {
			continue
		}

		level := core.Unknown // `let x;` stays at the pre-inference default.
		if valueNode != nil {
			level = w.evalExpr(valueNode)
		}
		w.bindPattern(nameNode, level, nodeLocation(w.file, declarator))
	}
}

// bindPattern assigns a level to an identifier or, approximately, to every
// identifier inside a destructuring pattern.
func (w *walker) bindPattern(pattern *sitter.Node, level core.TaintLevel, at schemas.Location) {
	switch pattern.Type() {
	case "identifier", "shorthand_property_identifier_pattern", "shorthand_property_identifier":
		w.state.Set(nodeContent(pattern, w.source), level, at)
	case "object_pattern", "array_pattern":
		for i := 0; i < int(pattern.NamedChildCount()); i++ {
			child := pattern.NamedChild(i)
			switch child.Type() {
			case "pair_pattern":
				if value := child.ChildByFieldName("value"); value != nil {
					w.bindPattern(value, level, at)
				}
			case "rest_pattern", "rest_parameter":
				if arg := child.NamedChild(0); arg != nil {
					w.bindPattern(arg, level, at)
				}
			case "assignment_pattern":
				if left := child.ChildByFieldName("left"); left != nil {
					w.bindPattern(left, level, at)
				}
			default:
				w.bindPattern(child, level, at)
			}
		}
	}
}

func (w *walker) handleIf(node *sitter.Node) {
	if cond := node.ChildByFieldName("condition"); cond != nil {
		w.evalExpr(cond)
	}

	entry := w.state

	w.state = entry.Clone()
	w.walkStatement(node.ChildByFieldName("consequence"))
	thenState := w.state

	if alt := node.ChildByFieldName("alternative"); alt != nil {
		w.state = entry.Clone()
		// The alternative is an else_clause wrapping the statement.
		for i := 0; i < int(alt.NamedChildCount()); i++ {
			w.walkStatement(alt.NamedChild(i))
		}
		w.state = thenState.Join(w.state)
		return
	}

	// No else: join the branch with the fall-through state.
	w.state = entry.Join(thenState)
}

// handleLoop iterates the body until the per-binding states stabilize. The
// iteration cap guards pathological graphs: on overrun, still-changing
// bindings escalate to PossiblyTainted and a diagnostic is recorded instead
// of failing.
func (w *walker) handleLoop(condition, body, increment *sitter.Node) {
	for iter := 0; ; iter++ {
		if iter >= w.analyzer.iterationCap {
			w.capExceeded(body)
			return
		}
		entry := w.state

		w.state = entry.Clone()
		if condition != nil {
			w.evalExpr(condition)
		}
		w.walkStatement(body)
		if increment != nil {
			w.evalExpr(increment)
		}

		joined := entry.Join(w.state)
		w.state = joined
		if joined.Equal(entry) {
			return
		}
		if w.ctx.Err() != nil {
			return
		}
	}
}

func (w *walker) capExceeded(body *sitter.Node) {
	entry := w.state
	probe := entry.Clone()
	w.state = probe
	w.walkStatement(body)
	changed := w.state.ChangedFrom(entry)

	w.state = entry
	for _, name := range changed {
		w.state.Weaken(name, core.PossiblyTainted)
	}
	w.warnings = append(w.warnings, schemas.Warning{
		Unit: w.unit,
		Kind: "iteration-cap",
		Message: fmt.Sprintf("loop did not stabilize within %d iterations; %s escalated to %s",
			w.analyzer.iterationCap, strings.Join(changed, ", "), core.PossiblyTainted),
	})
	w.analyzer.logger.Debug("Loop fixed point exceeded iteration cap",
		zap.String("unit", w.unit),
		zap.Strings("bindings", changed),
	)
}

func (w *walker) handleForIn(node *sitter.Node) {
	right := node.ChildByFieldName("right")
	rightLevel := w.evalExpr(right)

	if left := node.ChildByFieldName("left"); left != nil {
		w.bindPattern(left, rightLevel, nodeLocation(w.file, node))
	}
	w.handleLoop(nil, node.ChildByFieldName("body"), nil)
}

// handleTry joins the try block's exit with the handler's: either path may
// have executed at the join point.
func (w *walker) handleTry(node *sitter.Node) {
	entry := w.state

	w.state = entry.Clone()
	w.walkStatement(node.ChildByFieldName("body"))
	tryState := w.state

	if handler := node.ChildByFieldName("handler"); handler != nil {
		w.state = entry.Clone()
		if param := handler.ChildByFieldName("parameter"); param != nil {
			// An exception value has no tracked origin.
			w.bindPattern(param, core.Unknown, nodeLocation(w.file, handler))
		}
		w.walkStatement(handler.ChildByFieldName("body"))
		tryState = tryState.Join(w.state)
	}
	w.state = tryState

	if finalizer := node.ChildByFieldName("finalizer"); finalizer != nil {
		w.walkStatement(finalizer)
	}
}

// handleSwitch joins the exits of all case bodies. Fallthrough is
// approximated by analyzing each case from the shared entry state, which is
// conservative at the join.
func (w *walker) handleSwitch(node *sitter.Node) {
	if value := node.ChildByFieldName("value"); value != nil {
		w.evalExpr(value)
	}
	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}

	entry := w.state
	merged := entry
	for i := 0; i < int(body.NamedChildCount()); i++ {
		caseNode := body.NamedChild(i)
		if caseNode.Type() != "switch_case" && caseNode.Type() != "switch_default" {
			continue
		}
		w.state = entry.Clone()
		for j := 0; j < int(caseNode.NamedChildCount()); j++ {
			child := caseNode.NamedChild(j)
			if child == caseNode.ChildByFieldName("value") {
				w.evalExpr(child)
				continue
			}
			w.walkStatement(child)
		}
		merged = merged.Join(w.state)
	}
	w.state = merged
}

func (w *walker) handleReturn(node *sitter.Node) {
	arg := node.ChildByFieldName("argument")
	if arg == nil && node.NamedChildCount() > 0 {
		arg = node.NamedChild(0)
	}
	if arg != nil {
		w.returnLevel = core.Join(w.returnLevel, w.evalExpr(arg))
	}
}

// -- Expression transfer functions --

// evalExpr computes the taint level of an expression, recording sink uses as
// a side effect of call evaluation.
func (w *walker) evalExpr(node *sitter.Node) core.TaintLevel {
	if node == nil || w.ctx.Err() != nil {
		return core.Unknown
	}

	switch node.Type() {
	case "identifier", "shorthand_property_identifier":
		return w.state.Get(nodeContent(node, w.source))

	case "string", "number", "true", "false", "null", "undefined", "regex":
		return core.Untainted

	case "template_string":
		level := core.Untainted
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() == "template_substitution" {
				level = core.Join(level, w.evalExpr(child.NamedChild(0)))
			}
		}
		return level

	case "binary_expression":
		left := w.evalExpr(node.ChildByFieldName("left"))
		right := w.evalExpr(node.ChildByFieldName("right"))
		return core.Join(left, right)

	case "parenthesized_expression":
		return w.evalExpr(node.NamedChild(0))

	case "ternary_expression":
		w.evalExpr(node.ChildByFieldName("condition"))
		cons := w.evalExpr(node.ChildByFieldName("consequence"))
		alt := w.evalExpr(node.ChildByFieldName("alternative"))
		return core.Join(cons, alt)

	case "member_expression", "subscript_expression":
		return w.evalAccess(node)

	case "call_expression", "new_expression":
		return w.evalCall(node)

	case "assignment_expression", "augmented_assignment_expression":
		return w.handleAssignment(node)

	case "await_expression", "unary_expression", "spread_element":
		if arg := node.ChildByFieldName("argument"); arg != nil {
			return w.evalExpr(arg)
		}
		return w.evalExpr(node.NamedChild(0))

	case "object":
		level := core.Untainted
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case "pair":
				level = core.Join(level, w.evalExpr(child.ChildByFieldName("value")))
			case "shorthand_property_identifier", "spread_element":
				level = core.Join(level, w.evalExpr(child))
			}
		}
		return level

	case "array":
		level := core.Untainted
		for i := 0; i < int(node.NamedChildCount()); i++ {
			level = core.Join(level, w.evalExpr(node.NamedChild(i)))
		}
		return level

	case "sequence_expression":
		var level core.TaintLevel
		for i := 0; i < int(node.NamedChildCount()); i++ {
			level = w.evalExpr(node.NamedChild(i))
		}
		return level

	default:
		return core.Unknown
	}
}

// evalAccess handles member and subscript reads: catalog sources dominate,
// otherwise a property inherits the tracked level of its head object.
func (w *walker) evalAccess(node *sitter.Node) core.TaintLevel {
	path := flattenAccessPath(node, w.source)
	if path != nil {
		if _, ok := w.analyzer.catalog.ClassifyKind(core.KindSource, path); ok {
			return core.DefinitelyTainted
		}
		head := path[0]
		if w.state.Has(head) {
			return w.state.Get(head)
		}
		return core.Unknown
	}

	// Computed access: propagate the object's level.
	if object := node.ChildByFieldName("object"); object != nil {
		return w.evalExpr(object)
	}
	return core.Unknown
}

// evalCall applies the catalog to a call expression: sanitizers launder,
// sources inject, sinks record uses. Unmatched calls apply a callee summary
// when one exists, otherwise the conservative opaque rule: the result is the
// join of the argument taints.
func (w *walker) evalCall(node *sitter.Node) core.TaintLevel {
	callee := node.ChildByFieldName("function")
	if callee == nil {
		callee = node.ChildByFieldName("constructor")
	}
	argsNode := node.ChildByFieldName("arguments")
	args := callArguments(argsNode)

	// Evaluate arguments first so nested calls are classified regardless of
	// what the outer call turns out to be.
	argLevels := make([]core.TaintLevel, len(args))
	for i, arg := range args {
		argLevels[i] = w.evalExpr(arg)
	}

	path := flattenAccessPath(callee, w.source)
	if path != nil {
		if entry, ok := w.analyzer.catalog.Classify(path); ok {
			switch entry.Kind {
			case core.KindSanitizer:
				// A sanitizer match launders unconditionally.
				return core.Untainted
			case core.KindSource:
				return core.DefinitelyTainted
			case core.KindSink:
				w.recordSinkCall(entry, path, node, args, argLevels)
				return w.joinAll(argLevels)
			}
		}

		// Same-batch callee with a published summary.
		if len(path) == 1 {
			if summary, ok := w.summaries.Lookup(path[0]); ok {
				w.callees[path[0]] = true
				return w.applySummary(summary, node, args, argLevels)
			}
			w.unresolved[path[0]] = true
		}
	}

	// Opaque call: propagate, never launder.
	result := w.joinAll(argLevels)

	// A method call with tainted arguments may taint its receiver.
	if result > core.Untainted && callee != nil && callee.Type() == "member_expression" {
		if objPath := flattenAccessPath(callee.ChildByFieldName("object"), w.source); len(objPath) > 0 {
			w.state.Weaken(objPath[0], result)
		}
	}
	return result
}

func (w *walker) joinAll(levels []core.TaintLevel) core.TaintLevel {
	result := core.Untainted
	for _, lvl := range levels {
		result = core.Join(result, lvl)
	}
	return result
}

// recordSinkCall captures every sensitive argument carrying a level above
// Untainted. Reporting is deferred to the invariant verifier.
func (w *walker) recordSinkCall(entry core.PatternEntry, path []string, node *sitter.Node, args []*sitter.Node, argLevels []core.TaintLevel) {
	loc := nodeLocation(w.file, node)
	callPath := strings.Join(path, ".")

	for i, lvl := range argLevels {
		if lvl < core.PossiblyTainted || !entry.ArgIsSensitive(i) {
			continue
		}
		w.sinks = append(w.sinks, core.SinkUse{
			Unit:     w.unit,
			Entry:    entry,
			CallPath: callPath,
			ArgIndex: i,
			Level:    lvl,
			Location: loc,
			Path:     w.taintPath(args[i], lvl, loc),
		})
	}
}

// applySummary models a call to a summarized same-batch function: the return
// level follows the summary's transfer function, and parameters known to
// reach sinks inside the callee surface as sink uses at this call site.
func (w *walker) applySummary(summary *core.FunctionSummary, node *sitter.Node, args []*sitter.Node, argLevels []core.TaintLevel) core.TaintLevel {
	loc := nodeLocation(w.file, node)

	for i, lvl := range argLevels {
		if lvl < core.PossiblyTainted {
			continue
		}
		for _, inner := range summary.ParamSinks[i] {
			use := core.SinkUse{
				Unit:     w.unit,
				Entry:    inner.Entry,
				CallPath: fmt.Sprintf("%s via %s", inner.CallPath, summary.UnitID),
				ArgIndex: i,
				Level:    lvl,
				Location: loc,
				Path:     w.taintPath(args[i], lvl, loc),
			}
			w.sinks = append(w.sinks, use)
		}
	}
	return summary.ApplyReturn(argLevels)
}

// handleAssignment propagates the RHS level into the target. Member-access
// targets are checked against sink properties, and the head object weakens
// conservatively.
func (w *walker) handleAssignment(node *sitter.Node) core.TaintLevel {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil || right == nil {
		return core.Unknown
	}

	level := w.evalExpr(right)
	if node.Type() == "augmented_assignment_expression" {
		// x += y keeps x's existing taint in the mix.
		level = core.Join(level, w.evalExpr(left))
	}
	at := nodeLocation(w.file, node)

	switch left.Type() {
	case "identifier":
		w.state.Set(nodeContent(left, w.source), level, at)

	case "member_expression", "subscript_expression":
		if path := flattenAccessPath(left, w.source); path != nil {
			if entry, ok := w.analyzer.catalog.ClassifyKind(core.KindSink, path); ok && level >= core.PossiblyTainted {
				w.sinks = append(w.sinks, core.SinkUse{
					Unit:     w.unit,
					Entry:    entry,
					CallPath: strings.Join(path, "."),
					ArgIndex: 0,
					Level:    level,
					Location: at,
					Path:     w.taintPath(right, level, at),
				})
			}
			w.state.Weaken(path[0], level)
		}

	case "object_pattern", "array_pattern":
		w.bindPattern(left, level, at)
	}
	return level
}

// taintPath reconstructs a short provenance chain for reporting: where the
// argument's binding was last assigned, then the sink argument itself.
func (w *walker) taintPath(arg *sitter.Node, level core.TaintLevel, sinkLoc schemas.Location) []schemas.TaintStep {
	var steps []schemas.TaintStep
	if arg != nil && arg.Type() == "identifier" {
		name := nodeContent(arg, w.source)
		if assignedAt, ok := w.state.AssignedAt(name); ok {
			steps = append(steps, schemas.TaintStep{
				Binding:  name,
				Level:    w.state.Get(name).String(),
				Location: assignedAt,
			})
		}
	}
	expr := nodeContent(arg, w.source)
	if len(expr) > 80 {
		expr = expr[:80]
	}
	steps = append(steps, schemas.TaintStep{
		Binding:  expr,
		Level:    level.String(),
		Location: sinkLoc,
	})
	return steps
}
