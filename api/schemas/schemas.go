// Package schemas defines the serializable contract between the analysis
// engine and its external consumers (CLI, report renderers, the accuracy
// evaluation harness). Nothing in here holds live references into engine
// internals; every type is a plain value that can be marshaled as-is.
package schemas

import (
	"encoding/json"
	"time"
)

// -- Input Schemas --

// UnitMetadata carries caller-supplied context about a unit source. The engine
// treats it as opaque except for Language, which selects the parser grammar.
type UnitMetadata struct {
	Framework    string    `json:"framework,omitempty"`
	Language     string    `json:"language,omitempty"`
	LastModified time.Time `json:"last_modified,omitempty"`
}

// UnitSource is the raw input for one analysis unit: a function, method, or
// top-level block of test/source code. The engine performs all parsing itself;
// callers never construct syntax trees.
type UnitSource struct {
	Name     string       `json:"name"`      // Qualified name, e.g. "handlers.createUser".
	FilePath string       `json:"file_path"` // Origin file, used for issue locations.
	Content  string       `json:"content"`   // The unit's source text.
	Metadata UnitMetadata `json:"metadata"`
}

// -- Finding Schemas --

// Severity represents the severity level of a security issue. The values are
// lowercase to align with report formats and database ENUMs.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Location pinpoints an issue inside a source file. Line is 1-indexed, Column
// is 0-indexed, following tree-sitter's convention for columns.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// TaintStep is one hop in the path tainted data took from its origin to a
// sink argument.
type TaintStep struct {
	Binding  string   `json:"binding"`  // Variable or expression carrying the taint.
	Level    string   `json:"level"`    // Taint level at this step.
	Location Location `json:"location"` // Where the step occurs.
}

// SecurityIssue is a single verified invariant violation: tainted data
// reaching a dangerous sink without sanitization. Issues are immutable once
// created by the verifier.
type SecurityIssue struct {
	ID          string          `json:"id"`   // Unique identifier for the issue.
	Type        string          `json:"type"` // Sink category, e.g. "sql-injection".
	Severity    Severity        `json:"severity"`
	Location    Location        `json:"location"`
	Description string          `json:"description"`
	TaintPath   []TaintStep     `json:"taint_path,omitempty"`
	Evidence    json.RawMessage `json:"evidence,omitempty"`
	Unit        string          `json:"unit"` // Name of the analysis unit the issue was found in.
}

// -- Result Schemas --

// Statistics summarizes inference coverage for one run or one unit. The
// accuracy evaluation harness compares these against hand-labeled ground
// truth to compute precision/recall.
type Statistics struct {
	TotalVariables        int `json:"total_variables"`
	AutomaticallyInferred int `json:"automatically_inferred"`
	UnknownCount          int `json:"unknown_count"`
}

// InferenceRate reports the share of bindings resolved to a concrete taint
// level without manual hints. Zero when no bindings were seen.
func (s Statistics) InferenceRate() float64 {
	if s.TotalVariables == 0 {
		return 0
	}
	return float64(s.AutomaticallyInferred) / float64(s.TotalVariables)
}

// Warning records a per-unit anomaly that degraded gracefully instead of
// failing the batch: a parse failure, a timeout, or an iteration cap overrun.
type Warning struct {
	Unit    string `json:"unit"`
	Kind    string `json:"kind"` // "parse-failure", "timeout", "iteration-cap", "skipped".
	Message string `json:"message"`
}

// AnalysisResult is the top-level output of a full batch analysis. Ownership
// transfers to the caller; the engine retains no reference after returning it.
//
// RuntimeImpact is always zero: the engine never injects instrumentation or
// code into the analyzed program.
type AnalysisResult struct {
	Issues          []SecurityIssue   `json:"issues"`
	TaintLevels     map[string]string `json:"taint_levels"` // binding key -> taint level name.
	Statistics      Statistics        `json:"statistics"`
	Warnings        []Warning         `json:"warnings,omitempty"`
	ExecutionTimeMs int64             `json:"execution_time_ms"`
	RuntimeImpact   int               `json:"runtime_impact"`
}

// TypeInference is the output of InferSecurityTypes: the full per-binding
// taint assignment plus inference-rate statistics for one unit.
type TypeInference struct {
	Assignments map[string]string `json:"assignments"`
	Statistics  Statistics        `json:"statistics"`
}
