// Filename: verifier/verifier.go
// The invariant verifier turns recorded sink uses into structured security
// issues. It is pure and order-independent: issues for one unit never depend
// on another unit's, and the output ordering is fully determined by the
// input set.
package verifier

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/lancet-sast/api/schemas"
	"github.com/xkilldash9x/lancet-sast/internal/analysis/core"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SeverityMap assigns a base severity per sink class, applied when the
// observed level is DefinitelyTainted. PossiblyTainted reports one step
// below the base. The thresholds are configuration, not constants.
type SeverityMap map[core.SinkClass]schemas.Severity

// DefaultSeverityMap is the built-in calibration.
func DefaultSeverityMap() SeverityMap {
	return SeverityMap{
		core.SinkClassQuery:      schemas.SeverityCritical,
		core.SinkClassExecution:  schemas.SeverityCritical,
		core.SinkClassMarkup:     schemas.SeverityHigh,
		core.SinkClassNavigation: schemas.SeverityHigh,
		core.SinkClassLogging:    schemas.SeverityMedium,
	}
}

// issueTypes names the vulnerability class per sink class.
var issueTypes = map[core.SinkClass]string{
	core.SinkClassQuery:      "sql-injection",
	core.SinkClassExecution:  "code-injection",
	core.SinkClassMarkup:     "xss",
	core.SinkClassNavigation: "open-redirect",
	core.SinkClassLogging:    "log-injection",
}

// issueNamespace scopes the deterministic issue IDs.
var issueNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("lancet-sast/issue"))

// Verifier checks the sink invariant: no sink argument may carry a taint
// level above Untainted unless a sanitizer intervened on that path. Sink
// uses are only recorded for levels above Untainted, so every use presented
// here is a violation; the verifier's job is classification and reporting.
type Verifier struct {
	severity SeverityMap
}

// New creates a verifier. A nil severity map selects the default
// calibration.
func New(severity SeverityMap) *Verifier {
	if severity == nil {
		severity = DefaultSeverityMap()
	}
	return &Verifier{severity: severity}
}

// Verify maps sink uses to issues, sorted by file, line, column, call path
// and argument index. Uses carrying Unknown or Untainted levels are skipped:
// abandoned analyses produce no findings, only warnings.
func (v *Verifier) Verify(uses []core.SinkUse) []schemas.SecurityIssue {
	issues := make([]schemas.SecurityIssue, 0, len(uses))
	for _, use := range uses {
		if use.Level < core.PossiblyTainted {
			continue
		}
		issues = append(issues, v.issue(use))
	}

	sort.Slice(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Location.File != b.Location.File {
			return a.Location.File < b.Location.File
		}
		if a.Location.Line != b.Location.Line {
			return a.Location.Line < b.Location.Line
		}
		if a.Location.Column != b.Location.Column {
			return a.Location.Column < b.Location.Column
		}
		return a.ID < b.ID
	})
	return issues
}

func (v *Verifier) issue(use core.SinkUse) schemas.SecurityIssue {
	severity := v.severity[use.Entry.Class]
	if severity == "" {
		severity = schemas.SeverityMedium
	}
	if use.Level == core.PossiblyTainted {
		severity = demote(severity)
	}

	evidence, _ := json.Marshal(map[string]any{
		"call_path":   use.CallPath,
		"arg_index":   use.ArgIndex,
		"taint_level": use.Level.String(),
		"sink_class":  string(use.Entry.Class),
	})

	return schemas.SecurityIssue{
		ID:       issueID(use),
		Type:     issueTypes[use.Entry.Class],
		Severity: severity,
		Location: use.Location,
		Description: fmt.Sprintf("%s data reaches %s argument %d",
			use.Level, use.CallPath, use.ArgIndex),
		TaintPath: use.Path,
		Evidence:  evidence,
		Unit:      use.Unit,
	}
}

// issueID derives a stable identifier from the issue's identity fields, so
// repeated runs over identical input produce identical reports.
func issueID(use core.SinkUse) string {
	key := fmt.Sprintf("%s|%s|%d|%s|%d:%d|%s",
		use.Unit, use.CallPath, use.ArgIndex,
		use.Location.File, use.Location.Line, use.Location.Column,
		use.Level)
	return uuid.NewSHA1(issueNamespace, []byte(key)).String()
}

// demote lowers a severity one step, saturating at low.
func demote(s schemas.Severity) schemas.Severity {
	switch s {
	case schemas.SeverityCritical:
		return schemas.SeverityHigh
	case schemas.SeverityHigh:
		return schemas.SeverityMedium
	default:
		return schemas.SeverityLow
	}
}
