// Filename: verifier/verifier_test.go
package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/lancet-sast/api/schemas"
	"github.com/xkilldash9x/lancet-sast/internal/analysis/core"
)

func sinkUse(class core.SinkClass, level core.TaintLevel, file string, line int) core.SinkUse {
	return core.SinkUse{
		Unit:     "unit",
		Entry:    core.PatternEntry{Kind: core.KindSink, Class: class},
		CallPath: "db.query",
		ArgIndex: 0,
		Level:    level,
		Location: schemas.Location{File: file, Line: line},
	}
}

func TestVerify_SeverityMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		class core.SinkClass
		level core.TaintLevel
		want  schemas.Severity
	}{
		{"definite query is critical", core.SinkClassQuery, core.DefinitelyTainted, schemas.SeverityCritical},
		{"possible query demotes to high", core.SinkClassQuery, core.PossiblyTainted, schemas.SeverityHigh},
		{"definite execution is critical", core.SinkClassExecution, core.DefinitelyTainted, schemas.SeverityCritical},
		{"definite markup is high", core.SinkClassMarkup, core.DefinitelyTainted, schemas.SeverityHigh},
		{"possible markup demotes to medium", core.SinkClassMarkup, core.PossiblyTainted, schemas.SeverityMedium},
		{"definite logging is medium", core.SinkClassLogging, core.DefinitelyTainted, schemas.SeverityMedium},
		{"possible logging demotes to low", core.SinkClassLogging, core.PossiblyTainted, schemas.SeverityLow},
	}

	v := New(nil)
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			issues := v.Verify([]core.SinkUse{sinkUse(tc.class, tc.level, "a.js", 1)})
			require.Len(t, issues, 1)
			assert.Equal(t, tc.want, issues[0].Severity)
		})
	}
}

func TestVerify_CustomSeverityMap(t *testing.T) {
	t.Parallel()

	v := New(SeverityMap{core.SinkClassQuery: schemas.SeverityLow})
	issues := v.Verify([]core.SinkUse{sinkUse(core.SinkClassQuery, core.DefinitelyTainted, "a.js", 1)})
	require.Len(t, issues, 1)
	assert.Equal(t, schemas.SeverityLow, issues[0].Severity)
}

func TestVerify_SkipsNonViolations(t *testing.T) {
	t.Parallel()

	v := New(nil)
	issues := v.Verify([]core.SinkUse{
		sinkUse(core.SinkClassQuery, core.Untainted, "a.js", 1),
		sinkUse(core.SinkClassQuery, core.Unknown, "a.js", 2),
	})
	assert.Empty(t, issues)
}

func TestVerify_SortedByLocation(t *testing.T) {
	t.Parallel()

	v := New(nil)
	issues := v.Verify([]core.SinkUse{
		sinkUse(core.SinkClassQuery, core.DefinitelyTainted, "b.js", 1),
		sinkUse(core.SinkClassQuery, core.DefinitelyTainted, "a.js", 9),
		sinkUse(core.SinkClassQuery, core.DefinitelyTainted, "a.js", 2),
	})
	require.Len(t, issues, 3)
	assert.Equal(t, "a.js", issues[0].Location.File)
	assert.Equal(t, 2, issues[0].Location.Line)
	assert.Equal(t, 9, issues[1].Location.Line)
	assert.Equal(t, "b.js", issues[2].Location.File)
}

func TestVerify_DeterministicIDs(t *testing.T) {
	t.Parallel()

	v := New(nil)
	use := sinkUse(core.SinkClassExecution, core.DefinitelyTainted, "a.js", 3)

	first := v.Verify([]core.SinkUse{use})
	second := v.Verify([]core.SinkUse{use})
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.NotEmpty(t, first[0].ID)
}

func TestVerify_IssueContent(t *testing.T) {
	t.Parallel()

	use := sinkUse(core.SinkClassQuery, core.DefinitelyTainted, "handlers/user.js", 12)
	use.Path = []schemas.TaintStep{{Binding: "q", Level: "DEFINITELY_TAINTED"}}

	v := New(nil)
	issues := v.Verify([]core.SinkUse{use})
	require.Len(t, issues, 1)

	issue := issues[0]
	assert.Equal(t, "sql-injection", issue.Type)
	assert.Equal(t, "unit", issue.Unit)
	assert.Contains(t, issue.Description, "db.query")
	assert.Contains(t, issue.Description, "DEFINITELY_TAINTED")
	assert.Len(t, issue.TaintPath, 1)
	assert.Contains(t, string(issue.Evidence), `"call_path":"db.query"`)
}

func TestVerify_UnknownClassFallsBack(t *testing.T) {
	t.Parallel()

	v := New(nil)
	issues := v.Verify([]core.SinkUse{sinkUse(core.SinkClass("custom"), core.DefinitelyTainted, "a.js", 1)})
	require.Len(t, issues, 1)
	assert.Equal(t, schemas.SeverityMedium, issues[0].Severity)
}
