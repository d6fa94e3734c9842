// Filename: engine/engine_test.go
package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/lancet-sast/api/schemas"
	"github.com/xkilldash9x/lancet-sast/internal/analysis/core"
	"github.com/xkilldash9x/lancet-sast/internal/analysis/summary"
	"github.com/xkilldash9x/lancet-sast/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestEngine(t *testing.T, mutate func(*config.Config)) *Engine {
	t.Helper()
	cfg := config.NewDefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	e, err := New(zaptest.NewLogger(t), cfg, nil)
	require.NoError(t, err)
	return e
}

func unit(name, content string) schemas.UnitSource {
	return schemas.UnitSource{Name: name, FilePath: name + ".js", Content: content}
}

func TestAnalyzeAtCompileTime_NilUnitsIsHardError(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	_, err := e.AnalyzeAtCompileTime(context.Background(), nil)
	assert.ErrorIs(t, err, summary.ErrNoUnits)
}

func TestAnalyzeAtCompileTime_TaintedQueryIsCritical(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	result, err := e.AnalyzeAtCompileTime(context.Background(), []schemas.UnitSource{
		unit("handler", "const q = req.body.data;\ndb.query(q);\n"),
	})
	require.NoError(t, err)

	require.Len(t, result.Issues, 1)
	issue := result.Issues[0]
	assert.Equal(t, schemas.SeverityCritical, issue.Severity)
	assert.Equal(t, "sql-injection", issue.Type)
	assert.Equal(t, 2, issue.Location.Line)
	assert.NotEmpty(t, issue.TaintPath)
	assert.Equal(t, "DEFINITELY_TAINTED", issue.TaintPath[len(issue.TaintPath)-1].Level)

	assert.Equal(t, "DEFINITELY_TAINTED", result.TaintLevels["handler.q"])
	assert.Zero(t, result.RuntimeImpact)
	assert.GreaterOrEqual(t, result.ExecutionTimeMs, int64(0))
}

func TestAnalyzeAtCompileTime_SanitizedFlowIsClean(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	result, err := e.AnalyzeAtCompileTime(context.Background(), []schemas.UnitSource{
		unit("handler", "const q = sanitize(req.body.data);\ndb.query(q);\n"),
	})
	require.NoError(t, err)

	assert.Empty(t, result.Issues)
	assert.Equal(t, "UNTAINTED", result.TaintLevels["handler.q"])
	assert.Zero(t, result.RuntimeImpact)
}

func TestAnalyzeAtCompileTime_InvalidUnitsSkipped(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	result, err := e.AnalyzeAtCompileTime(context.Background(), []schemas.UnitSource{
		{Name: "empty", FilePath: "empty.js", Content: ""},
		{Name: "", FilePath: "anonymous.js", Content: "const x = 1;"},
		unit("good", "const q = req.body.data;\ndb.query(q);\n"),
	})
	require.NoError(t, err)

	require.Len(t, result.Issues, 1)
	require.Len(t, result.Warnings, 2)
	for _, w := range result.Warnings {
		assert.Equal(t, "skipped", w.Kind)
	}
}

func TestAnalyzeAtCompileTime_MalformedUnitDoesNotStopBatch(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	result, err := e.AnalyzeAtCompileTime(context.Background(), []schemas.UnitSource{
		unit("broken", "function ( { nope("),
		unit("good", "const q = req.body.data;\ndb.query(q);\n"),
	})
	require.NoError(t, err)

	require.Len(t, result.Issues, 1)
	assert.Equal(t, "good", result.Issues[0].Unit)

	var kinds []string
	for _, w := range result.Warnings {
		kinds = append(kinds, w.Kind)
	}
	assert.Contains(t, kinds, "parse-failure")
}

func TestAnalyzeAtCompileTime_CrossUnitFlow(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	result, err := e.AnalyzeAtCompileTime(context.Background(), []schemas.UnitSource{
		unit("getData", "function getData() {\n  return req.body.x;\n}\n"),
		unit("consumer", "const v = getData();\ndb.query(v);\n"),
	})
	require.NoError(t, err)

	require.Len(t, result.Issues, 1)
	assert.Equal(t, "consumer", result.Issues[0].Unit)
	assert.Equal(t, "DEFINITELY_TAINTED", result.TaintLevels["consumer.v"])
}

func TestAnalyzeAtCompileTime_Statistics(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	result, err := e.AnalyzeAtCompileTime(context.Background(), []schemas.UnitSource{
		unit("a", "const x = req.body.v;\nconst y = \"literal\";\nlet z;\n"),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Statistics.TotalVariables)
	assert.Equal(t, 2, result.Statistics.AutomaticallyInferred)
	assert.Equal(t, 1, result.Statistics.UnknownCount)
	assert.InDelta(t, 2.0/3.0, result.Statistics.InferenceRate(), 1e-9)
}

func TestAnalyzeAtCompileTime_ParallelMatchesSequential(t *testing.T) {
	t.Parallel()

	units := make([]schemas.UnitSource, 0, 100)
	for i := 0; i < 100; i++ {
		var content string
		switch i % 4 {
		case 0:
			content = fmt.Sprintf("const q%d = req.body.f%d;\ndb.query(q%d);\n", i, i, i)
		case 1:
			content = fmt.Sprintf("const c%d = sanitize(req.body.f%d);\ndb.query(c%d);\n", i, i, i)
		case 2:
			content = fmt.Sprintf("let x%d = \"\";\nif (cond) {\n  x%d = req.query.v;\n}\nres.send(x%d);\n", i, i, i)
		default:
			content = fmt.Sprintf("const n%d = %d;\nconsole.log(n%d);\n", i, i, i)
		}
		units = append(units, unit(fmt.Sprintf("u%03d", i), content))
	}

	run := func(workers int) *schemas.AnalysisResult {
		e := newTestEngine(t, func(c *config.Config) {
			c.SetEngineWorkers(workers)
		})
		result, err := e.AnalyzeAtCompileTime(context.Background(), units)
		require.NoError(t, err)
		return result
	}

	sequential := run(1)
	parallel := run(8)

	if diff := cmp.Diff(sequential.Issues, parallel.Issues); diff != "" {
		t.Errorf("issue sets differ (-sequential +parallel):\n%s", diff)
	}
	if diff := cmp.Diff(sequential.TaintLevels, parallel.TaintLevels); diff != "" {
		t.Errorf("taint levels differ (-sequential +parallel):\n%s", diff)
	}
	assert.NotEmpty(t, sequential.Issues)
}

func TestAnalyzeAtCompileTime_WarmCacheIsIdempotent(t *testing.T) {
	t.Parallel()

	units := []schemas.UnitSource{
		unit("getData", "function getData() {\n  return req.body.x;\n}\n"),
		unit("consumer", "const v = getData();\ndb.query(v);\n"),
	}

	e := newTestEngine(t, nil)
	cold, err := e.AnalyzeAtCompileTime(context.Background(), units)
	require.NoError(t, err)
	warm, err := e.AnalyzeAtCompileTime(context.Background(), units)
	require.NoError(t, err)

	if diff := cmp.Diff(cold.Issues, warm.Issues); diff != "" {
		t.Errorf("issues differ between cold and warm runs:\n%s", diff)
	}
	if diff := cmp.Diff(cold.TaintLevels, warm.TaintLevels); diff != "" {
		t.Errorf("taint levels differ between cold and warm runs:\n%s", diff)
	}
}

func TestInferTaintLevels_BranchJoin(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	levels, err := e.InferTaintLevels(context.Background(), unit("u", `
let x = "";
if (cond) {
  x = req.query.v;
} else {
  x = "literal";
}
`))
	require.NoError(t, err)
	assert.Equal(t, core.PossiblyTainted, levels["x"])
}

func TestVerifyInvariants_SingleUnit(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	issues, err := e.VerifyInvariants(context.Background(), unit("u", "const q = req.body.data;\ndb.query(q);\n"))
	require.NoError(t, err)

	require.Len(t, issues, 1)
	assert.Equal(t, schemas.SeverityCritical, issues[0].Severity)
}

func TestInferSecurityTypes_Statistics(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	inference, err := e.InferSecurityTypes(context.Background(), unit("u", "const q = req.body.data;\nconst n = 1;\n"))
	require.NoError(t, err)

	assert.Equal(t, "DEFINITELY_TAINTED", inference.Assignments["q"])
	assert.Equal(t, "UNTAINTED", inference.Assignments["n"])
	assert.Equal(t, 2, inference.Statistics.TotalVariables)
	assert.Equal(t, 2, inference.Statistics.AutomaticallyInferred)
	assert.InDelta(t, 1.0, inference.Statistics.InferenceRate(), 1e-9)
}

func TestNew_ConfiguredCatalogOverridesDefaults(t *testing.T) {
	t.Parallel()

	cfg := config.NewDefaultConfig()
	e, err := New(zaptest.NewLogger(t), cfg, nil)
	require.NoError(t, err)

	// Defaults classify db.query as a sink.
	entry, ok := e.Catalog().Classify([]string{"db", "query"})
	require.True(t, ok)
	assert.Equal(t, core.KindSink, entry.Kind)
}

func TestBuildEntry_Validation(t *testing.T) {
	t.Parallel()

	_, err := buildEntry(config.PatternConfig{Kind: "sink", Pattern: "a.b", Mode: "glob"})
	assert.Error(t, err)

	_, err = buildEntry(config.PatternConfig{Kind: "mystery", Pattern: "a.b"})
	assert.Error(t, err)

	argIndex := 1
	entry, err := buildEntry(config.PatternConfig{Kind: "sink", Pattern: "audit.save", Class: "query", ArgIndex: &argIndex})
	require.NoError(t, err)
	assert.Equal(t, core.KindSink, entry.Kind)
	assert.Equal(t, []int{1}, entry.SensitiveArgs)
	assert.True(t, entry.Matcher.Matches([]string{"audit", "save"}))
}

func TestBuildSeverityMap_Overrides(t *testing.T) {
	t.Parallel()

	m := buildSeverityMap(config.SeverityConfig{Query: "low", Logging: "not-a-severity"})
	assert.Equal(t, schemas.SeverityLow, m[core.SinkClassQuery])
	// Invalid names keep the default calibration.
	assert.Equal(t, schemas.SeverityMedium, m[core.SinkClassLogging])
}
