// Filename: javascript/fuzz_test.go
package javascript

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-sast/api/schemas"
	"github.com/xkilldash9x/lancet-sast/internal/analysis/core"
)

// FuzzAnalyzeUnit checks that arbitrary input never panics the analyzer:
// every unit either analyzes or degrades to an Unknown-level result.
func FuzzAnalyzeUnit(f *testing.F) {
	f.Add("const q = req.body.data;\ndb.query(q);\n")
	f.Add("function f(a) { return sanitize(a); }")
	f.Add("for (;;) { x = x + y; }")
	f.Add("if (cond) {")
	f.Add("\x00\xff{{{")
	f.Add("")

	analyzer := NewAnalyzer(zap.NewNop(), core.NewCatalog(), 10)

	f.Fuzz(func(t *testing.T, source string) {
		result, err := analyzer.AnalyzeUnit(context.Background(), schemas.UnitSource{
			Name:     "fuzz",
			FilePath: "fuzz.js",
			Content:  source,
		}, nil, nil)
		if err != nil {
			t.Fatalf("AnalyzeUnit returned error on non-cancelled context: %v", err)
		}
		if result == nil {
			t.Fatal("AnalyzeUnit returned nil result without error")
		}
		if result.Summary == nil {
			t.Fatal("analysis missing summary")
		}
	})
}
