// Filename: engine/catalog.go
package engine

import (
	"fmt"

	"github.com/xkilldash9x/lancet-sast/api/schemas"
	"github.com/xkilldash9x/lancet-sast/internal/analysis/core"
	"github.com/xkilldash9x/lancet-sast/internal/analysis/verifier"
	"github.com/xkilldash9x/lancet-sast/internal/config"
)

// buildCatalog turns configured pattern entries into a catalog. User entries
// precede the defaults, so configuration overrides built-in classifications.
func buildCatalog(cc config.CatalogConfig) (*core.Catalog, error) {
	entries := make([]core.PatternEntry, 0, len(cc.Entries))
	for _, pc := range cc.Entries {
		entry, err := buildEntry(pc)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	catalog := core.NewCatalog(entries...)
	if len(cc.TaintedParams) > 0 {
		catalog = catalog.WithTaintedParams(cc.TaintedParams...)
	}
	return catalog, nil
}

func buildEntry(pc config.PatternConfig) (core.PatternEntry, error) {
	var matcher core.Matcher
	switch pc.Mode {
	case "", "exact":
		matcher = core.ExactPath(pc.Pattern)
	case "prefix":
		matcher = core.PathPrefix(pc.Pattern)
	case "last-segment":
		matcher = core.LastSegment(pc.Pattern)
	default:
		return core.PatternEntry{}, fmt.Errorf("catalog pattern %q: unknown mode %q", pc.Pattern, pc.Mode)
	}

	entry := core.PatternEntry{Matcher: matcher}
	switch pc.Kind {
	case "source":
		entry.Kind = core.KindSource
	case "sanitizer":
		entry.Kind = core.KindSanitizer
	case "sink":
		entry.Kind = core.KindSink
		entry.Class = core.SinkClass(pc.Class)
		if pc.ArgIndex != nil {
			entry.SensitiveArgs = []int{*pc.ArgIndex}
		}
	default:
		return core.PatternEntry{}, fmt.Errorf("catalog pattern %q: unknown kind %q", pc.Pattern, pc.Kind)
	}
	return entry, nil
}

// buildSeverityMap applies the configured per-class severities over the
// default calibration. Unknown severity names keep the default.
func buildSeverityMap(sc config.SeverityConfig) verifier.SeverityMap {
	m := verifier.DefaultSeverityMap()
	assign := func(class core.SinkClass, name string) {
		switch schemas.Severity(name) {
		case schemas.SeverityCritical, schemas.SeverityHigh, schemas.SeverityMedium, schemas.SeverityLow:
			m[class] = schemas.Severity(name)
		}
	}
	assign(core.SinkClassQuery, sc.Query)
	assign(core.SinkClassExecution, sc.Execution)
	assign(core.SinkClassMarkup, sc.Markup)
	assign(core.SinkClassNavigation, sc.Navigation)
	assign(core.SinkClassLogging, sc.Logging)
	return m
}
