// Filename: results/reporter.go
package results

import (
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/lancet-sast/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reporter defines the interface for writing an analysis result to an output.
type Reporter interface {
	// Write renders a single analysis result.
	Write(result *schemas.AnalysisResult) error
	// Close finalizes the report and closes any underlying resources.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for the given format and output path. An empty path
// or "stdout" writes to standard output.
func New(format, outputPath string) (Reporter, error) {
	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	switch format {
	case "json":
		return NewJSONReporter(writer), nil
	case "text":
		return NewTextReporter(writer), nil
	case "markdown":
		return NewMarkdownReporter(writer), nil
	default:
		if !isStdOut {
			_ = writer.Close()
		}
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// -- JSON --

type jsonReporter struct {
	w io.WriteCloser
}

// NewJSONReporter renders the result as indented JSON. It takes ownership of
// the writer.
func NewJSONReporter(w io.WriteCloser) Reporter {
	return &jsonReporter{w: w}
}

func (r *jsonReporter) Write(result *schemas.AnalysisResult) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

func (r *jsonReporter) Close() error { return r.w.Close() }

// -- Text --

type textReporter struct {
	w io.WriteCloser
}

// NewTextReporter renders a human-readable summary. It takes ownership of
// the writer.
func NewTextReporter(w io.WriteCloser) Reporter {
	return &textReporter{w: w}
}

func (r *textReporter) Write(result *schemas.AnalysisResult) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Analysis complete in %dms: %d issue(s), %d warning(s)\n",
		result.ExecutionTimeMs, len(result.Issues), len(result.Warnings))
	fmt.Fprintf(&b, "Bindings: %d total, %d inferred (%.1f%%), %d unknown\n",
		result.Statistics.TotalVariables,
		result.Statistics.AutomaticallyInferred,
		result.Statistics.InferenceRate()*100,
		result.Statistics.UnknownCount)

	for _, issue := range result.Issues {
		fmt.Fprintf(&b, "\n[%s] %s at %s:%d:%d (%s)\n",
			strings.ToUpper(string(issue.Severity)), issue.Type,
			issue.Location.File, issue.Location.Line, issue.Location.Column,
			issue.Unit)
		fmt.Fprintf(&b, "  %s\n", issue.Description)
		for _, step := range issue.TaintPath {
			fmt.Fprintf(&b, "    %s = %s at line %d\n", step.Binding, step.Level, step.Location.Line)
		}
	}

	for _, warning := range result.Warnings {
		fmt.Fprintf(&b, "\nwarning (%s) %s: %s\n", warning.Kind, warning.Unit, warning.Message)
	}

	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *textReporter) Close() error { return r.w.Close() }

// -- Markdown --

type markdownReporter struct {
	w io.WriteCloser
}

// NewMarkdownReporter renders an issue table suitable for pull-request
// comments. It takes ownership of the writer.
func NewMarkdownReporter(w io.WriteCloser) Reporter {
	return &markdownReporter{w: w}
}

func (r *markdownReporter) Write(result *schemas.AnalysisResult) error {
	var b strings.Builder

	b.WriteString("# Taint Analysis Report\n\n")
	fmt.Fprintf(&b, "%d issue(s), %d binding(s) analyzed, inference rate %.1f%%.\n\n",
		len(result.Issues), result.Statistics.TotalVariables, result.Statistics.InferenceRate()*100)

	if len(result.Issues) > 0 {
		b.WriteString("| Severity | Type | Location | Unit | Description |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, issue := range result.Issues {
			fmt.Fprintf(&b, "| %s | %s | %s:%d | %s | %s |\n",
				issue.Severity, issue.Type,
				issue.Location.File, issue.Location.Line,
				issue.Unit, issue.Description)
		}
	}

	if len(result.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, warning := range result.Warnings {
			fmt.Fprintf(&b, "- `%s` (%s): %s\n", warning.Unit, warning.Kind, warning.Message)
		}
	}

	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *markdownReporter) Close() error { return r.w.Close() }
