package errors

import (
	"fmt"
	"strings"

	"github.com/ember-lang/ember/pkg/source"
)

// Diagnostic is the structured record pushed to a Sink by the compiler and
// the VM. This package never renders diagnostics to the console itself; see
// Render for the helper front ends use.
type Diagnostic struct {
	Kind    string
	Message string
	Pos     source.Span
}

// Sink receives diagnostics. Implementations must treat it as append-only.
type Sink interface {
	Report(Diagnostic)
}

// Collector is the default Sink: an in-memory, append-only diagnostic list.
type Collector struct {
	diags []Diagnostic
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Report appends a diagnostic.
func (c *Collector) Report(d Diagnostic) {
	c.diags = append(c.diags, d)
}

// Diagnostics returns the collected diagnostics in report order.
func (c *Collector) Diagnostics() []Diagnostic {
	return c.diags
}

// Diag converts an EmberError into its Diagnostic record.
func Diag(err EmberError) Diagnostic {
	return Diagnostic{Kind: err.Kind(), Message: err.Message(), Pos: err.Span()}
}

// ReportAll pushes every error's diagnostic to the sink.
func ReportAll(sink Sink, errs []EmberError) {
	if sink == nil {
		return
	}
	for _, err := range errs {
		sink.Report(Diag(err))
	}
}

// Render formats diagnostics against a source file for display, with the
// offending line and a position marker. file may be nil, in which case only
// the kind and message are rendered.
func Render(file *source.File, diags []Diagnostic) string {
	var b strings.Builder
	for _, d := range diags {
		if file == nil || d.Pos.IsZero() {
			fmt.Fprintf(&b, "%s: %s\n", d.Kind, d.Message)
			continue
		}
		line, col := file.Position(d.Pos.Start)
		fmt.Fprintf(&b, "%s at %s:%d:%d: %s\n", d.Kind, file.DisplayPath(), line, col, d.Message)
		text := file.Line(d.Pos.Start)
		fmt.Fprintf(&b, "  %s\n", text)
		fmt.Fprintf(&b, "  %s^\n", strings.Repeat(" ", col-1))
	}
	return b.String()
}
