package errors

import (
	"strings"
	"testing"

	"github.com/ember-lang/ember/pkg/source"
)

func TestCollectorIsAppendOnly(t *testing.T) {
	c := NewCollector()
	c.Report(Diagnostic{Kind: KindUndefinedName, Message: "first"})
	c.Report(Diagnostic{Kind: KindTypeMismatch, Message: "second"})
	diags := c.Diagnostics()
	if len(diags) != 2 || diags[0].Message != "first" || diags[1].Message != "second" {
		t.Fatalf("diagnostics out of order: %v", diags)
	}
}

func TestDiagFromErrors(t *testing.T) {
	span := source.Span{Start: 3, End: 7}
	ce := NewCompileError(KindDuplicateDeclaration, span, "x declared twice")
	d := Diag(ce)
	if d.Kind != KindDuplicateDeclaration || d.Pos != span || !strings.Contains(d.Message, "twice") {
		t.Fatalf("Diag = %+v", d)
	}

	re := NewRuntimeError(KindDivisionByZero, span, "integer division by zero")
	if Diag(re).Kind != KindDivisionByZero {
		t.Fatalf("Diag kind = %s", Diag(re).Kind)
	}
}

func TestReportAll(t *testing.T) {
	c := NewCollector()
	ReportAll(c, []EmberError{
		NewCompileError(KindUndefinedName, source.NoSpan, "a"),
		NewCompileError(KindUndefinedName, source.NoSpan, "b"),
	})
	if len(c.Diagnostics()) != 2 {
		t.Fatalf("got %d diagnostics", len(c.Diagnostics()))
	}
	ReportAll(nil, []EmberError{NewCompileError(KindUndefinedName, source.NoSpan, "c")}) // must not panic
}

func TestRenderWithSource(t *testing.T) {
	file := source.NewFile("demo.em", "", "x := 1\ny := nope\n")
	diags := []Diagnostic{{
		Kind:    KindUndefinedName,
		Message: "undefined name nope",
		Pos:     source.Span{Start: 12, End: 16},
	}}
	out := Render(file, diags)
	if !strings.Contains(out, "demo.em:2:6") {
		t.Errorf("missing position in %q", out)
	}
	if !strings.Contains(out, "y := nope") {
		t.Errorf("missing source line in %q", out)
	}
	if !strings.Contains(out, "     ^") {
		t.Errorf("missing caret marker in %q", out)
	}
}

func TestRenderWithoutSource(t *testing.T) {
	out := Render(nil, []Diagnostic{{Kind: KindStackOverflow, Message: "maximum call depth exceeded"}})
	if out != "StackOverflow: maximum call depth exceeded\n" {
		t.Errorf("Render = %q", out)
	}
}

func TestErrorStringsAndUnwrap(t *testing.T) {
	ce := NewCompileError(KindInvalidAssignmentTarget, source.NoSpan, "cannot assign")
	if !strings.Contains(ce.Error(), KindInvalidAssignmentTarget) {
		t.Errorf("Error() = %q", ce.Error())
	}
	re := NewRuntimeError(KindArityMismatch, source.NoSpan, "f expects 2 arguments, got 1")
	if re.Unwrap() != nil {
		t.Error("fresh runtime errors have no cause")
	}
}
