// Package driver ties the pipeline together for embedders: compile a tree,
// run the result, pull diagnostics, extract Go values.
package driver

import (
	"io"

	"github.com/tliron/commonlog"

	"github.com/ember-lang/ember/pkg/ast"
	"github.com/ember-lang/ember/pkg/compiler"
	"github.com/ember-lang/ember/pkg/errors"
	"github.com/ember-lang/ember/pkg/vm"
)

// Options configures a session.
type Options struct {
	MaxCallDepth int
	Stdout       io.Writer
	Trace        bool
}

// Session is a persistent interpreter session. Globals defined by one
// evaluation remain visible to subsequent ones, so a host can feed it a
// series of trees the way a REPL would.
type Session struct {
	iso       *vm.Isolate
	collector *errors.Collector
	opts      Options
	log       commonlog.Logger
}

// NewSession creates a session with a fresh isolate and the builtin
// globals installed.
func NewSession(opts Options) *Session {
	collector := errors.NewCollector()
	iso := vm.NewIsolate(vm.Options{
		MaxCallDepth: opts.MaxCallDepth,
		Stdout:       opts.Stdout,
		Sink:         collector,
		Trace:        opts.Trace,
	})
	return &Session{
		iso:       iso,
		collector: collector,
		opts:      opts,
		log:       commonlog.GetLogger("ember.driver"),
	}
}

// Isolate exposes the underlying engine, for hosts that register natives
// or globals directly.
func (s *Session) Isolate() *vm.Isolate { return s.iso }

// Diagnostics returns everything reported to the session's sink so far, in
// report order.
func (s *Session) Diagnostics() []errors.Diagnostic {
	return s.collector.Diagnostics()
}

// compilerFor builds a compiler seeded with the isolate's current global
// names, so scripts may reference anything the host has already bound.
func compilerFor(iso *vm.Isolate) *compiler.Compiler {
	return compiler.New(compiler.Options{GlobalNames: iso.GlobalNames()})
}

// Compile turns a tree into a program against the session's current global
// scope. All compile diagnostics are returned together and also forwarded
// to the sink; a program is returned only when there are none.
func (s *Session) Compile(tree *ast.Program) (*vm.Program, []errors.EmberError) {
	c := compilerFor(s.iso)
	prog, errs := c.Compile(tree)
	if len(errs) > 0 {
		s.log.Debugf("compile failed with %d diagnostics", len(errs))
		errors.ReportAll(s.collector, errs)
		return nil, errs
	}
	return prog, nil
}

// Run executes an already compiled program on the session isolate.
func (s *Session) Run(prog *vm.Program) (vm.Value, errors.EmberError) {
	return s.iso.Evaluate(prog)
}

// Evaluate compiles and runs a tree. The value of a trailing expression
// statement is the result; compile diagnostics suppress execution.
func (s *Session) Evaluate(tree *ast.Program) (vm.Value, []errors.EmberError) {
	prog, errs := s.Compile(tree)
	if len(errs) > 0 {
		return vm.None, errs
	}
	v, rerr := s.iso.Evaluate(prog)
	if rerr != nil {
		return vm.None, []errors.EmberError{rerr}
	}
	return v, nil
}
